// Package all registers all shell commands.
package all

import (
	// Register commands.
	_ "github.com/robotalks/radar.go/pkg/cli/cmds/ld2413"
	_ "github.com/robotalks/radar.go/pkg/cli/cmds/ld2451"
	_ "github.com/robotalks/radar.go/pkg/cli/cmds/ld2460"
	_ "github.com/robotalks/radar.go/pkg/cli/cmds/radar"
)
