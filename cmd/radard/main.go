package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/radar.go/pkg/env"
	fx "github.com/robotalks/radar.go/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	e := env.NewConfig().MustNewEnv()
	defer e.Close()

	fx.NewLoop().
		Add(e).
		RunOrFail()
}
