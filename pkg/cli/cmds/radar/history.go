package radar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/cli/sh"
	"github.com/robotalks/radar.go/pkg/msgs"
	"github.com/robotalks/radar.go/pkg/record"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// DefaultHistoryDuration is how far back history goes by default.
const DefaultHistoryDuration = time.Hour

func formatReport(m *msgs.TargetReport) string {
	var sb strings.Builder
	sb.WriteString(m.Time().Format("2006-01-02 15:04:05.000"))
	for _, t := range m.Targets {
		target := &Target{Slot: int(t.Slot)}
		for _, f := range []struct {
			attr telemetry.Attr
			val  float64
			dst  **float64
		}{
			{telemetry.AttrAngle, t.Angle, &target.Angle},
			{telemetry.AttrDistance, t.Distance, &target.Distance},
			{telemetry.AttrSpeed, t.Speed, &target.Speed},
			{telemetry.AttrSignalStrength, t.SignalStrength, &target.SignalStrength},
			{telemetry.AttrX, t.X, &target.X},
			{telemetry.AttrY, t.Y, &target.Y},
		} {
			if t.Has(f.attr) {
				v := f.val
				*f.dst = &v
			}
		}
		if t.Has(telemetry.AttrDirection) {
			target.Direction = telemetry.Direction(t.Direction).String()
		}
		sb.WriteString("  ")
		sb.WriteString(target.String())
	}
	return sb.String()
}

// HistoryCmd prints recorded detections of a device.
var HistoryCmd = ishell.Cmd{
	Name: "history",
	Help: "DEVICE [DURATION]",
	Func: func(c *ishell.Context) {
		s := sh.ShellFrom(c)
		if s.Config.RecordPath == "" {
			c.Err(fmt.Errorf("no record file, use -record"))
			return
		}
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("DEVICE required"))
			return
		}
		duration := DefaultHistoryDuration
		if len(c.Args) > 1 {
			d, err := time.ParseDuration(c.Args[1])
			if err != nil || d <= 0 {
				c.Err(fmt.Errorf("invalid duration %q", c.Args[1]))
				return
			}
			duration = d
		}
		rec, err := record.Open(s.Config.RecordPath)
		if err != nil {
			c.Err(err)
			return
		}
		defer rec.Close()
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		to := time.Now()
		reports, err := rec.History(ctx, c.Args[0], to.Add(-duration), to)
		if err != nil {
			c.Err(err)
			return
		}
		if s.OutputJSON {
			sh.Print(c, reports)
			return
		}
		if len(reports) == 0 {
			c.Println("No detections")
			return
		}
		for _, m := range reports {
			c.Println(formatReport(m))
		}
	},
}

func init() {
	sh.AddCmds(&HistoryCmd)
}
