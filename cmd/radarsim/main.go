package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/comm/transport"
	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/ld2413"
	"github.com/robotalks/radar.go/pkg/ld2460"
	"github.com/robotalks/radar.go/pkg/sim"
)

var (
	listenAddr = ":8899"
	portURL    string
	model      = "ld2451"
	interval   = 100 * time.Millisecond
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "TCP address to serve modules")
	flag.StringVar(&portURL, "port", portURL, "Transport URL to serve a single module instead")
	flag.StringVar(&model, "model", model, "Simulated model: ld2451, ld2413 or ld2460")
	flag.DurationVar(&interval, "interval", interval, "Report interval of ld2451 and ld2460")
}

func newScene() *sim.Scene {
	return sim.NewScene(60,
		sim.Object{Pos: sim.Pos2D{X: -3, Y: 40}, Velocity: sim.Velocity2D{VY: -8}, SignalStrength: 120},
		sim.Object{Pos: sim.Pos2D{X: 5, Y: 12}, Velocity: sim.Velocity2D{VX: 0.5, VY: 4}, SignalStrength: 80},
	)
}

// newRoom is a scene of people walking within the range of ld2460.
func newRoom() *sim.Scene {
	return sim.NewScene(6,
		sim.Object{Pos: sim.Pos2D{X: -1, Y: 4}, Velocity: sim.Velocity2D{VX: 0.3, VY: -0.8}},
		sim.Object{Pos: sim.Pos2D{X: 1.5, Y: 2}, Velocity: sim.Velocity2D{VY: 0.5}},
	)
}

// serve simulates a module on rw until the context is canceled or rw fails.
func serve(ctx context.Context, name string, rw io.ReadWriter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var module *sim.Module
	var report func(dt time.Duration) error
	tick := interval
	switch model {
	case ld2413.Model:
		m := sim.NewLD2413(name, rw)
		level := float32(1200)
		report = func(time.Duration) error {
			level += 3
			if level > 3000 {
				level = 1200
			}
			return m.ReportDistance(level)
		}
		module = m.Module
		tick = time.Duration(m.ReportInterval) * time.Millisecond
	case ld2460.Model:
		m := sim.NewLD2460(name, rw)
		scene := newRoom()
		report = func(dt time.Duration) error {
			scene.Step(dt)
			return m.ReportScene(scene)
		}
		module = m.Module
	default:
		m := sim.NewLD2451(name, rw)
		scene := newScene()
		report = func(dt time.Duration) error {
			scene.Step(dt)
			return m.ReportScene(scene)
		}
		module = m.Module
	}

	errCh := make(chan error, 1)
	go func() { errCh <- module.Run(ctx) }()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			if err := report(tick); err != nil {
				return err
			}
		}
	}
}

type listener struct {
	addr string
}

func (l *listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	glog.Infof("serving %s on %s", model, ln.Addr())
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go func() {
				defer conn.Close()
				name := conn.RemoteAddr().String()
				glog.Infof("%s: connected", name)
				err := serve(ctx, name, conn)
				glog.Infof("%s: disconnected: %v", name, err)
			}()
		}
	})
}

func main() {
	flag.Parse()

	runner := fx.NewRunner().HandleSignals()
	if portURL != "" {
		rw, err := transport.Open(portURL)
		if err != nil {
			glog.Fatalf("open %s: %v", portURL, err)
		}
		defer rw.Close()
		runner.Go(fx.NamedRun("port", fx.RunnableFunc(func(ctx context.Context) error {
			return serve(ctx, portURL, rw)
		})))
	} else {
		runner.Go(fx.NamedRun("listener", &listener{addr: listenAddr}))
	}
	if err := runner.Wait(); err != nil {
		glog.Fatalln(err)
	}
}
