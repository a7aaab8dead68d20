// Package sh provides an interactive shell talking to a radar module.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/comm/transport"
	"github.com/robotalks/radar.go/pkg/device"
	"github.com/robotalks/radar.go/pkg/env"
	"github.com/robotalks/radar.go/pkg/ld2451"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	// Timeout bounds each command.
	Timeout time.Duration

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

// Session is an opened module.
type Session struct {
	Ctx    context.Context
	Cancel func()
	Port   string
	Device device.Device
	Closer io.Closer
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     5 * time.Second,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires an opened module.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// DeviceFrom gets the opened device.
func DeviceFrom(c *ishell.Context) device.Device {
	return ShellFrom(c).Session.Device
}

// Do runs fn with a command timeout and prints the error or OK.
func Do(c *ishell.Context, fn func(ctx context.Context) error) error {
	s := ShellFrom(c)
	ctx, cancel := context.WithTimeout(s.Session.Ctx, s.Timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		c.Err(err)
		return err
	}
	return nil
}

// Print prints a result, in JSON if requested.
func Print(c *ishell.Context, v interface{}) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	if v == nil {
		c.Println("OK")
		return
	}
	c.Printf("%v\n", v)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens a module. No parameters are written until asked.
func (s *Shell) Connect(port, model string) error {
	dc := env.NewDeviceConfig("radar", model, port)
	if err := dc.Validate(); err != nil {
		return err
	}
	open := s.Config.Open
	if open == nil {
		open = transport.Open
	}
	rw, err := open(dc.PortURL())
	if err != nil {
		return err
	}
	dev, _ := env.NewDevice(&dc, rw)
	sess := &Session{Port: port, Device: dev, Closer: rw}
	sess.Ctx, sess.Cancel = context.WithCancel(context.Background())
	s.Disconnect()
	s.Session = sess
	go env.EngineOf(dev).Run(sess.Ctx)
	s.Shell.SetPrompt(fmt.Sprintf("%s %s > ", model, port))
	return nil
}

// Disconnect closes current module.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		s.Session.Cancel()
		s.Session.Closer.Close()
		s.Session = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.Port)
		}
		if err := s.Connect(s.Config.Port, s.Config.Model); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens a module.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "URL [MODEL]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("URL required"))
				return
			}
			model := ld2451.Model
			if len(c.Args) > 1 {
				model = c.Args[1]
			}
			if err := ShellFrom(c).Connect(c.Args[0], model); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current module.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
