package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"dsh/internal/builtins"
	"dsh/internal/config"
	"dsh/internal/executor"
	"dsh/internal/jobs"
	"dsh/internal/parser"
)

type Options struct {
	Config *config.Config

	// In is where command lines are read from; Terminal is the file job
	// control operates on (usually the same as In).
	In       io.Reader
	Terminal *os.File
	Stdout   *os.File
	Stderr   *os.File

	// Exit is called by quit. Defaults to os.Exit.
	Exit func(int)

	Log   *log.Logger
	Debug *log.Logger

	// start replaces (*exec.Cmd).Start for every child.
	start func(*exec.Cmd) error
}

// Shell wires the parser, spawner and built-ins around one job registry.
type Shell struct {
	cfg      *config.Config
	registry *jobs.Registry
	ctl      *executor.Controller
	spawner  *executor.Spawner

	in     *bufio.Reader
	prompt io.Writer
	log    *log.Logger
}

func New(opts Options) *Shell {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Terminal == nil {
		opts.Terminal = os.Stdin
	}
	if opts.In == nil {
		opts.In = opts.Terminal
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Log == nil {
		opts.Log = log.New(opts.Stderr, "dsh: ", 0)
	}
	if opts.Debug == nil {
		opts.Debug = log.New(io.Discard, "", 0)
	}

	registry := jobs.NewRegistry()
	ctl := executor.NewController(opts.Terminal, opts.Config.JobControlEnabled(int(opts.Terminal.Fd())))
	var spawner *executor.Spawner
	disp := builtins.New(builtins.Options{
		Registry: registry,
		Out:      opts.Stdout,
		Status:   opts.Stderr,
		Refresh:  func() { spawner.Reap() },
		Exit:     opts.Exit,
	})
	spawner = executor.New(executor.Options{
		Registry:        registry,
		Controller:      ctl,
		Builtins:        disp,
		Stdin:           opts.Terminal,
		Stdout:          opts.Stdout,
		Stderr:          opts.Stderr,
		BackgroundStdin: opts.Config.BackgroundStdin,
		Status:          opts.Stderr,
		Log:             opts.Log,
		Debug:           opts.Debug,
		Start:           opts.start,
	})

	return &Shell{
		cfg:      opts.Config,
		registry: registry,
		ctl:      ctl,
		spawner:  spawner,
		in:       bufio.NewReader(opts.In),
		prompt:   opts.Stdout,
		log:      opts.Log,
	}
}

// Run reads and executes lines until end of input. It returns nil at EOF
// and an error only when the shell can no longer start processes.
func (s *Shell) Run() error {
	if err := s.ctl.Init(); err != nil {
		s.log.Printf("job control: %v", err)
	}

	stop := s.handleSignals()
	defer stop()

	for {
		s.spawner.Reap()
		fmt.Fprint(s.prompt, s.cfg.RenderPrompt(os.Getpid()))

		line, err := s.in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			fmt.Fprintln(s.prompt)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.Execute(line); err != nil {
			return err
		}
	}
}

// Execute parses line and spawns each of its jobs in order.
func (s *Shell) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	parsed, err := parser.Parse(line)
	if err != nil {
		s.log.Print(err)
		return nil
	}
	for _, j := range parsed {
		if err := s.spawner.Spawn(j); err != nil {
			return err
		}
	}
	return nil
}

// Registry exposes the job table, mostly for tests.
func (s *Shell) Registry() *jobs.Registry {
	return s.registry
}

// handleSignals keeps interactive signals from killing the shell. SIGINT is
// forwarded to the foreground job when the terminal did not deliver it there
// already. The signals are caught rather than ignored so children start
// with default dispositions.
func (s *Shell) handleSignals() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigChan:
				if sig != syscall.SIGINT {
					continue
				}
				if pgid := s.spawner.Foreground(); pgid > 0 {
					_ = unix.Kill(-pgid, unix.SIGINT)
				} else {
					fmt.Fprint(s.prompt, "\n"+s.cfg.RenderPrompt(os.Getpid()))
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
