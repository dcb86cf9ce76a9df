package builtins

import (
	"errors"
	"fmt"
	"io"
	"os"

	"dsh/internal/jobs"
)

// ErrNotImplemented is returned by built-ins that are recognised but have
// no behaviour yet.
var ErrNotImplemented = errors.New("not implemented")

// Handler runs a built-in with its full argv.
type Handler func(argv []string) error

// Dispatcher maps command names to built-ins.
type Dispatcher struct {
	handlers map[string]Handler

	registry *jobs.Registry
	out      io.Writer
	status   io.Writer
	refresh  func()
	exit     func(int)
}

type Options struct {
	Registry *jobs.Registry
	// Out receives ordinary built-in output, Status the job status lines.
	Out    io.Writer
	Status io.Writer
	// Refresh brings process states up to date before jobs are listed.
	Refresh func()
	// Exit ends the shell. Defaults to os.Exit.
	Exit func(int)
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
		registry: opts.Registry,
		out:      opts.Out,
		status:   opts.Status,
		refresh:  opts.Refresh,
		exit:     opts.Exit,
	}
	if d.registry == nil {
		d.registry = jobs.NewRegistry()
	}
	if d.out == nil {
		d.out = os.Stdout
	}
	if d.status == nil {
		d.status = os.Stderr
	}
	if d.exit == nil {
		d.exit = os.Exit
	}

	d.Register("quit", d.quit)
	d.Register("exit", d.quit)
	d.Register("jobs", d.listJobs)
	d.Register("pwd", d.pwd)
	d.Register("cd", notImplemented)
	d.Register("bg", notImplemented)
	d.Register("fg", notImplemented)
	return d
}

// Register adds or replaces the built-in called name.
func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

// Handle runs argv if it names a built-in and reports whether it did.
func (d *Dispatcher) Handle(argv []string) (bool, error) {
	if len(argv) == 0 {
		return false, nil
	}
	h, ok := d.handlers[argv[0]]
	if !ok {
		return false, nil
	}
	return true, h(argv)
}

func (d *Dispatcher) quit(argv []string) error {
	d.exit(0)
	return nil
}

// listJobs prints every registered job's state, then forgets the completed
// ones. With -l each line is prefixed by the job's ID.
func (d *Dispatcher) listJobs(argv []string) error {
	long := false
	for _, arg := range argv[1:] {
		if arg != "-l" {
			return fmt.Errorf("jobs: unknown option %q", arg)
		}
		long = true
	}

	if d.refresh != nil {
		d.refresh()
	}
	for j := range d.registry.All() {
		if long {
			if _, err := fmt.Fprintf(d.status, "%s ", j.ID); err != nil {
				return err
			}
		}
		if err := jobs.WriteStatus(d.status, j, j.State()); err != nil {
			return err
		}
	}
	d.registry.CleanupCompleted()
	return nil
}

func (d *Dispatcher) pwd(argv []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("pwd: %w", err)
	}
	_, err = fmt.Fprintln(d.out, dir)
	return err
}

func notImplemented(argv []string) error {
	return fmt.Errorf("%s: %w", argv[0], ErrNotImplemented)
}
