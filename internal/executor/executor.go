package executor

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"

	"dsh/internal/jobs"
)

// ErrFork means the shell could not create a child process. The caller
// should treat it as fatal: the job table can no longer be trusted.
var ErrFork = errors.New("fork failed")

// errEmptyCommand is reported for a stage with no argv.
var errEmptyCommand = errors.New("empty command")

// exitFailure is recorded for a stage whose program could not be executed.
const exitFailure = 1

// BuiltinHandler runs shell built-ins in process.
type BuiltinHandler interface {
	Handle(argv []string) (bool, error)
}

type Options struct {
	Registry   *jobs.Registry
	Controller *Controller
	Builtins   BuiltinHandler

	// Streams children inherit when nothing else is connected.
	Stdin, Stdout, Stderr *os.File
	// BackgroundStdin replaces Stdin for the first stage of a background job.
	BackgroundStdin string

	// Status receives job status lines.
	Status io.Writer
	Log    *log.Logger
	Debug  *log.Logger

	// Start forks and execs a prepared command. Defaults to
	// (*exec.Cmd).Start.
	Start func(*exec.Cmd) error
}

// Spawner turns jobs into running process groups.
type Spawner struct {
	registry *jobs.Registry
	ctl      *Controller
	builtins BuiltinHandler

	stdin, stdout, stderr *os.File
	bgStdin               string

	status io.Writer
	log    *log.Logger
	debug  *log.Logger

	wait  waitFunc
	start func(*exec.Cmd) error
	fg    atomic.Int64
}

func New(opts Options) *Spawner {
	s := &Spawner{
		registry: opts.Registry,
		ctl:      opts.Controller,
		builtins: opts.Builtins,
		stdin:    opts.Stdin,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		bgStdin:  opts.BackgroundStdin,
		status:   opts.Status,
		log:      opts.Log,
		debug:    opts.Debug,
		wait:     wait4,
		start:    opts.Start,
	}
	if s.registry == nil {
		s.registry = jobs.NewRegistry()
	}
	if s.ctl == nil {
		s.ctl = NewController(os.Stdin, false)
	}
	if s.stdin == nil {
		s.stdin = os.Stdin
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.status == nil {
		s.status = os.Stderr
	}
	if s.log == nil {
		s.log = log.New(os.Stderr, "dsh: ", 0)
	}
	if s.debug == nil {
		s.debug = log.New(io.Discard, "", 0)
	}
	if s.start == nil {
		s.start = (*exec.Cmd).Start
	}
	s.fg.Store(-1)
	return s
}

// Foreground returns the process group currently running in the
// foreground, or -1. Safe to call from a signal handling goroutine.
func (s *Spawner) Foreground() int {
	return int(s.fg.Load())
}

// Spawn starts every stage of j. A foreground job is waited for until each
// stage has exited or stopped; a background job is left running and is
// picked up by Reap. Only a fork failure is returned; everything else is
// logged.
func (s *Spawner) Spawn(j *jobs.Job) error {
	last := len(j.Processes) - 1
	piping := last > 0
	registered := false

	var prevRead *os.File
	defer func() {
		if prevRead != nil {
			prevRead.Close()
		}
	}()

	for i, p := range j.Processes {
		if handled, err := s.builtin(p.Argv); handled {
			if err != nil {
				s.log.Print(err)
			}
			if registered && !j.Background {
				s.reclaim()
			}
			return nil
		}

		if !registered {
			s.registry.Append(j)
			registered = true
			s.debug.Printf("job %s: registered %q", j.ID, j.Command)
		}

		var pipeRead, pipeWrite *os.File
		if i < last {
			r, w, err := os.Pipe()
			if err != nil {
				s.log.Printf("pipe: %v", err)
			} else {
				pipeRead, pipeWrite = r, w
			}
		}

		err := s.launch(j, p, i, prevRead, pipeWrite)

		// the child holds its own copies now
		if pipeWrite != nil {
			pipeWrite.Close()
		}
		if prevRead != nil {
			prevRead.Close()
		}
		prevRead = pipeRead

		if err != nil {
			if errors.Is(err, ErrFork) {
				if !j.Background {
					s.reclaim()
				}
				return err
			}
			s.log.Print(err)
			p.Status = jobs.Completed
			p.ExitCode = exitFailure
			continue
		}

		if err := s.ctl.AssignGroup(j, p); err != nil {
			s.log.Print(err)
		}
		s.debug.Printf("job %s: started %d in group %d", j.ID, p.Pid, j.Pgid)

		if j.Background {
			continue
		}
		if p.Pid == j.Pgid {
			s.fg.Store(int64(j.Pgid))
			if err := s.ctl.Seize(j.Pgid); err != nil {
				s.log.Print(err)
			}
		}
		if !piping {
			s.await(j, p)
		}
	}

	if j.Background {
		_ = jobs.WriteStatus(s.status, j, jobs.Running)
		return nil
	}

	if piping {
		for _, p := range j.Processes {
			if p.Pid > 0 && p.Status != jobs.Completed {
				s.await(j, p)
			}
		}
	}

	s.reclaim()
	if j.State() == jobs.Stopped {
		_ = jobs.WriteStatus(s.status, j, jobs.Stopped)
	}
	return nil
}

func (s *Spawner) builtin(argv []string) (bool, error) {
	if s.builtins == nil {
		return false, nil
	}
	return s.builtins.Handle(argv)
}

// launch forks and execs one stage. prevRead is the read end of the pipe
// from the previous stage, pipeWrite the write end of the pipe to the next.
func (s *Spawner) launch(j *jobs.Job, p *jobs.Process, i int, prevRead, pipeWrite *os.File) error {
	if len(p.Argv) == 0 {
		return errEmptyCommand
	}

	rd := openRedirects(p, s.log)
	defer rd.Close()

	stdin := s.stdin
	switch {
	case prevRead != nil:
		stdin = prevRead
	case rd.in != nil:
		stdin = rd.in
	case i == 0 && j.Background && s.bgStdin != "":
		// background jobs must not read from the terminal
		f, err := os.Open(s.bgStdin)
		if err != nil {
			s.log.Printf("background stdin: %v", err)
		} else {
			defer f.Close()
			stdin = f
		}
	}

	stdout := s.stdout
	switch {
	case pipeWrite != nil:
		stdout = pipeWrite
	case rd.out != nil:
		stdout = rd.out
	}

	cmd := exec.Command(p.Argv[0], p.Argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = s.stderr
	cmd.SysProcAttr = s.ctl.sysProcAttr(j, stdin, stdout, s.stderr)

	if err := s.start(cmd); err != nil {
		return classifyStart(cmd, err)
	}

	p.Pid = cmd.Process.Pid
	p.Status = jobs.Running
	// reaped with wait4, never through cmd.Wait
	_ = cmd.Process.Release()
	return nil
}

func (s *Spawner) reclaim() {
	s.fg.Store(-1)
	if err := s.ctl.Reclaim(); err != nil {
		s.log.Print(err)
	}
}

// classifyStart wraps err in ErrFork when no child could be created at all.
// A failed path lookup or exec leaves the shell able to carry on.
func classifyStart(cmd *exec.Cmd, err error) error {
	var errno syscall.Errno
	if cmd.Err == nil && errors.As(err, &errno) && (errno == syscall.EAGAIN || errno == syscall.ENOMEM) {
		return fmt.Errorf("%w: %w", ErrFork, err)
	}
	return err
}
