package executor

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"dsh/internal/jobs"
)

// Controller owns process group membership and the controlling terminal.
type Controller struct {
	tty       *os.File
	enabled   bool
	shellPgid int
}

// NewController returns a controller for the terminal on tty. With enabled
// false no terminal ioctls are issued; process groups are still assigned.
func NewController(tty *os.File, enabled bool) *Controller {
	return &Controller{
		tty:       tty,
		enabled:   enabled,
		shellPgid: unix.Getpgrp(),
	}
}

func (c *Controller) Enabled() bool { return c.enabled }

func (c *Controller) ShellPgid() int { return c.shellPgid }

// Init puts the shell in its own process group in the foreground of the
// terminal. It blocks until the shell is not a background job.
func (c *Controller) Init() error {
	if !c.enabled {
		return nil
	}

	fd := int(c.tty.Fd())
	for {
		fg, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
		if err != nil {
			return fmt.Errorf("tcgetpgrp: %w", err)
		}
		pgrp := unix.Getpgrp()
		if fg == pgrp {
			break
		}
		_ = unix.Kill(-pgrp, unix.SIGTTIN)
	}

	pid := unix.Getpid()
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(pid, pid); err != nil {
			return fmt.Errorf("setpgid: %w", err)
		}
	}
	c.shellPgid = pid
	return c.Seize(pid)
}

// AssignGroup makes p a member of j's process group, founding the group with
// p if j has none yet. The child does the same before exec; whichever side
// runs first wins and the other is a no-op.
func (c *Controller) AssignGroup(j *jobs.Job, p *jobs.Process) error {
	if j.Pgid < 0 {
		j.Pgid = p.Pid
	}
	err := unix.Setpgid(p.Pid, j.Pgid)
	if errors.Is(err, unix.EACCES) {
		// child already joined and exec'd
		return nil
	}
	if err != nil {
		return fmt.Errorf("setpgid %d %d: %w", p.Pid, j.Pgid, err)
	}
	return nil
}

// Seize hands the terminal to pgid.
func (c *Controller) Seize(pgid int) error {
	if !c.enabled {
		return nil
	}

	// tcsetpgrp from a background group raises SIGTTOU
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)

	if err := unix.IoctlSetPointerInt(int(c.tty.Fd()), unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("tcsetpgrp %d: %w", pgid, err)
	}
	return nil
}

// Reclaim gives the terminal back to the shell.
func (c *Controller) Reclaim() error {
	return c.Seize(c.shellPgid)
}

// sysProcAttr is the child half of AssignGroup and Seize: the forked child
// joins the group, and a foreground child takes the terminal, before exec.
func (c *Controller) sysProcAttr(j *jobs.Job, files ...*os.File) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{Setpgid: true}
	if j.Pgid > 0 {
		attr.Pgid = j.Pgid
	}
	if !c.enabled || j.Background {
		return attr
	}
	for i, f := range files {
		if f != nil && sameFile(f, c.tty) {
			attr.Foreground = true
			attr.Ctty = i
			break
		}
	}
	return attr
}

func sameFile(a, b *os.File) bool {
	if a == b {
		return true
	}
	ai, err := a.Stat()
	if err != nil {
		return false
	}
	bi, err := b.Stat()
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
