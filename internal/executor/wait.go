package executor

import (
	"errors"

	"golang.org/x/sys/unix"

	"dsh/internal/jobs"
)

type waitFunc func(pid, options int) (int, unix.WaitStatus, error)

func wait4(pid, options int) (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, options, nil)
		if err == unix.EINTR {
			continue
		}
		return wpid, ws, err
	}
}

// record applies a wait status to p. A process killed by a signal counts as
// completed; it will never run again.
func record(p *jobs.Process, ws unix.WaitStatus) {
	switch {
	case ws.Exited():
		p.Status = jobs.Completed
		p.ExitCode = ws.ExitStatus()
	case ws.Signaled():
		p.Status = jobs.Completed
		p.Signal = ws.Signal()
		p.ExitCode = 128 + int(ws.Signal())
	case ws.Stopped():
		p.Status = jobs.Stopped
		p.Signal = ws.StopSignal()
	case ws.Continued():
		p.Status = jobs.Running
	}
}

// await blocks until p exits or stops.
func (s *Spawner) await(j *jobs.Job, p *jobs.Process) {
	s.debug.Printf("job %s: waiting on %d", j.ID, p.Pid)
	_, ws, err := s.wait(p.Pid, unix.WUNTRACED)
	if err != nil {
		s.log.Printf("wait %d: %v", p.Pid, err)
		if errors.Is(err, unix.ECHILD) {
			p.Status = jobs.Completed
		}
		return
	}
	record(p, ws)
	s.debug.Printf("job %s: %d is %s", j.ID, p.Pid, p.Status)

	if p.Status == jobs.Stopped {
		s.log.Printf("process %d stopped by %v", p.Pid, p.Signal)
	}
}

// Reap collects status changes of every registered process without
// blocking. Background jobs only ever advance through here.
func (s *Spawner) Reap() {
	for j := range s.registry.All() {
		for _, p := range j.Processes {
			if p.Pid <= 0 || p.Status == jobs.Completed {
				continue
			}
			wpid, ws, err := s.wait(p.Pid, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED)
			if errors.Is(err, unix.ECHILD) {
				p.Status = jobs.Completed
				continue
			}
			if err != nil {
				s.log.Printf("wait %d: %v", p.Pid, err)
				continue
			}
			if wpid == 0 {
				continue
			}
			record(p, ws)
			s.debug.Printf("job %s: %d is %s", j.ID, p.Pid, p.Status)
		}
	}
}
