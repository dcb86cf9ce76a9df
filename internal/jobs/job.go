package jobs

import (
	"fmt"
	"io"
	"syscall"
)

// Status is the lifecycle state of a single process.
type Status int

const (
	Running Status = iota
	Stopped
	Completed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Completed:
		return "Completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Process is one stage of a pipeline.
type Process struct {
	Argv   []string
	Input  string // "<" target, empty to inherit
	Output string // ">" or ">>" target, empty to inherit
	Append bool

	Pid      int
	Status   Status
	ExitCode int
	Signal   syscall.Signal
}

// Job is a pipeline of processes sharing one process group.
type Job struct {
	ID         string
	Processes  []*Process
	Pgid       int
	Command    string
	Background bool

	next *Job
}

// New returns a job for the given pipeline with no process group yet.
func New(command string, background bool, procs ...*Process) *Job {
	return &Job{
		Processes:  procs,
		Pgid:       -1,
		Command:    command,
		Background: background,
	}
}

// Completed reports whether every process in the job has completed.
func (j *Job) Completed() bool {
	for _, p := range j.Processes {
		if p.Status != Completed {
			return false
		}
	}
	return true
}

// Stopped reports whether every process is either stopped or completed.
func (j *Job) Stopped() bool {
	for _, p := range j.Processes {
		if p.Status == Running {
			return false
		}
	}
	return true
}

// State classifies the job as a whole.
func (j *Job) State() Status {
	switch {
	case j.Completed():
		return Completed
	case j.Stopped():
		return Stopped
	default:
		return Running
	}
}

// WriteStatus prints the "<pgid>(<status>): <command>" line for j.
func WriteStatus(w io.Writer, j *Job, s Status) error {
	_, err := fmt.Fprintf(w, "%d(%s): %s\n", j.Pgid, s, j.Command)
	return err
}
