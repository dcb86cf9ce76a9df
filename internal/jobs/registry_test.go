package jobs

import (
	"bytes"
	"slices"
	"testing"
)

func newJob(cmd string, states ...Status) *Job {
	j := New(cmd, false)
	for _, s := range states {
		j.Processes = append(j.Processes, &Process{Argv: []string{cmd}, Status: s})
	}
	return j
}

func commands(r *Registry) []string {
	var out []string
	for j := range r.All() {
		out = append(out, j.Command)
	}
	return out
}

func TestAppendPreservesOrder(t *testing.T) {
	r := NewRegistry()
	a, b, c := newJob("a", Running), newJob("b", Running), newJob("c", Running)
	r.Append(a)
	r.Append(b)
	r.Append(c)

	if got := commands(r); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("Expected [a b c], got %v", got)
	}
	if r.Len() != 3 {
		t.Fatalf("Expected 3 jobs, got %d", r.Len())
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("Expected distinct job IDs, got %q and %q", a.ID, b.ID)
	}
}

func TestAppendIgnoresNilAndDuplicates(t *testing.T) {
	r := NewRegistry()
	a, b := newJob("a", Running), newJob("b", Running)
	r.Append(nil)
	r.Append(a)
	r.Append(b)
	r.Append(a)
	r.Append(b)

	if got := commands(r); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("Expected [a b], got %v", got)
	}
	if r.Len() != 2 {
		t.Fatalf("Expected 2 jobs, got %d", r.Len())
	}
}

func TestCleanupCompleted(t *testing.T) {
	tests := []struct {
		name string
		jobs []*Job
		want []string
	}{
		{
			name: "empty",
		},
		{
			name: "head only",
			jobs: []*Job{newJob("a", Completed), newJob("b", Running)},
			want: []string{"b"},
		},
		{
			name: "consecutive heads",
			jobs: []*Job{newJob("a", Completed), newJob("b", Completed, Completed), newJob("c", Stopped)},
			want: []string{"c"},
		},
		{
			name: "interior and tail",
			jobs: []*Job{newJob("a", Running), newJob("b", Completed), newJob("c", Running), newJob("d", Completed)},
			want: []string{"a", "c"},
		},
		{
			name: "partially completed pipeline survives",
			jobs: []*Job{newJob("a", Completed, Running), newJob("b", Completed, Stopped)},
			want: []string{"a", "b"},
		},
		{
			name: "everything",
			jobs: []*Job{newJob("a", Completed), newJob("b", Completed)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, j := range tt.jobs {
				r.Append(j)
			}

			removed := r.CleanupCompleted()
			if got := commands(r); !slices.Equal(got, tt.want) {
				t.Fatalf("Expected %v after cleanup, got %v", tt.want, got)
			}
			if removed != len(tt.jobs)-len(tt.want) {
				t.Fatalf("Expected %d removed, got %d", len(tt.jobs)-len(tt.want), removed)
			}
			if r.Len() != len(tt.want) {
				t.Fatalf("Expected Len %d, got %d", len(tt.want), r.Len())
			}

			// nothing new completed, so a second pass changes nothing
			if again := r.CleanupCompleted(); again != 0 {
				t.Fatalf("Expected idempotent cleanup, removed %d", again)
			}
			if got := commands(r); !slices.Equal(got, tt.want) {
				t.Fatalf("Expected %v after second cleanup, got %v", tt.want, got)
			}
		})
	}
}

func TestCleanupReleasesProcesses(t *testing.T) {
	r := NewRegistry()
	j := newJob("a", Completed)
	r.Append(j)
	r.CleanupCompleted()

	if j.Processes != nil {
		t.Fatalf("Expected removed job to drop its processes")
	}
	if j.next != nil {
		t.Fatalf("Expected removed job to be unlinked")
	}
}

func TestAppendAfterCleanup(t *testing.T) {
	r := NewRegistry()
	r.Append(newJob("a", Completed))
	r.Append(newJob("b", Running))
	r.CleanupCompleted()
	r.Append(newJob("c", Running))

	if got := commands(r); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("Expected [b c], got %v", got)
	}
}

func TestAllStopsEarly(t *testing.T) {
	r := NewRegistry()
	r.Append(newJob("a", Running))
	r.Append(newJob("b", Running))

	seen := 0
	for range r.All() {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("Expected traversal to stop after one job, saw %d", seen)
	}
}

func TestJobState(t *testing.T) {
	tests := []struct {
		states []Status
		want   Status
	}{
		{[]Status{Completed, Completed}, Completed},
		{[]Status{Stopped, Completed}, Stopped},
		{[]Status{Stopped, Stopped}, Stopped},
		{[]Status{Running, Stopped}, Running},
		{[]Status{Completed, Running}, Running},
	}
	for _, tt := range tests {
		j := newJob("x", tt.states...)
		if got := j.State(); got != tt.want {
			t.Errorf("State(%v) = %v, want %v", tt.states, got, tt.want)
		}
	}
}

func TestWriteStatus(t *testing.T) {
	j := newJob("sleep 10 | cat", Running)
	j.Pgid = 4242

	var buf bytes.Buffer
	if err := WriteStatus(&buf, j, Stopped); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	if got, want := buf.String(), "4242(Stopped): sleep 10 | cat\n"; got != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}
