package jobs

import (
	"iter"

	"github.com/google/uuid"
)

// Registry is the ordered list of jobs the shell has started and not yet
// cleaned up. It is only touched from the driver goroutine.
type Registry struct {
	head *Job
	n    int
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Append adds j at the tail. A nil job, or one already in the registry,
// is ignored.
func (r *Registry) Append(j *Job) {
	if j == nil {
		return
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	if r.head == nil {
		j.next = nil
		r.head = j
		r.n++
		return
	}

	cur := r.head
	for {
		if cur == j {
			return
		}
		if cur.next == nil {
			break
		}
		cur = cur.next
	}
	j.next = nil
	cur.next = j
	r.n++
}

// CleanupCompleted unlinks every job whose processes have all completed
// and returns how many were removed.
func (r *Registry) CleanupCompleted() int {
	removed := 0

	// head has no predecessor to relink
	for r.head != nil && r.head.Completed() {
		dead := r.head
		r.head = dead.next
		release(dead)
		removed++
	}
	if r.head == nil {
		r.n -= removed
		return removed
	}

	cur := r.head
	for cur.next != nil {
		if cur.next.Completed() {
			dead := cur.next
			cur.next = dead.next
			release(dead)
			removed++
			continue
		}
		cur = cur.next
	}

	r.n -= removed
	return removed
}

// All yields the registered jobs in insertion order.
func (r *Registry) All() iter.Seq[*Job] {
	return func(yield func(*Job) bool) {
		for j := r.head; j != nil; j = j.next {
			if !yield(j) {
				return
			}
		}
	}
}

func (r *Registry) Len() int {
	return r.n
}

func release(j *Job) {
	j.next = nil
	j.Processes = nil
}
