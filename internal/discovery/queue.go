package discovery

// PushResult reports what Push did with an rsid.
type PushResult int

const (
	Added PushResult = iota
	Duplicate
	Dropped
)

// Queue is a bounded FIFO of rsids without duplicates. Items pushed while
// it is full are dropped, never evicting older ones. It is not safe for
// concurrent use.
type Queue struct {
	items    []string
	members  map[string]bool
	capacity int
}

// NewQueue creates a queue holding at most capacity rsids.
func NewQueue(capacity int) *Queue {
	return &Queue{members: make(map[string]bool), capacity: capacity}
}

// Push appends id.
func (q *Queue) Push(id string) PushResult {
	if q.members[id] {
		return Duplicate
	}
	if len(q.items) >= q.capacity {
		return Dropped
	}
	q.items = append(q.items, id)
	q.members[id] = true
	return Added
}

// Pop removes and returns the oldest rsid.
func (q *Queue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.members, id)
	return id, true
}

// Contains reports whether id is queued.
func (q *Queue) Contains(id string) bool {
	return q.members[id]
}

// Len returns the number of queued rsids.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queue contents, oldest first.
func (q *Queue) Items() []string {
	return append([]string(nil), q.items...)
}
