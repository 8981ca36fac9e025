package session

import "sync"

// Queue is the unbounded hand-off buffer between one producing session and
// one polling consumer. Push never blocks; PollOne removes at most one item
// per call and preserves insertion order.
type Queue struct {
	mu    sync.Mutex
	items []Item
	seq   int
}

func NewQueue() *Queue {
	return &Queue{items: make([]Item, 0)}
}

func (q *Queue) Push(item Item) Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	item.Seq = q.seq
	q.seq++
	q.items = append(q.items, item)
	return item
}

func (q *Queue) PollOne() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
