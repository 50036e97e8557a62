package conn

import "sync"

// queue is the outbound FIFO. Producers append from any goroutine; only the
// connection's drainer takes from the head.
type queue struct {
	mu    sync.Mutex
	items [][]byte
}

func (q *queue) push(msg []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, msg)
	return len(q.items)
}

// pushFront returns a message that failed to send to the head.
func (q *queue) pushFront(msg []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = msg
	return len(q.items)
}

func (q *queue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) snapshot() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][]byte(nil), q.items...)
}
