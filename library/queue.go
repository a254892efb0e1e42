package library

// queueNode is a single link in the queue's singly linked list.
type queueNode[T any] struct {
	value T
	next  *queueNode[T]
}

// Queue is a FIFO queue backed by a singly linked list. Enqueue, Dequeue,
// Peek and Len are all O(1). Items are served strictly in enqueue order;
// there is no priority, no reordering and no removal by value. The queue does
// not deduplicate; callers enforce any one-entry-per-user rule themselves.
type Queue[T any] struct {
	head *queueNode[T]
	tail *queueNode[T]
	size int
}

// NewQueue returns an empty queue.
func NewQueue[T any]() *Queue[T] { return &Queue[T]{} }

// Enqueue appends a value to the back of the queue.
func (q *Queue[T]) Enqueue(value T) {
	node := &queueNode[T]{value: value}
	if q.tail == nil {
		q.head = node
		q.tail = node
	} else {
		q.tail.next = node
		q.tail = node
	}
	q.size++
}

// Dequeue removes and returns the front value, or ErrEmptyQueue.
func (q *Queue[T]) Dequeue() (T, error) {
	if q.head == nil {
		var zero T
		return zero, ErrEmptyQueue
	}
	node := q.head
	q.head = node.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--
	return node.value, nil
}

// Peek returns the front value without removing it, or ErrEmptyQueue.
func (q *Queue[T]) Peek() (T, error) {
	if q.head == nil {
		var zero T
		return zero, ErrEmptyQueue
	}
	return q.head.value, nil
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int { return q.size }

// IsEmpty reports whether the queue holds no values.
func (q *Queue[T]) IsEmpty() bool { return q.size == 0 }

// Items returns the queued values front to back without mutating the queue.
// Used by the persistence layer to serialize queue contents in order.
func (q *Queue[T]) Items() []T {
	items := make([]T, 0, q.size)
	for node := q.head; node != nil; node = node.next {
		items = append(items, node.value)
	}
	return items
}
