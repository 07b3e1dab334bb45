package cache

// nilIndex marks the absence of a neighbour or an empty list end.
const nilIndex = -1

// linkedList is a doubly linked list whose nodes live in a slice. Links are
// slice indices, so moving a node never allocates and nodes hold no
// pointers to each other. Freed slots are reused by later pushes.
type linkedList[T any] struct {
	nodes []listNode[T]
	free  []int
	head  int
	tail  int
	len   int
}

type listNode[T any] struct {
	prev  int
	next  int
	inUse bool

	Value T
}

func newLinkedList[T any]() *linkedList[T] {
	return &linkedList[T]{head: nilIndex, tail: nilIndex}
}

func (l *linkedList[T]) Len() int {
	return l.len
}

func (l *linkedList[T]) Front() int {
	return l.head
}

func (l *linkedList[T]) Back() int {
	return l.tail
}

func (l *linkedList[T]) Prev(i int) int {
	if !l.valid(i) {
		return nilIndex
	}
	return l.nodes[i].prev
}

func (l *linkedList[T]) Next(i int) int {
	if !l.valid(i) {
		return nilIndex
	}
	return l.nodes[i].next
}

func (l *linkedList[T]) Value(i int) (T, bool) {
	if !l.valid(i) {
		var zero T
		return zero, false
	}
	return l.nodes[i].Value, true
}

func (l *linkedList[T]) PushFront(v T) int {
	i := l.alloc(v)
	l.linkFront(i)
	l.len++
	return i
}

func (l *linkedList[T]) MoveToFront(i int) {
	if !l.valid(i) || l.head == i {
		return
	}
	l.unlink(i)
	l.linkFront(i)
}

// Remove unlinks the node and releases its slot. The returned value is the
// zero value when i does not name a live node.
func (l *linkedList[T]) Remove(i int) (T, bool) {
	if !l.valid(i) {
		var zero T
		return zero, false
	}
	v := l.nodes[i].Value
	l.unlink(i)

	var zero T
	l.nodes[i] = listNode[T]{prev: nilIndex, next: nilIndex, Value: zero}
	l.free = append(l.free, i)
	l.len--
	return v, true
}

func (l *linkedList[T]) valid(i int) bool {
	return i >= 0 && i < len(l.nodes) && l.nodes[i].inUse
}

func (l *linkedList[T]) alloc(v T) int {
	n := listNode[T]{prev: nilIndex, next: nilIndex, inUse: true, Value: v}
	if k := len(l.free); k > 0 {
		i := l.free[k-1]
		l.free = l.free[:k-1]
		l.nodes[i] = n
		return i
	}
	l.nodes = append(l.nodes, n)
	return len(l.nodes) - 1
}

func (l *linkedList[T]) linkFront(i int) {
	n := &l.nodes[i]
	n.prev = nilIndex
	n.next = l.head
	if l.head != nilIndex {
		l.nodes[l.head].prev = i
	}
	l.head = i
	if l.tail == nilIndex {
		l.tail = i
	}
}

func (l *linkedList[T]) unlink(i int) {
	n := &l.nodes[i]
	if n.prev != nilIndex {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilIndex {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nilIndex
	n.next = nilIndex
}
