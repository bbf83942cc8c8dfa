package cache

// Node is an element of a List. Owners keep the node returned by PushFront
// to move or remove the key in O(1).
type Node[K comparable] struct {
	Key  K
	prev *Node[K]
	next *Node[K]
	list *List[K]
}

// List orders keys by recency. The front is the most recently used key,
// the back the least recently used one.
//
// The zero value is an empty list. List is not safe for concurrent use.
type List[K comparable] struct {
	head *Node[K]
	tail *Node[K]
	len  int
}

// Len returns the number of keys in the list.
func (l *List[K]) Len() int {
	return l.len
}

// PushFront inserts key as the most recently used entry.
func (l *List[K]) PushFront(key K) *Node[K] {
	node := &Node[K]{Key: key}
	l.linkFront(node)
	return node
}

// MoveToFront marks node as the most recently used entry.
// Nodes that belong to another list (or none) are ignored.
func (l *List[K]) MoveToFront(node *Node[K]) {
	if node == nil || node.list != l || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove deletes node from the list. Removing a node twice is a no-op.
func (l *List[K]) Remove(node *Node[K]) {
	if node == nil || node.list != l {
		return
	}
	l.unlink(node)
}

// Back returns the least recently used node, or nil if the list is empty.
func (l *List[K]) Back() *Node[K] {
	return l.tail
}

// Prev returns the node used just more recently than node, or nil.
func (n *Node[K]) Prev() *Node[K] {
	return n.prev
}

// RemoveOldest removes and returns the least recently used key.
func (l *List[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	node := l.tail
	l.unlink(node)
	return node.Key, true
}

// Clear drops every node.
func (l *List[K]) Clear() {
	for n := l.head; n != nil; {
		next := n.next
		n.prev, n.next, n.list = nil, nil, nil
		n = next
	}
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *List[K]) linkFront(node *Node[K]) {
	node.list = l
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

func (l *List[K]) unlink(node *Node[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev, node.next, node.list = nil, nil, nil
	l.len--
}
