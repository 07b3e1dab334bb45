package cache

import "testing"

func listValues(l *linkedList[string]) []string {
	var out []string
	for i := l.Front(); i != nilIndex; i = l.Next(i) {
		v, _ := l.Value(i)
		out = append(out, v)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLinkedListEmpty(t *testing.T) {
	l := newLinkedList[string]()
	if got := l.Back(); got != nilIndex {
		t.Fatalf("Back() on empty list = %d, want %d", got, nilIndex)
	}
	if got := l.Front(); got != nilIndex {
		t.Fatalf("Front() on empty list = %d, want %d", got, nilIndex)
	}
	if l.Len() != 0 {
		t.Fatalf("len = %d, want 0", l.Len())
	}
}

func TestLinkedListPushFrontBackAndPrev(t *testing.T) {
	l := newLinkedList[string]()

	e1 := l.PushFront("a")
	e2 := l.PushFront("b")
	e3 := l.PushFront("c")

	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	if got := l.Back(); got != e1 {
		t.Fatalf("Back() = %d, want %d", got, e1)
	}
	if got := l.Prev(e1); got != e2 {
		t.Fatalf("Prev(e1) = %d, want %d", got, e2)
	}
	if got := l.Prev(e2); got != e3 {
		t.Fatalf("Prev(e2) = %d, want %d", got, e3)
	}
	if got := l.Prev(e3); got != nilIndex {
		t.Fatalf("Prev(e3) = %d, want none", got)
	}
	if got := listValues(l); !equalStrings(got, []string{"c", "b", "a"}) {
		t.Fatalf("values = %v", got)
	}
}

func TestLinkedListMoveToFront(t *testing.T) {
	l := newLinkedList[string]()

	e1 := l.PushFront("a") // [a]
	e2 := l.PushFront("b") // [b a]
	e3 := l.PushFront("c") // [c b a]

	l.MoveToFront(e1) // [a c b]

	if got := l.Back(); got != e2 {
		t.Fatalf("Back() = %d, want %d", got, e2)
	}
	if got := l.Prev(e2); got != e3 {
		t.Fatalf("Prev(e2) = %d, want %d", got, e3)
	}
	if got := l.Front(); got != e1 {
		t.Fatalf("Front() = %d, want %d", got, e1)
	}
	if got := listValues(l); !equalStrings(got, []string{"a", "c", "b"}) {
		t.Fatalf("values = %v", got)
	}

	l.MoveToFront(e2) // [b a c], tail moves
	if got := l.Back(); got != e3 {
		t.Fatalf("Back() = %d, want %d", got, e3)
	}
}

func TestLinkedListRemoveReusesSlot(t *testing.T) {
	l := newLinkedList[string]()
	e1 := l.PushFront("a") // [a]
	e2 := l.PushFront("b") // [b a]
	e3 := l.PushFront("c") // [c b a]

	v, ok := l.Remove(e2) // [c a]
	if !ok || v != "b" {
		t.Fatalf("Remove() = %q, %v", v, ok)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
	if got := l.Prev(e1); got != e3 {
		t.Fatalf("Prev(e1) = %d, want %d", got, e3)
	}
	if _, ok := l.Value(e2); ok {
		t.Fatal("removed slot should not hold a value")
	}

	e4 := l.PushFront("d")
	if e4 != e2 {
		t.Fatalf("PushFront() = %d, want reused slot %d", e4, e2)
	}
	if got := listValues(l); !equalStrings(got, []string{"d", "c", "a"}) {
		t.Fatalf("values = %v", got)
	}
}

func TestLinkedListRemoveOnlyNode(t *testing.T) {
	l := newLinkedList[string]()
	e := l.PushFront("a")
	l.Remove(e)
	if l.Front() != nilIndex || l.Back() != nilIndex {
		t.Fatalf("head/tail = %d/%d, want none", l.Front(), l.Back())
	}
}

func TestLinkedListIgnoreInvalidIndices(t *testing.T) {
	l := newLinkedList[string]()
	e := l.PushFront("a")

	l.MoveToFront(42)
	l.MoveToFront(nilIndex)
	if _, ok := l.Remove(42); ok {
		t.Fatal("remove of unknown index should fail")
	}
	if _, ok := l.Remove(nilIndex); ok {
		t.Fatal("remove of none should fail")
	}
	if l.Len() != 1 {
		t.Fatalf("len after invalid operations = %d, want 1", l.Len())
	}

	l.Remove(e)
	if _, ok := l.Remove(e); ok {
		t.Fatal("double remove should fail")
	}
	if l.Len() != 0 {
		t.Fatalf("len = %d, want 0", l.Len())
	}
}
