// Package gset is a small ordered set kept as a sorted singly-linked list.
// Iteration order is ascending, which keeps class-id sets stable for display
// and for passing to the detector.
package gset

import (
	"cmp"
	"fmt"
	"iter"
	"strings"
)

type node[T cmp.Ordered] struct {
	value T
	next  *node[T]
}

type Set[T cmp.Ordered] struct {
	head *node[T]
	size int
}

func FromSlice[T cmp.Ordered](values []T) *Set[T] {
	s := &Set[T]{}
	s.Add(values...)
	return s
}

func (s *Set[T]) Add(values ...T) {
	for _, value := range values {
		s.add(value)
	}
}

func (s *Set[T]) add(value T) {
	previous, current := (*node[T])(nil), s.head
	for current != nil {
		if current.value == value {
			return
		}
		if current.value > value {
			break
		}
		previous, current = current, current.next
	}
	new_node := &node[T]{value: value, next: current}
	if previous == nil {
		s.head = new_node
	} else {
		previous.next = new_node
	}
	s.size++
}

func (s *Set[T]) Del(values ...T) {
	for _, value := range values {
		s.del(value)
	}
}

func (s *Set[T]) del(value T) {
	previous, current := (*node[T])(nil), s.head
	for current != nil {
		if current.value == value {
			if previous == nil {
				s.head = current.next
			} else {
				previous.next = current.next
			}
			s.size--
			return
		}
		previous, current = current, current.next
	}
}

func (s *Set[T]) Contains(value T) bool {
	for current := s.head; current != nil; current = current.next {
		if current.value == value {
			return true
		}
		if current.value > value {
			return false
		}
	}
	return false
}

func (s *Set[T]) Len() int { return s.size }

// Empty is true for both a zero Set and an exhausted one
func (s *Set[T]) Empty() bool { return s == nil || s.size == 0 }

func (s *Set[T]) Values() []T {
	if s == nil {
		return nil
	}
	values := make([]T, 0, s.size)
	for current := s.head; current != nil; current = current.next {
		values = append(values, current.value)
	}
	return values
}

func (s *Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if s == nil {
			return
		}
		for n := s.head; n != nil; n = n.next {
			if !yield(n.value) {
				return
			}
		}
	}
}

func (s *Set[T]) String() string {
	b := new(strings.Builder)
	b.WriteString("[ ")
	for e := range s.All() {
		fmt.Fprintf(b, "%v ", e)
	}
	b.WriteString("]")
	return b.String()
}
