package model

import (
	"slices"
	"sync"
)

// AddrSet is a set of addresses safe for concurrent use. It is shared by
// reference: holders of the same *AddrSet see each other's additions.
type AddrSet struct {
	mu sync.RWMutex
	m  map[uint64]struct{}
}

func NewAddrSet(addrs ...uint64) *AddrSet {
	s := &AddrSet{m: make(map[uint64]struct{}, len(addrs))}
	for _, a := range addrs {
		s.m[a] = struct{}{}
	}
	return s
}

// Add inserts addr and reports whether it was new.
func (s *AddrSet) Add(addr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[uint64]struct{})
	}
	if _, ok := s.m[addr]; ok {
		return false
	}
	s.m[addr] = struct{}{}
	return true
}

func (s *AddrSet) Has(addr uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[addr]
	return ok
}

func (s *AddrSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Sorted returns the members in ascending order.
func (s *AddrSet) Sorted() []uint64 {
	s.mu.RLock()
	out := make([]uint64, 0, len(s.m))
	for a := range s.m {
		out = append(out, a)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Max returns the largest member, or false for an empty set.
func (s *AddrSet) Max() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		hi uint64
		ok bool
	)
	for a := range s.m {
		if !ok || a > hi {
			hi, ok = a, true
		}
	}
	return hi, ok
}
