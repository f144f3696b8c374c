package search

import "sort"

// set is a set of entry ids.
type set map[string]struct{}

func newSet(ids ...string) set {
	s := make(set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s set) add(id string) { s[id] = struct{}{} }

func (s set) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s set) addAll(o set) {
	for id := range o {
		s[id] = struct{}{}
	}
}

func (s set) clone() set {
	out := make(set, len(s))
	out.addAll(s)
	return out
}

func (s set) intersect(o set) set {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(set, len(small))
	for id := range small {
		if large.has(id) {
			out.add(id)
		}
	}
	return out
}

func (s set) minus(o set) set {
	out := make(set, len(s))
	for id := range s {
		if !o.has(id) {
			out.add(id)
		}
	}
	return out
}

// sorted returns the ids in ascending order, never nil.
func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
