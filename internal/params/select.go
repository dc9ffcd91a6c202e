package params

import (
	"fmt"
	"math"
	"sort"
)

// SelectBest returns the set with the smallest numeric value of key. The
// comparison is strict, so the first of several equal minima wins.
func SelectBest(sets []*Set, key string) (*Set, error) {
	if len(sets) == 0 {
		return nil, ErrEmptyTable
	}
	var best *Set
	var bestVal float64
	for i, s := range sets {
		v, err := s.Float(key)
		if err != nil {
			return nil, fmt.Errorf("set %d: %w", i+1, err)
		}
		if best == nil || v < bestVal {
			best, bestVal = s, v
		}
	}
	return best, nil
}

// Group holds every set sharing one optimizer score. Key is the score token
// exactly as written in the table; Value is its parsed form.
type Group struct {
	Key   string
	Value float64
	Sets  []*Set
}

// GroupByKey partitions sets by the raw token of key, in first-occurrence
// order. Tokens are compared as text: "1.0" and "1.00" are distinct groups.
func GroupByKey(sets []*Set, key string) ([]*Group, error) {
	var groups []*Group
	byKey := make(map[string]*Group)
	for i, s := range sets {
		tok, err := s.Value(key)
		if err != nil {
			return nil, fmt.Errorf("set %d: %w", i+1, err)
		}
		g, ok := byKey[tok]
		if !ok {
			v, err := parseFloat(tok)
			if err != nil || math.IsNaN(v) {
				return nil, fmt.Errorf("set %d: %w", i+1, &FieldError{Field: key, Value: tok, Reason: "not a number"})
			}
			g = &Group{Key: tok, Value: v}
			byKey[tok] = g
			groups = append(groups, g)
		}
		g.Sets = append(g.Sets, s)
	}
	return groups, nil
}

// SortGroups orders groups ascending by value. Distinct tokens with the same
// value are ordered by their text.
func SortGroups(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Value != groups[j].Value {
			return groups[i].Value < groups[j].Value
		}
		return groups[i].Key < groups[j].Key
	})
}
