package model

import "strings"

// TagSet holds the road attributes found around one coordinate, keyed by
// OpenStreetMap tag name. An empty TagSet means "no data".
type TagSet map[string]string

// Normalize returns a copy with lower-cased, trimmed keys and values.
// Keys that collapse to the same normalized name keep the value of the
// lexically smallest original key.
func (t TagSet) Normalize() TagSet {
	out := make(TagSet, len(t))
	origin := make(map[string]string, len(t))
	for k, v := range t {
		nk := strings.ToLower(strings.TrimSpace(k))
		if nk == "" {
			continue
		}
		if prev, ok := origin[nk]; ok && prev < k {
			continue
		}
		origin[nk] = k
		out[nk] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// Get returns the value for key, or "" when absent.
func (t TagSet) Get(key string) string {
	return t[key]
}

// Clone returns a shallow copy; nil stays an empty, non-nil set.
func (t TagSet) Clone() TagSet {
	out := make(TagSet, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
