package domain

import (
	"strconv"
	"strings"
)

// IDSet is an ordered set of event ids. The persisted representation is a
// comma-delimited string with possible leading/trailing delimiters and,
// in rows written by earlier versions, duplicate tokens. Parsing tolerates
// both; serialization always produces a clean form.
type IDSet []int64

// ParseIDSet splits a comma-delimited id string. Empty and non-numeric
// tokens are skipped rather than treated as errors so that historical rows
// stay readable.
func ParseIDSet(s string) IDSet {
	parts := strings.Split(s, ",")
	set := make(IDSet, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		set = append(set, id)
	}
	return set
}

// Contains reports exact-token membership.
func (s IDSet) Contains(id int64) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id unless it is already a member.
func (s IDSet) Add(id int64) IDSet {
	if s.Contains(id) {
		return s
	}
	return append(s, id)
}

// Remove strips every occurrence of id, preserving the order of the rest.
// Removing a duplicated token left behind by older rows removes all copies.
func (s IDSet) Remove(id int64) IDSet {
	out := make(IDSet, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// String renders the canonical comma-delimited form.
func (s IDSet) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}
