// Package report collects recoverable conditions raised while running a core
// operation so they can be returned next to the primary result.
package report

import "sort"

type Kind string

const (
	MalformedIdentifier Kind = "malformed_identifier"
	DecodeMismatch      Kind = "decode_mismatch"
	UnmatchedPseudonym  Kind = "unmatched_pseudonym"
	PolicyLookupMiss    Kind = "policy_lookup_miss"
	UnknownAttendanceID Kind = "unknown_attendance_id"
	UnreadableMark      Kind = "unreadable_mark"
)

type Entry struct {
	Kind   Kind   `json:"kind"`
	Key    string `json:"key"`
	Detail string `json:"detail,omitempty"`
}

// Report is not safe for concurrent use; each run owns its own.
type Report struct {
	Entries []Entry `json:"entries"`
}

func New() *Report { return &Report{Entries: []Entry{}} }

func (r *Report) Add(kind Kind, key, detail string) {
	r.Entries = append(r.Entries, Entry{Kind: kind, Key: key, Detail: detail})
}

// Merge appends all entries of o (nil-safe).
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.Entries = append(r.Entries, o.Entries...)
}

func (r *Report) Count(kind Kind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Keys returns the distinct keys recorded for kind, sorted.
func (r *Report) Keys(kind Kind) []string {
	if r == nil {
		return nil
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, e := range r.Entries {
		if e.Kind != kind {
			continue
		}
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		out = append(out, e.Key)
	}
	sort.Strings(out)
	return out
}

func (r *Report) Empty() bool { return r == nil || len(r.Entries) == 0 }

// Counts summarizes the report by kind.
func (r *Report) Counts() map[Kind]int {
	out := map[Kind]int{}
	if r == nil {
		return out
	}
	for _, e := range r.Entries {
		out[e.Kind]++
	}
	return out
}
