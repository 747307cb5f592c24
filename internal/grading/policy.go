package grading

import (
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-coe/internal/report"
)

// Defaults applied when a course has no policy row.
const (
	DefaultMaxCIE  = 50.0
	DefaultMaxSEE  = 50.0
	DefaultCredits = 0.0
)

// Policy is the grading profile of a course. MaxSEE == 0 marks an
// internal-only course; Credits == 0 a non-credit one.
type Policy struct {
	CourseCode string  `json:"course_code" yaml:"course_code"`
	Title      string  `json:"title,omitempty" yaml:"title"`
	Credits    float64 `json:"credits" yaml:"credits"`
	MaxCIE     float64 `json:"max_cie" yaml:"max_cie"`
	MaxSEE     float64 `json:"max_see" yaml:"max_see"`
}

func (p Policy) InternalOnly() bool { return p.MaxSEE == 0 }

func DefaultPolicy(code string) Policy {
	return Policy{CourseCode: code, Credits: DefaultCredits, MaxCIE: DefaultMaxCIE, MaxSEE: DefaultMaxSEE}
}

// PolicyTable is the resolved policy for every course a grading run touches.
type PolicyTable map[string]Policy

func (t PolicyTable) Lookup(code string) Policy {
	if p, ok := t[normCode(code)]; ok {
		return p
	}
	return DefaultPolicy(normCode(code))
}

// ResolvePolicies builds the table used by a grading run. Courses referenced by
// records but missing from policies fall back to the defaults and are reported
// once each as PolicyLookupMiss.
func ResolvePolicies(records []Record, policies []Policy) (PolicyTable, *report.Report) {
	rep := report.New()
	known := make(map[string]Policy, len(policies))
	for _, p := range policies {
		p.CourseCode = normCode(p.CourseCode)
		known[p.CourseCode] = p
	}

	table := PolicyTable{}
	var missing []string
	for _, r := range records {
		code := normCode(r.CourseCode)
		if _, done := table[code]; done {
			continue
		}
		if p, ok := known[code]; ok {
			table[code] = p
			continue
		}
		table[code] = DefaultPolicy(code)
		missing = append(missing, code)
	}
	sort.Strings(missing)
	for _, code := range missing {
		rep.Add(report.PolicyLookupMiss, code, "defaults applied: max_cie=50 max_see=50 credits=0")
	}
	return table, rep
}

func normCode(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
