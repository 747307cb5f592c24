package bundle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-coe/internal/report"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

// FilledRow is a pseudonym with whatever the evaluator typed in its total cell.
type FilledRow struct {
	Pseudonym string `json:"pseudonym"`
	Value     string `json:"value"`
}

// FilledSheet is an evaluator bundle returned with marks. BundleID is optional;
// without it pseudonyms are matched against the whole key.
type FilledSheet struct {
	BundleID string      `json:"bundle_id,omitempty"`
	Rows     []FilledRow `json:"rows"`
}

// Decoded is one SEE entry restored to its student.
type Decoded struct {
	StudentID  string         `json:"student_id"`
	CourseCode string         `json:"course_code"`
	RoomNumber string         `json:"room_no"`
	BundleID   string         `json:"bundle_id"`
	Pseudonym  string         `json:"pseudonym"`
	SEE        float64        `json:"see_raw"`
	Status     seating.Status `json:"exam_status"`
}

// Decode joins filled sheets to the master key. Pseudonyms that do not resolve
// to exactly one key entry are dropped and reported; a sheet where nothing
// resolves is skipped as a whole.
func Decode(key Key, sheets []FilledSheet) ([]Decoded, *report.Report) {
	rep := report.New()
	byBundle := map[string]map[string]KeyEntry{}
	global := map[string][]KeyEntry{}
	for _, e := range key.Entries {
		p := normPseudonym(e.Pseudonym)
		if byBundle[e.BundleID] == nil {
			byBundle[e.BundleID] = map[string]KeyEntry{}
		}
		byBundle[e.BundleID][p] = e
		global[p] = append(global[p], e)
	}

	var out []Decoded
	for i, sh := range sheets {
		label := sh.BundleID
		if label == "" {
			label = fmt.Sprintf("sheet#%d", i+1)
		}
		scoped, hasScope := byBundle[sh.BundleID]

		var matched []Decoded
		var unmatched []string
		for _, row := range sh.Rows {
			p := normPseudonym(row.Pseudonym)
			if len(p) <= 2 || p == "NAN" {
				continue
			}
			var entry KeyEntry
			var ok bool
			if hasScope {
				entry, ok = scoped[p]
			} else if cands := global[p]; len(cands) == 1 {
				entry, ok = cands[0], true
			}
			if !ok {
				unmatched = append(unmatched, p)
				continue
			}
			see, st := ParseValue(row.Value)
			if entry.Status != "" && entry.Status != seating.StatusPresent {
				see, st = 0, entry.Status
			} else if !readable(row.Value) {
				rep.Add(report.UnreadableMark, entry.Pseudonym, fmt.Sprintf("%s: %q recorded as 0", label, row.Value))
			}
			matched = append(matched, Decoded{
				StudentID:  entry.StudentID,
				CourseCode: entry.CourseCode,
				RoomNumber: entry.RoomNumber,
				BundleID:   entry.BundleID,
				Pseudonym:  entry.Pseudonym,
				SEE:        see,
				Status:     st,
			})
		}
		if len(matched) == 0 {
			rep.Add(report.DecodeMismatch, label, fmt.Sprintf("no pseudonym matched the key (%d rows dropped)", len(unmatched)))
			continue
		}
		for _, p := range unmatched {
			rep.Add(report.UnmatchedPseudonym, p, "dropped from "+label)
		}
		out = append(out, matched...)
	}
	return out, rep
}

// ParseValue reads an evaluator's total cell: a status token or a number.
// Blank or unreadable cells count as 0 marks.
func ParseValue(v string) (float64, seating.Status) {
	s := strings.ToUpper(strings.TrimSpace(v))
	switch s {
	case "AB", "ABSENT":
		return 0, seating.StatusAbsent
	case "MP", "MAL", "MALPRACTICE":
		return 0, seating.StatusMalpractice
	case "WH", "WITHHELD":
		return 0, seating.StatusWithheld
	}
	if f, ok := parseFloatLoose(s); ok {
		return f, seating.StatusPresent
	}
	return 0, seating.StatusPresent
}

// readable reports whether ParseValue understood v rather than falling back to 0.
func readable(v string) bool {
	_, ok := parseFloatLoose(v)
	if ok {
		return true
	}
	_, st := ParseValue(v)
	return st != seating.StatusPresent
}

// parseFloatLoose accepts "42" as well as "42 marks"; non-finite values are rejected.
func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, finite(v)
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, finite(v)
		}
	}
	return 0, false
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func normPseudonym(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
