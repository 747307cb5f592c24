// Package bundle turns a seat allocation into anonymized evaluation bundles and
// decodes the evaluators' filled bundles back onto real students.
package bundle

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"

	"github.com/mind-engage/mindengage-coe/internal/seating"
)

// MaxBundleSize is the largest number of scripts in one evaluator bundle.
const MaxBundleSize = 20

// Row is one line of an evaluator sheet. Locked rows belong to students who
// did not write the paper and show their status instead of entry cells.
type Row struct {
	Seq       int            `json:"seq"`
	Pseudonym string         `json:"pseudonym"`
	Locked    bool           `json:"locked"`
	Status    seating.Status `json:"status,omitempty"`
}

// Sheet is the externally visible artifact for one bundle. It carries no real
// student identity.
type Sheet struct {
	BundleID   string `json:"bundle_id"`
	RoomNumber string `json:"room_no"`
	CourseCode string `json:"course_code"`
	Seq        int    `json:"seq"`
	Of         int    `json:"of"`
	Rows       []Row  `json:"rows"`
}

type KeyEntry struct {
	Pseudonym  string         `json:"pseudonym"`
	RoomNumber string         `json:"room_no"`
	CourseCode string         `json:"course_code"`
	StudentID  string         `json:"student_id"`
	BundleID   string         `json:"bundle_id"`
	Status     seating.Status `json:"status"`
}

// Key is the master secret key: the only artifact that maps pseudonyms back
// to students.
type Key struct {
	Entries []KeyEntry `json:"entries"`
}

// NewRand returns a generator for one MakeBundles call. A zero seed draws one
// from crypto/rand.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err == nil {
			seed = int64(binary.LittleEndian.Uint64(b[:]))
		} else {
			seed = 1
		}
	}
	return rand.New(rand.NewSource(seed))
}

// MakeBundles groups seats by (room, course), orders each group by seat and
// splits it into bundles of at most MaxBundleSize rows.
func MakeBundles(seats []seating.Assignment, rng *rand.Rand) ([]Sheet, Key) {
	return MakeBundlesSized(seats, MaxBundleSize, rng)
}

// MakeBundlesSized is MakeBundles with a smaller bundle size; sizes outside
// 1..MaxBundleSize use MaxBundleSize.
func MakeBundlesSized(seats []seating.Assignment, size int, rng *rand.Rand) ([]Sheet, Key) {
	if size <= 0 || size > MaxBundleSize {
		size = MaxBundleSize
	}
	if rng == nil {
		rng = NewRand(0)
	}

	type groupKey struct{ room, course string }
	groups := map[groupKey][]seating.Assignment{}
	var keys []groupKey
	for _, s := range seats {
		k := groupKey{s.RoomNumber, s.CourseCode}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], s)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].room != keys[j].room {
			return keys[i].room < keys[j].room
		}
		return keys[i].course < keys[j].course
	})

	var sheets []Sheet
	key := Key{Entries: make([]KeyEntry, 0, len(seats))}
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return g[i].SeatNumber < g[j].SeatNumber })
		n := (len(g) + size - 1) / size
		for i := 0; i < n; i++ {
			end := (i + 1) * size
			if end > len(g) {
				end = len(g)
			}
			chunk := g[i*size : end]
			names := Pseudonyms(rng, len(chunk))
			sh := Sheet{
				BundleID:   fmt.Sprintf("%s_%s_%02d", k.room, k.course, i+1),
				RoomNumber: k.room,
				CourseCode: k.course,
				Seq:        i + 1,
				Of:         n,
				Rows:       make([]Row, 0, len(chunk)),
			}
			for j, s := range chunk {
				st := s.Status
				if st == "" {
					st = seating.StatusPresent
				}
				row := Row{Seq: j + 1, Pseudonym: names[j]}
				if st != seating.StatusPresent {
					row.Locked, row.Status = true, st
				}
				sh.Rows = append(sh.Rows, row)
				key.Entries = append(key.Entries, KeyEntry{
					Pseudonym:  names[j],
					RoomNumber: k.room,
					CourseCode: k.course,
					StudentID:  s.StudentID,
					BundleID:   sh.BundleID,
					Status:     st,
				})
			}
			sheets = append(sheets, sh)
		}
	}
	return sheets, key
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Pseudonyms returns n distinct codes of two letters and two digits, such as
// "VP01". n must not exceed the 67600 possible codes.
func Pseudonyms(rng *rand.Rand, n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(out) < n {
		code := fmt.Sprintf("%c%c%02d", letters[rng.Intn(26)], letters[rng.Intn(26)], rng.Intn(100))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
