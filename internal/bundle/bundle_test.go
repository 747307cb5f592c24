package bundle

import (
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coe/internal/report"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

var pseudonymRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}$`)

func seats(room, course string, n int) []seating.Assignment {
	out := make([]seating.Assignment, n)
	for i := range out {
		out[i] = seating.Assignment{
			RoomNumber: room,
			SeatNumber: n - i, // deliberately out of order
			StudentID:  fmt.Sprintf("1AM25CS%03d", n-i),
			CourseCode: course,
			Status:     seating.StatusPresent,
		}
	}
	return out
}

func TestMakeBundlesGroupsAndChunks(t *testing.T) {
	in := append(seats("102", "21CS32", 45), seats("101", "21MAT31", 3)...)
	sheets, key := MakeBundles(in, NewRand(7))

	require.Len(t, sheets, 4)
	assert.Equal(t, "101_21MAT31_01", sheets[0].BundleID)
	assert.Equal(t, []string{"102_21CS32_01", "102_21CS32_02", "102_21CS32_03"},
		[]string{sheets[1].BundleID, sheets[2].BundleID, sheets[3].BundleID})
	assert.Len(t, sheets[1].Rows, 20)
	assert.Len(t, sheets[2].Rows, 20)
	assert.Len(t, sheets[3].Rows, 5)
	assert.Equal(t, 3, sheets[3].Of)
	assert.Len(t, key.Entries, 48)

	// key follows seat order within a group
	first := key.Entries[3]
	assert.Equal(t, "102_21CS32_01", first.BundleID)
	assert.Equal(t, "1AM25CS001", first.StudentID)
}

func TestPseudonymsUniqueWithinBundle(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		sheets, _ := MakeBundles(seats("1", "X", 20), NewRand(seed))
		seen := map[string]bool{}
		for _, r := range sheets[0].Rows {
			assert.Regexp(t, pseudonymRe, r.Pseudonym)
			assert.False(t, seen[r.Pseudonym], "seed %d repeated %s", seed, r.Pseudonym)
			seen[r.Pseudonym] = true
		}
	}
}

func TestSameSeedSameBundles(t *testing.T) {
	a, ka := MakeBundles(seats("1", "X", 25), NewRand(42))
	b, kb := MakeBundles(seats("1", "X", 25), NewRand(42))
	assert.Equal(t, a, b)
	assert.Equal(t, ka, kb)
}

func TestLockedRowsForNonPresent(t *testing.T) {
	in := seats("1", "X", 3)
	in[0].Status = seating.StatusAbsent // seat 3
	sheets, _ := MakeBundles(in, NewRand(1))
	rows := sheets[0].Rows
	assert.False(t, rows[0].Locked)
	assert.False(t, rows[1].Locked)
	assert.True(t, rows[2].Locked)
	assert.Equal(t, seating.StatusAbsent, rows[2].Status)
}

func TestDecodeRoundTrip(t *testing.T) {
	in := append(seats("1", "21CS32", 23), seats("2", "21MAT31", 4)...)
	sheets, key := MakeBundles(in, NewRand(99))

	want := map[string]float64{}
	var filled []FilledSheet
	for i, sh := range sheets {
		fs := FilledSheet{BundleID: sh.BundleID}
		for j, r := range sh.Rows {
			v := float64(30 + i*10 + j)
			fs.Rows = append(fs.Rows, FilledRow{Pseudonym: r.Pseudonym, Value: strconv.FormatFloat(v, 'f', -1, 64)})
			for _, e := range key.Entries {
				if e.BundleID == sh.BundleID && e.Pseudonym == r.Pseudonym {
					want[e.StudentID+"|"+e.CourseCode] = v
				}
			}
		}
		filled = append(filled, fs)
	}

	got, rep := Decode(key, filled)
	assert.True(t, rep.Empty())
	require.Len(t, got, len(in))
	for _, d := range got {
		assert.Equal(t, want[d.StudentID+"|"+d.CourseCode], d.SEE, d.StudentID)
		assert.Equal(t, seating.StatusPresent, d.Status)
	}
}

func TestDecodeDropsUnmatchedAndMismatchedSheets(t *testing.T) {
	key := Key{Entries: []KeyEntry{
		{Pseudonym: "AB12", StudentID: "S1", CourseCode: "C", BundleID: "1_C_01", Status: seating.StatusPresent},
		{Pseudonym: "CD34", StudentID: "S2", CourseCode: "C", BundleID: "1_C_01", Status: seating.StatusAbsent},
		{Pseudonym: "AB12", StudentID: "S3", CourseCode: "D", BundleID: "2_D_01", Status: seating.StatusPresent},
		{Pseudonym: "EF56", StudentID: "S4", CourseCode: "D", BundleID: "2_D_01", Status: seating.StatusPresent},
	}}
	got, rep := Decode(key, []FilledSheet{
		{BundleID: "1_C_01", Rows: []FilledRow{
			{Pseudonym: " ab12 ", Value: "67 "},
			{Pseudonym: "CD34", Value: "ABSENT"},
			{Pseudonym: "ZZ99", Value: "40"},
			{Pseudonym: "", Value: ""},
		}},
		{Rows: []FilledRow{{Pseudonym: "QQ11", Value: "10"}}},
		{Rows: []FilledRow{{Pseudonym: "EF56", Value: "MP"}, {Pseudonym: "AB12", Value: "1"}}},
	})

	require.Len(t, got, 3)
	assert.Equal(t, Decoded{StudentID: "S1", CourseCode: "C", BundleID: "1_C_01", Pseudonym: "AB12", SEE: 67, Status: seating.StatusPresent}, got[0])
	assert.Equal(t, seating.StatusAbsent, got[1].Status)
	assert.Equal(t, "S4", got[2].StudentID)
	assert.Equal(t, seating.StatusMalpractice, got[2].Status)

	assert.Equal(t, 1, rep.Count(report.DecodeMismatch))
	assert.Equal(t, []string{"sheet#2"}, rep.Keys(report.DecodeMismatch))
	// ZZ99 unknown, AB12 ambiguous without a bundle id
	assert.Equal(t, []string{"AB12", "ZZ99"}, rep.Keys(report.UnmatchedPseudonym))
}

func TestDecodeReportsUnreadableMarks(t *testing.T) {
	key := Key{Entries: []KeyEntry{
		{Pseudonym: "AB12", StudentID: "S1", CourseCode: "C", BundleID: "1_C_01", Status: seating.StatusPresent},
		{Pseudonym: "CD34", StudentID: "S2", CourseCode: "C", BundleID: "1_C_01", Status: seating.StatusPresent},
		{Pseudonym: "EF56", StudentID: "S3", CourseCode: "C", BundleID: "1_C_01", Status: seating.StatusAbsent},
		{Pseudonym: "GH78", StudentID: "S4", CourseCode: "C", BundleID: "1_C_01", Status: seating.StatusPresent},
	}}
	got, rep := Decode(key, []FilledSheet{{BundleID: "1_C_01", Rows: []FilledRow{
		{Pseudonym: "AB12", Value: " "},
		{Pseudonym: "CD34", Value: "4O"},
		{Pseudonym: "EF56", Value: ""},
		{Pseudonym: "GH78", Value: "wh"},
	}}})

	require.Len(t, got, 4)
	assert.Equal(t, 0.0, got[0].SEE)
	assert.Equal(t, seating.StatusPresent, got[0].Status)
	assert.Equal(t, seating.StatusWithheld, got[3].Status)
	// locked rows and status tokens are not reported
	assert.Equal(t, []string{"AB12", "CD34"}, rep.Keys(report.UnreadableMark))
	assert.Zero(t, rep.Count(report.UnmatchedPseudonym))
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in     string
		see    float64
		status seating.Status
	}{
		{"72", 72, seating.StatusPresent},
		{"72.5 marks", 72.5, seating.StatusPresent},
		{"wh", 0, seating.StatusWithheld},
		{"mal", 0, seating.StatusMalpractice},
		{"", 0, seating.StatusPresent},
		{"NaN", 0, seating.StatusPresent},
		{"??", 0, seating.StatusPresent},
	}
	for _, c := range cases {
		see, st := ParseValue(c.in)
		assert.Equal(t, c.see, see, c.in)
		assert.Equal(t, c.status, st, c.in)
	}
}
