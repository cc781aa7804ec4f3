package signals

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Rank returns a copy of rows ordered for the email summary: golden cross
// first, then volume spike, then distance above the 60-day average, then day
// change, all descending. Missing values and error rows sort last; ties keep
// input order. Reports keep input order and never use this.
func Rank(rows []Row) []Row {
	ranked := make([]Row, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.HasError() != b.HasError() {
			return !a.HasError()
		}
		if a.GoldenCross != b.GoldenCross {
			return a.GoldenCross
		}
		if a.VolumeSpike != b.VolumeSpike {
			return a.VolumeSpike
		}
		if c := compareNullDesc(a.AboveMA60Pct, b.AboveMA60Pct); c != 0 {
			return c < 0
		}
		return compareNullDesc(a.DayChangePct, b.DayChangePct) < 0
	})

	return ranked
}

// Top returns the first n ranked rows, skipping error notes.
func Top(rows []Row, n int) []Row {
	ranked := Rank(rows)
	out := make([]Row, 0, n)
	for _, r := range ranked {
		if len(out) == n {
			break
		}
		if !r.HasError() {
			out = append(out, r)
		}
	}
	return out
}

// compareNullDesc returns -1 when a sorts before b in descending order with
// nulls last, 1 when after and 0 when equal.
func compareNullDesc(a, b decimal.NullDecimal) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	return -a.Decimal.Cmp(b.Decimal)
}
