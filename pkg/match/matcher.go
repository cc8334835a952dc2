// Package match ranks near-duplicate candidates for a fingerprint against
// a corpus. Pure and stateless: safe for any number of concurrent calls.
package match

import (
	"sort"
	"time"

	"github.com/hatchmark/hatchmark/pkg/phash"
)

// Thresholds fixed for the two comparison contexts. Registration applies
// the higher bar: a candidate at or above RegisterThreshold is treated as
// a duplicate of an existing certificate. VerifyThreshold is the looser
// bar for general lookups.
const (
	RegisterThreshold = 90
	VerifyThreshold   = 70
)

// Entry is one corpus member.
type Entry struct {
	ID        string
	Hash      phash.Fingerprint
	CreatedAt time.Time
}

// Match is one ranked near-duplicate.
type Match struct {
	ID         string
	Similarity int
	Distance   int
	CreatedAt  time.Time
}

// Result is the ranked outcome of a corpus scan.
type Result struct {
	Matches []Match
	// ExactMatch is the best entry at distance zero, nil if none.
	ExactMatch *Match
}

// Rank scans the corpus linearly, keeps entries at or above threshold,
// sorts them by similarity descending and breaks ties by earliest
// CreatedAt. Entries with an incomparable hash length score the full bit
// width and naturally fall below any useful threshold.
//
// Linear scan is deliberate: the corpus is small today. When O(n) becomes
// the bottleneck, swap this for a sublinear structure (BK-tree keyed by
// Hamming distance, or bucketed LSH) behind the same signature.
func Rank(candidate phash.Fingerprint, corpus []Entry, threshold int) Result {
	bitWidth := candidate.Bits()
	var res Result

	for _, e := range corpus {
		d := phash.Distance(candidate, e.Hash)
		sim := phash.Similarity(d, bitWidth)
		if sim < threshold {
			continue
		}
		m := Match{ID: e.ID, Similarity: sim, Distance: d, CreatedAt: e.CreatedAt}
		res.Matches = append(res.Matches, m)
	}

	sort.SliceStable(res.Matches, func(i, j int) bool {
		a, b := res.Matches[i], res.Matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	for i := range res.Matches {
		if res.Matches[i].Distance == 0 {
			res.ExactMatch = &res.Matches[i]
			break
		}
	}
	return res
}
