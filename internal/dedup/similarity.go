package dedup

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// minContainedLength keeps very short descriptions from matching everything
// that happens to contain them.
const minContainedLength = 4

var editCosts = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Similarity scores two descriptions between 0 and 1 after normalization.
// One description containing the other scores 1, which covers institutions
// appending reference numbers or location suffixes to a merchant name.
func Similarity(a, b string) float64 {
	na, nb := ledger.NormalizeDescription(a), ledger.NormalizeDescription(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= minContainedLength && strings.Contains(longer, shorter) {
		return 1
	}

	ra, rb := []rune(na), []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	distance := levenshtein.DistanceForStrings(ra, rb, editCosts)
	return 1 - float64(distance)/float64(maxLen)
}
