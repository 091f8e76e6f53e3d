// Package assetid generates human-readable parcel identifiers of the form
//
//	<STATE:2><DISTRICT:3><epoch-millis:last 6><random:3>
//
// e.g. "KAMYS417230042". Uniqueness is not guaranteed here; the land store's
// unique constraint on asset_id catches collisions and the registry retries.
package assetid

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	dErrors "landledger/pkg/domain-errors"
)

const (
	stateLen    = 2
	districtLen = 3
	millisMod   = 1_000_000
	randomMod   = 1000
)

// Generator builds asset ids. The zero value uses math/rand/v2.
type Generator struct {
	randN func(n int) int
}

// New returns a Generator. randN may be nil.
func New(randN func(n int) int) *Generator {
	return &Generator{randN: randN}
}

// Generate returns an asset id for a parcel in state/district created at now.
func (g *Generator) Generate(state, district string, now time.Time) (string, error) {
	state = strings.TrimSpace(state)
	district = strings.TrimSpace(district)
	if state == "" {
		return "", dErrors.New(dErrors.CodeValidation, "state is required for asset id")
	}
	if district == "" {
		return "", dErrors.New(dErrors.CodeValidation, "district is required for asset id")
	}

	randN := rand.IntN
	if g != nil && g.randN != nil {
		randN = g.randN
	}

	millis := now.UnixMilli() % millisMod
	return fmt.Sprintf("%s%s%06d%03d",
		strings.ToUpper(prefix(state, stateLen)),
		strings.ToUpper(prefix(district, districtLen)),
		millis,
		randN(randomMod),
	), nil
}

// prefix returns the first n runes of s, or all of s when shorter.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
