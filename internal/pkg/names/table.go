// Package names resolves a display name to the probability that its bearer
// is male, using a static first-name table.
package names

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/mednat/tandem-extras/internal/pkg/hash"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidProbability is returned when a table entry is outside [0,1].
var ErrInvalidProbability = errors.New("name probability out of range")

// MatchKind reports how a name was resolved against the table.
type MatchKind int

const (
	// MatchNone means no form of the name is in the table.
	MatchNone MatchKind = iota
	// MatchExact means the lowercased name was found as-is.
	MatchExact
	// MatchFolded means the name was found after stripping diacritics.
	MatchFolded
	// MatchTokens means one or more hyphen/space separated parts were found.
	MatchTokens
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFolded:
		return "folded"
	case MatchTokens:
		return "tokens"
	default:
		return "none"
	}
}

// Table maps lowercase first names to a male probability.
type Table struct {
	probs  map[string]float64
	digest uint64
}

// NewTable builds a table from name probabilities. Keys are lowercased.
func NewTable(probs map[string]float64) (*Table, error) {
	t := &Table{probs: make(map[string]float64, len(probs))}
	for name, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: %q=%v", ErrInvalidProbability, name, p)
		}
		t.probs[strings.ToLower(name)] = p
	}
	t.digest = digest(t.probs)
	return t, nil
}

// LoadTable decodes a JSON object of name -> probability.
func LoadTable(r io.Reader) (*Table, error) {
	var probs map[string]float64
	if err := json.NewDecoder(r).Decode(&probs); err != nil {
		return nil, fmt.Errorf("failed to decode name table: %w", err)
	}
	return NewTable(probs)
}

// LoadFile reads a JSON name table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open name table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// Len returns the number of names in the table.
func (t *Table) Len() int {
	return len(t.probs)
}

// Digest returns a content digest of the table, stable across load order.
func (t *Table) Digest() uint64 {
	return t.digest
}

// MaleProbability looks up rawName. The exact lowercased form is tried
// first, then its diacritic-stripped form, then the mean over the
// hyphen/space separated tokens that resolve.
func (t *Table) MaleProbability(rawName string) (float64, MatchKind) {
	name := strings.ToLower(strings.TrimSpace(rawName))
	if name == "" {
		return 0, MatchNone
	}
	if p, ok := t.probs[name]; ok {
		return p, MatchExact
	}
	if p, ok := t.probs[Fold(name)]; ok {
		return p, MatchFolded
	}

	tokens := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	var (
		sum   float64
		found int
	)
	for _, tok := range tokens {
		p, ok := t.probs[tok]
		if !ok {
			p, ok = t.probs[Fold(tok)]
		}
		if ok {
			sum += p
			found++
		}
	}
	if found == 0 {
		return 0, MatchNone
	}
	return sum / float64(found), MatchTokens
}

// Fold removes combining marks (accents, diacritics) from s.
func Fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

func digest(probs map[string]float64) uint64 {
	keys := make([]string, 0, len(probs))
	for k := range probs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(probs[k], 'g', -1, 64))
		b.WriteByte('\n')
	}
	return hash.Hash([]byte(b.String()))
}
