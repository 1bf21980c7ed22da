// Package token mints and recognizes the opaque placeholder tokens
// spliced into sanitized text. A token is a single opening sentinel
// rune, a lowercase hex id of at least eight characters, and a single
// closing sentinel rune. The default sentinels sit in the Unicode
// Private Use Area so they are vanishingly unlikely to occur in
// natural text.
package token

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// DefaultOpen and DefaultClose delimit tokens unless the operator
	// overrides the placeholder sentinels in settings.
	DefaultOpen  = ''
	DefaultClose = ''

	baseIDLen = 8
	maxIDLen  = 16
	// widenAfter is the number of collision retries at a given id
	// width before the id grows by four hex digits.
	widenAfter = 8
)

// Generator mints tokens from a cryptographically seeded PRNG. It is
// safe for concurrent use.
type Generator struct {
	prefix rune
	suffix rune

	mu  sync.Mutex
	rng *mrand.Rand
}

// New returns a Generator using the given sentinels, falling back to
// the defaults when either is zero.
func New(prefix, suffix rune) *Generator {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("token: crypto seed unavailable: " + err.Error())
	}
	return NewSeeded(prefix, suffix,
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]))
}

// NewSeeded returns a Generator with a fixed PRNG seed. Redaction
// output becomes byte-stable for a fixed seed, which the tests rely
// on.
func NewSeeded(prefix, suffix rune, hi, lo uint64) *Generator {
	if prefix == 0 {
		prefix = DefaultOpen
	}
	if suffix == 0 {
		suffix = DefaultClose
	}
	return &Generator{
		prefix: prefix,
		suffix: suffix,
		rng:    mrand.New(mrand.NewPCG(hi, lo)),
	}
}

// Mint returns a fresh token whose id does not satisfy inUse. It
// retries on collision and widens the id by four hex digits after
// every eight consecutive collisions, up to sixteen digits.
func (g *Generator) Mint(inUse func(token string) bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	width := baseIDLen
	var tok string
	for {
		for i := 0; i < widenAfter; i++ {
			tok = g.mint(width)
			if inUse == nil || !inUse(tok) {
				return tok
			}
		}
		if width >= maxIDLen {
			// 64 bits of id space; a collision here means inUse is
			// lying, so hand back the last candidate.
			return tok
		}
		width += 4
	}
}

func (g *Generator) mint(width int) string {
	buf := make([]byte, width/2)
	for i := range buf {
		buf[i] = byte(g.rng.UintN(256))
	}
	var b strings.Builder
	b.Grow(len(string(g.prefix)) + width + len(string(g.suffix)))
	b.WriteRune(g.prefix)
	b.WriteString(hex.EncodeToString(buf))
	b.WriteRune(g.suffix)
	return b.String()
}

// MaxLen reports the maximum token length in runes, the bound the
// streaming rehydrator uses for its trailing window.
func (g *Generator) MaxLen() int {
	return maxIDLen + 2
}

// IsToken reports whether s is exactly one well-formed token.
func (g *Generator) IsToken(s string) bool {
	return IsToken(s, g.prefix, g.suffix)
}

// ExtractAll returns every well-formed token occurring in s, in
// order, with duplicates preserved.
func (g *Generator) ExtractAll(s string) []string {
	matches := Scan(s, g.prefix, g.suffix)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Token
	}
	return out
}

// Sentinels returns the generator's delimiter runes.
func (g *Generator) Sentinels() (prefix, suffix rune) {
	return g.prefix, g.suffix
}

// Match is one token occurrence inside a larger string. Offsets are
// byte positions suitable for splicing.
type Match struct {
	Token string
	Start int
	End   int
}

// IsToken reports whether s is exactly `prefix · hex{8,} · suffix`.
func IsToken(s string, prefix, suffix rune) bool {
	first, fw := utf8.DecodeRuneInString(s)
	if first != prefix {
		return false
	}
	last, lw := utf8.DecodeLastRuneInString(s)
	if last != suffix {
		return false
	}
	id := s[fw : len(s)-lw]
	return validID(id)
}

// Scan finds every token in s in one linear pass. Malformed spans (a
// prefix with no closing suffix, short or non-hex ids) are skipped.
func Scan(s string, prefix, suffix rune) []Match {
	var out []Match
	for i := 0; i < len(s); {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r != prefix {
			i += w
			continue
		}
		idStart := i + w
		j := idStart
		for j < len(s) {
			c := s[j]
			if !isHexLower(c) {
				break
			}
			j++
		}
		r2, w2 := utf8.DecodeRuneInString(s[j:])
		if r2 == suffix && j-idStart >= baseIDLen {
			out = append(out, Match{Token: s[i : j+w2], Start: i, End: j + w2})
			i = j + w2
			continue
		}
		i += w
	}
	return out
}

func validID(id string) bool {
	if len(id) < baseIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isHexLower(id[i]) {
			return false
		}
	}
	return true
}

func isHexLower(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
