// Package codegen mints and validates coupon codes.
//
// A code is a 6-character prefix ("FF" + 4 user characters) followed by an
// 8-character random serial, all drawn from A-Z and 0-9.
package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Alphabet is the symbol set for prefixes and serials.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// PrefixLead is the fixed start of every prefix.
	PrefixLead = "FF"
	// UserPrefixLength is the number of user-chosen prefix characters.
	UserPrefixLength = 4
	// PrefixLength is the full prefix length.
	PrefixLength = len(PrefixLead) + UserPrefixLength
	// SerialLength is the random part of a code.
	SerialLength = 8
	// CodeLength is the total length of a coupon code.
	CodeLength = PrefixLength + SerialLength

	// maxUnbiased is the largest multiple of len(Alphabet) that fits in a byte.
	// Bytes at or above it are discarded so every symbol is equally likely.
	maxUnbiased = 256 - 256%len(Alphabet)
)

var (
	ErrInvalidPrefix = errors.New("invalid prefix")
	ErrInvalidCode   = errors.New("invalid coupon code")
)

// Generator draws random serials. The zero value is not usable; use New.
//
// A Generator built on crypto/rand is safe for concurrent use. A Generator
// built with NewWithReader is only as safe as its reader, so give each
// concurrent run its own instance.
type Generator struct {
	src io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{src: rand.Reader}
}

// NewWithReader returns a Generator reading entropy from r.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{src: r}
}

// Serial returns one random serial of SerialLength symbols.
func (g *Generator) Serial() (string, error) {
	var out [SerialLength]byte
	if err := g.fill(out[:]); err != nil {
		return "", err
	}
	return string(out[:]), nil
}

// Candidates returns up to desired distinct codes under prefix.
// At most desired*5 serials are drawn; if that cap is hit the result holds
// fewer than desired codes. Order is the order codes were first drawn.
func (g *Generator) Candidates(prefix string, desired int) ([]string, error) {
	if desired <= 0 {
		return nil, nil
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, desired)
	codes := make([]string, 0, desired)
	maxAttempts := desired * 5

	var buf [SerialLength]byte
	for attempts := 0; len(codes) < desired && attempts < maxAttempts; attempts++ {
		if err := g.fill(buf[:]); err != nil {
			return nil, err
		}
		code := prefix + string(buf[:])
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// fill writes uniformly distributed alphabet symbols into dst.
func (g *Generator) fill(dst []byte) error {
	var raw [32]byte
	i := 0
	for i < len(dst) {
		if _, err := io.ReadFull(g.src, raw[:]); err != nil {
			return fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range raw {
			if int(b) >= maxUnbiased {
				continue
			}
			dst[i] = Alphabet[int(b)%len(Alphabet)]
			i++
			if i == len(dst) {
				break
			}
		}
	}
	return nil
}

// BuildPrefix returns the full prefix for a user-chosen 4-character part.
func BuildPrefix(userPrefix string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(userPrefix))
	if len(up) != UserPrefixLength || !inAlphabet(up) {
		return "", fmt.Errorf("%w: user prefix must be %d letters or digits", ErrInvalidPrefix, UserPrefixLength)
	}
	return PrefixLead + up, nil
}

// UserPrefix returns the user-chosen part of a full prefix.
func UserPrefix(prefix string) string {
	return strings.TrimPrefix(prefix, PrefixLead)
}

// ValidatePrefix checks that prefix is a full 6-character prefix.
func ValidatePrefix(prefix string) error {
	if len(prefix) != PrefixLength || !strings.HasPrefix(prefix, PrefixLead) || !inAlphabet(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}

// Normalize trims and upper-cases a submitted code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks the shape of an already normalized code.
func ValidateCode(code string) error {
	if len(code) != CodeLength || !inAlphabet(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}

func inAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
