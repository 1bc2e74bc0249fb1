package reference

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"staybook/internal/domain/shared/errs"
)

// Alphabet is Crockford-style base32 without I, L, O and U so codes survive being read aloud.
const Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	DefaultPrefix      = "BK"
	DefaultLength      = 8
	DefaultMaxAttempts = 5
)

var (
	ErrExhausted     = fmt.Errorf("reference: collisions exceeded retry budget: %w", errs.ErrReferenceGenerationExhausted)
	ErrInvalidLength = errors.New("reference: length must be between 6 and 16")
)

// ExistsFunc reports whether a reference is already taken.
type ExistsFunc func(ctx context.Context, ref string) (bool, error)

type Generator struct {
	Prefix      string
	Length      int
	MaxAttempts int
	// Entropy defaults to crypto/rand.Reader.
	Entropy io.Reader
}

func NewGenerator(prefix string, length, maxAttempts int) (Generator, error) {
	if length == 0 {
		length = DefaultLength
	}
	if length < 6 || length > 16 {
		return Generator{}, ErrInvalidLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Generator{Prefix: strings.ToUpper(strings.TrimSpace(prefix)), Length: length, MaxAttempts: maxAttempts}, nil
}

// Generate draws candidates until exists reports a free one, giving up after MaxAttempts.
func (g Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < g.maxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		if exists == nil {
			return candidate, nil
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

func (g Generator) candidate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = DefaultLength
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(g.entropy(), buf); err != nil {
		return "", fmt.Errorf("reference: entropy read failed: %w", err)
	}
	var sb strings.Builder
	if g.Prefix != "" {
		sb.WriteString(g.Prefix)
		sb.WriteByte('-')
	}
	for _, b := range buf {
		// 256 is a multiple of 32, so masking keeps the draw uniform.
		sb.WriteByte(Alphabet[b&31])
	}
	return sb.String(), nil
}

// Valid reports whether ref has the shape produced by a generator with this prefix and length.
func (g Generator) Valid(ref string) bool {
	body := ref
	if g.Prefix != "" {
		if !strings.HasPrefix(ref, g.Prefix+"-") {
			return false
		}
		body = ref[len(g.Prefix)+1:]
	}
	length := g.Length
	if length <= 0 {
		length = DefaultLength
	}
	if len(body) != length {
		return false
	}
	for _, r := range body {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

func (g Generator) entropy() io.Reader {
	if g.Entropy != nil {
		return g.Entropy
	}
	return rand.Reader
}

func (g Generator) maxAttempts() int {
	if g.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return g.MaxAttempts
}
