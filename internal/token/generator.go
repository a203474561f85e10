package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Size is the number of random bytes behind every session token.
const Size = 32

// Generator produces opaque hex session tokens.
type Generator struct {
	source io.Reader
}

// NewGenerator returns a generator reading from source, or crypto/rand when source is nil.
func NewGenerator(source io.Reader) *Generator {
	if source == nil {
		source = rand.Reader
	}
	return &Generator{source: source}
}

func (g *Generator) Generate() (string, error) {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
