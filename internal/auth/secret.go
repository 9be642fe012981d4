package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// SecretLength is the length of refresh tokens, client secrets and
	// authorization codes.
	SecretLength = 64

	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// bytes at or above this value are rejected to keep the draw uniform
	unbiasedLimit = 256 - 256%len(secretAlphabet)

	maxSecretRounds = 16
)

var errLowEntropy = errors.New("random source kept producing rejected bytes")

// SecretGenerator produces opaque high-entropy secrets.
type SecretGenerator interface {
	Generate() (string, error)
}

// LetterSecrets draws secrets uniformly from upper and lower case ASCII
// letters.
type LetterSecrets struct {
	Length int
	Rand   io.Reader // crypto/rand.Reader when nil
}

func (g LetterSecrets) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = SecretLength
	}
	source := g.Rand
	if source == nil {
		source = rand.Reader
	}
	return GenerateSecret(source, length)
}

// GenerateSecret returns length letters read from r using rejection
// sampling.
func GenerateSecret(r io.Reader, length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length)

	for round := 0; round < maxSecretRounds && len(out) < length; round++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= unbiasedLimit {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == length {
				break
			}
		}
	}

	if len(out) < length {
		return "", errLowEntropy
	}
	return string(out), nil
}
