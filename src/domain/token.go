package domain

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

// Return-address tokens alternate consonants and vowels so they are readable
// over the phone, yet carry enough entropy once collisions force the length
// up. The token is opaque; nothing may ever parse it.
const (
	tokenConsonants = "bcdfghjklmnprstvxz"
	tokenVowels     = "aeiouy"
)

// MintToken generates a pronounceable random token of the given length.
func MintToken(length int) (string, error) {
	res := make([]byte, length)
	for i := range res {
		alphabet := tokenConsonants
		if i%2 == 1 {
			alphabet = tokenVowels
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", errors.WithMessage(err, "reading randomness")
		}
		res[i] = alphabet[n.Int64()]
	}
	return string(res), nil
}
