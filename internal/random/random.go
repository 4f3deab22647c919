package random

import (
	"crypto/rand"
	"math/big"
)

var (
	allowedLetters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	// suffixRunes avoids upper case so that suffixes stay distinct on case-insensitive file systems.
	suffixRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789")
)

// Letters returns n random ASCII letters.
func Letters(n uint) (string, error) {
	return fromAlphabet(allowedLetters, n)
}

// Suffix returns n random lower case letters and digits suitable for disambiguating file names.
func Suffix(n uint) (string, error) {
	return fromAlphabet(suffixRunes, n)
}

func fromAlphabet(alphabet []rune, n uint) (string, error) {
	out := make([]rune, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
