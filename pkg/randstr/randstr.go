package randstr

import (
	"crypto/rand"
	"math/big"
)

type generator struct {
	alphabet []byte
}

func New(alphabet []byte) *generator {
	return &generator{alphabet: alphabet}
}

func (g *generator) GenerateRandomString(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(g.alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform source is broken
			panic(err)
		}
		b[i] = g.alphabet[n.Int64()]
	}

	return string(b)
}
