// Package signature builds MinHash signatures over token sets.
//
// The hash family is fixed by (size, seed): every token is hashed once with
// xxhash64 and then permuted with size universal hash functions
// h(x) = ((a*x + b) mod p) & 0xffffffff, p = 2^61-1. Signatures built with
// the same size and seed are comparable across runs.
package signature

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"textdedup/internal/domain"
)

const (
	DefaultSize = 128
	DefaultSeed = 1

	mersennePrime = (1 << 61) - 1
	maxHash       = (1 << 32) - 1

	// EmptyValue fills every component of the signature of an empty token
	// set. Real components never exceed maxHash, so an empty signature
	// shares no component with a non-empty one.
	EmptyValue = math.MaxUint64
)

var ErrSizeMismatch = errors.New("signature sizes differ")

// MinHash is a SignatureBuilder with a fixed permutation family.
type MinHash struct {
	size int
	a    []uint64
	b    []uint64
}

func NewMinHash(size int, seed int64) (*MinHash, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: signature size must be > 0, got %d", domain.ErrConfiguration, size)
	}
	rng := rand.New(rand.NewSource(seed))
	m := &MinHash{size: size, a: make([]uint64, size), b: make([]uint64, size)}
	for i := 0; i < size; i++ {
		m.a[i] = uint64(rng.Int63n(mersennePrime-1)) + 1
		m.b[i] = uint64(rng.Int63n(mersennePrime))
	}
	return m, nil
}

func (m *MinHash) Size() int { return m.size }

func (m *MinHash) Build(tokens domain.TokenSet) domain.Signature {
	sig := make(domain.Signature, m.size)
	for i := range sig {
		sig[i] = EmptyValue
	}
	for _, tok := range tokens.Tokens {
		hv := xxhash.Sum64String(tok) & maxHash
		for i := 0; i < m.size; i++ {
			if p := m.permute(i, hv); p < sig[i] {
				sig[i] = p
			}
		}
	}
	return sig
}

func (m *MinHash) permute(i int, hv uint64) uint64 {
	hi, lo := bits.Mul64(m.a[i], hv)
	var carry uint64
	lo, carry = bits.Add64(lo, m.b[i], 0)
	hi += carry
	return bits.Rem64(hi, lo, mersennePrime) & maxHash
}

// IsEmpty reports whether sig was built from an empty token set.
func IsEmpty(sig domain.Signature) bool {
	for _, v := range sig {
		if v != EmptyValue {
			return false
		}
	}
	return true
}

// Similarity estimates the Jaccard similarity of the token sets behind a
// and b as the fraction of equal components. Two empty signatures are
// identical (1); an empty and a non-empty one share nothing (0).
func Similarity(a, b domain.Signature) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrSizeMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a)), nil
}
