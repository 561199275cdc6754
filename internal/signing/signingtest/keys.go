// Package signingtest caches RSA key material for tests so suites do not pay
// for key generation on every run.
package signingtest

import (
	"sync"
	"sync/atomic"
	"testing"

	"docsign/internal/signing"
)

const poolSize = 3

var (
	once sync.Once
	pool []signing.KeyMaterial
	err  error
)

// Keys returns a fixed pool of 2048-bit key pairs generated once per test binary.
func Keys(t testing.TB) []signing.KeyMaterial {
	t.Helper()
	once.Do(func() {
		for range poolSize {
			var k signing.KeyMaterial
			k, err = signing.GenerateRSA(signing.MinKeySize)
			if err != nil {
				return
			}
			pool = append(pool, k)
		}
	})
	if err != nil {
		t.Fatalf("generate test keys: %v", err)
	}
	return pool
}

// Generator returns a key generator that hands out the cached pairs round-robin,
// so consecutive key pairs of a suite differ.
func Generator(t testing.TB) func(bits int) (signing.KeyMaterial, error) {
	keys := Keys(t)
	var next atomic.Uint64
	return func(int) (signing.KeyMaterial, error) {
		n := next.Add(1) - 1
		return keys[n%uint64(len(keys))], nil
	}
}
