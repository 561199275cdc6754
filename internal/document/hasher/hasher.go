// Package hasher computes the content digest that documents are signed over.
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"docsign/internal/document/content"
	dErrors "docsign/pkg/domain-errors"
)

// DigestLength is the length of a hex SHA-256 digest.
const DigestLength = 64

// Digest is a content hash plus the number of bytes hashed.
type Digest struct {
	Hex  string
	Size int64
}

// Sum returns the lower-case hex SHA-256 of b.
func Sum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SumReader streams r through SHA-256.
func SumReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, dErrors.Wrap(err, dErrors.CodeIO, "content could not be read")
	}
	return Digest{Hex: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// FromSource hashes the content behind ref.
func FromSource(ctx context.Context, src content.Source, ref string) (Digest, error) {
	rc, err := src.Open(ctx, ref)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return Digest{}, dErrors.Wrap(err, dErrors.CodeIO, "content could not be opened")
		}
		return Digest{}, err
	}
	defer rc.Close()
	return SumReader(rc)
}

// Normalize lower-cases and trims a user supplied digest. It reports false
// when the result is not 64 hex characters.
func Normalize(digest string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(digest))
	if len(d) != DigestLength {
		return "", false
	}
	if _, err := hex.DecodeString(d); err != nil {
		return "", false
	}
	return d, true
}
