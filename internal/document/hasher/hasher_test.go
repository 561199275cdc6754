package hasher

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/document/content"
	dErrors "docsign/pkg/domain-errors"
)

const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestSum(t *testing.T) {
	assert.Equal(t, helloDigest, Sum([]byte("hello")))
	assert.Equal(t, Sum([]byte("hello")), Sum([]byte("hello")), "deterministic")
	assert.NotEqual(t, Sum([]byte("hello")), Sum([]byte("hello!")))
	assert.Len(t, Sum(nil), DigestLength)
}

func TestSumReader(t *testing.T) {
	d, err := SumReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, d.Hex)
	assert.EqualValues(t, 5, d.Size)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestSumReaderIOError(t *testing.T) {
	_, err := SumReader(failingReader{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIO))
}

type stubSource struct{ err error }

func (s stubSource) Open(context.Context, string) (io.ReadCloser, error) { return nil, s.err }

func TestFromSource(t *testing.T) {
	ctx := context.Background()
	src := content.NewFSSource(fstest.MapFS{"a.txt": {Data: []byte("hello")}})

	d, err := FromSource(ctx, src, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, helloDigest, d.Hex)

	_, err = FromSource(ctx, src, "missing.txt")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIO))

	_, err = FromSource(ctx, stubSource{err: errors.New("network")}, "x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIO), "raw source errors become io errors")
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("  " + strings.ToUpper(helloDigest) + " ")
	assert.True(t, ok)
	assert.Equal(t, helloDigest, got)

	for _, bad := range []string{"", "abc", strings.Repeat("z", 64), helloDigest + "0"} {
		_, ok := Normalize(bad)
		assert.False(t, ok, bad)
	}
}

func FuzzSumDistinguishesInputs(f *testing.F) {
	f.Add([]byte("hello"), []byte("hello!"))
	f.Add([]byte{}, []byte{0})
	f.Fuzz(func(t *testing.T, a, b []byte) {
		if string(a) == string(b) {
			assert.Equal(t, Sum(a), Sum(b))
			return
		}
		assert.NotEqual(t, Sum(a), Sum(b))
	})
}
