package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "docsign/pkg/domain"
)

func TestVerificationURL(t *testing.T) {
	docID := id.DocumentID(uuid.MustParse("6f1c1f4e-2b7a-4d8e-9a51-0c3c2f7e9b10"))
	r := NewRenderer("https://verify.example.com/", 0)
	assert.Equal(t, "https://verify.example.com/verify/6f1c1f4e-2b7a-4d8e-9a51-0c3c2f7e9b10", r.VerificationURL(docID))
}

func TestDataURLIsPNG(t *testing.T) {
	r := NewRenderer("http://localhost:8080", 128)
	dataURL, err := r.DataURL(id.NewDocumentID())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataURL, dataURLPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, dataURLPrefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
