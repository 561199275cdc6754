// Package qrcode renders verification links as PNG data URLs.
package qrcode

import (
	"encoding/base64"
	"fmt"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"

	id "docsign/pkg/domain"
)

const (
	DefaultSize   = 256
	dataURLPrefix = "data:image/png;base64,"
)

// Renderer builds the public verification URL for a document and encodes it
// as a QR code.
type Renderer struct {
	baseURL string
	size    int
}

func NewRenderer(baseURL string, size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/"), size: size}
}

// VerificationURL is the link a scanner lands on: {base}/verify/{id}.
func (r *Renderer) VerificationURL(docID id.DocumentID) string {
	return r.baseURL + "/verify/" + docID.String()
}

func (r *Renderer) DataURL(docID id.DocumentID) (string, error) {
	png, err := goqrcode.Encode(r.VerificationURL(docID), goqrcode.Medium, r.size)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
