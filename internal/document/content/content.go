// Package content resolves document file references to readable content.
package content

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	dErrors "docsign/pkg/domain-errors"
)

// Source opens the content behind a document's file reference.
type Source interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FSSource serves references as paths inside a filesystem root. A reference
// may be a bare relative path, an absolute path under the root, or a file://
// URL.
type FSSource struct {
	fsys fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

func (s *FSSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIO, "content could not be opened")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeIO, "content could not be read")
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, dErrors.New(dErrors.CodeIO, "content reference is a directory")
	}
	return f, nil
}

// resolve maps ref onto an fs.ValidPath.
func resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil || u.Scheme != "file" {
			return "", dErrors.New(dErrors.CodeValidation, "unsupported content reference")
		}
		ref = path.Join(u.Host, u.Path)
	}
	name := strings.TrimPrefix(path.Clean("/"+ref), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid content reference")
	}
	return name, nil
}
