// Package debpkg opens a single binary Debian package (the ar envelope
// wrapping a data.tar.* payload) and exposes its payload file list and
// contents, following intra-package symlinks (§4.2).
package debpkg

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ReadError wraps archive or payload I/O failures (§7).
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("debpkg: read %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// ErrNotFound is returned when a requested path, and its one-level symlink
// target, are both absent from the package.
var ErrNotFound = errors.New("debpkg: entry not found")

// entry is one payload file, as recorded while scanning the data tarball.
type entry struct {
	header *tar.Header
	offset int // index into the flattened payload byte buffer captured at scan time
}

// Reader holds a single .deb payload in memory and lists/extracts its
// entries. Open reads and decompresses the whole data member and every
// regular file body up front; List, Has and Extract do no further I/O.
// A Reader is used by exactly one worker at a time (§5).
type Reader struct {
	filename string
	data     []byte // the decompressed data.tar member, read fully once

	entries map[string]*tar.Header
	bodies  map[string][]byte
}

// Open parses the ar envelope of data, locates the data.tar.* member, and
// decompresses it. Corrupt ar or tar structure produces a ReadError.
func Open(filename string, data []byte) (*Reader, error) {
	r := &Reader{filename: filename, entries: map[string]*tar.Header{}, bodies: map[string][]byte{}}

	arr := ar.NewReader(bytes.NewReader(data))
	var dataMember *arMember
	for {
		hdr, err := arr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ReadError{Path: filename, Err: err}
		}
		name := strings.TrimSuffix(strings.TrimSpace(hdr.Name), "/")
		if strings.HasPrefix(name, "data.tar") {
			body := make([]byte, hdr.Size)
			if _, err := io.ReadFull(arr, body); err != nil {
				return nil, &ReadError{Path: filename, Err: err}
			}
			dataMember = &arMember{name: name, body: body}
			break
		}
	}
	if dataMember == nil {
		return nil, &ReadError{Path: filename, Err: errors.New("no data.tar member")}
	}

	tarData, err := decompressMember(dataMember.name, dataMember.body)
	if err != nil {
		return nil, &ReadError{Path: filename, Err: err}
	}

	tr := tar.NewReader(bytes.NewReader(tarData))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ReadError{Path: filename, Err: err}
		}
		clean := strings.TrimPrefix(path.Clean("/"+hdr.Name), "/")
		hdrCopy := *hdr
		r.entries[clean] = &hdrCopy
		if hdr.Typeflag == tar.TypeReg {
			body := make([]byte, hdr.Size)
			if _, err := io.ReadFull(tr, body); err != nil {
				return nil, &ReadError{Path: filename, Err: err}
			}
			r.bodies[clean] = body
		}
	}
	return r, nil
}

type arMember struct {
	name string
	body []byte
}

func decompressMember(name string, body []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	case strings.HasSuffix(name, ".xz"):
		xr, err := xz.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(xr)
	default:
		return body, nil
	}
}

// List returns the package's payload paths. The order of the returned
// paths is not defined and can differ between calls.
func (r *Reader) List() []string {
	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	return paths
}

// Has reports whether name is a regular file or symlink in the payload.
func (r *Reader) Has(name string) bool {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	hdr, ok := r.entries[name]
	return ok && (hdr.Typeflag == tar.TypeReg || hdr.Typeflag == tar.TypeSymlink)
}

// Extract returns the bytes of name, following one level of symlink if
// name refers to a link. Absolute link targets have their leading slash
// stripped; relative targets are normalized against the directory
// containing name.
func (r *Reader) Extract(name string) ([]byte, error) {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	hdr, ok := r.entries[clean]
	if !ok {
		return nil, ErrNotFound
	}
	if hdr.Typeflag == tar.TypeSymlink {
		target := hdr.Linkname
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Clean(path.Join(path.Dir(clean), target))
		}
		body, ok := r.bodies[target]
		if !ok {
			return nil, ErrNotFound
		}
		return body, nil
	}
	body, ok := r.bodies[clean]
	if !ok {
		// Explicitly empty regular-file entry.
		if hdr.Typeflag == tar.TypeReg {
			return []byte{}, nil
		}
		return nil, ErrNotFound
	}
	return body, nil
}
