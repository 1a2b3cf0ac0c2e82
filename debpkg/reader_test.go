package debpkg

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"
	"time"

	"github.com/blakesmith/ar"
)

func buildDeb(t *testing.T, files map[string]string, symlinks map[string]string) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	gz := gzip.NewWriter(&tarBuf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), ModTime: time.Now()}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	for name, target := range symlinks {
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeSymlink, Linkname: target, Mode: 0777, ModTime: time.Now()}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	var arBuf bytes.Buffer
	aw := ar.NewWriter(&arBuf)
	if err := aw.WriteGlobalHeader(); err != nil {
		t.Fatal(err)
	}
	hdr := &ar.Header{Name: "data.tar.gz", Size: int64(tarBuf.Len()), Mode: 0644, ModTime: time.Now()}
	if err := aw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := aw.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	return arBuf.Bytes()
}

func TestOpenAndExtract(t *testing.T) {
	data := buildDeb(t, map[string]string{
		"usr/share/applications/foo.desktop": "[Desktop Entry]\nType=Application\n",
	}, nil)

	r, err := Open("foo_1.0_amd64.deb", data)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Has("usr/share/applications/foo.desktop") {
		t.Fatal("expected entry to be present")
	}
	body, err := r.Extract("usr/share/applications/foo.desktop")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "[Desktop Entry]\nType=Application\n" {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestExtractFollowsRelativeSymlink(t *testing.T) {
	data := buildDeb(t,
		map[string]string{"usr/share/icons/hicolor/64x64/apps/real.png": "pngdata"},
		map[string]string{"usr/share/icons/hicolor/64x64/apps/foo.png": "real.png"},
	)

	r, err := Open("foo_1.0_amd64.deb", data)
	if err != nil {
		t.Fatal(err)
	}
	body, err := r.Extract("usr/share/icons/hicolor/64x64/apps/foo.png")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "pngdata" {
		t.Errorf("expected symlink target content, got %q", body)
	}
}

func TestExtractNotFound(t *testing.T) {
	data := buildDeb(t, map[string]string{"a": "b"}, nil)
	r, err := Open("foo_1.0_amd64.deb", data)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Extract("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
