package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeGz(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
}

func TestPackageIndexNewestVersionWins(t *testing.T) {
	root := t.TempDir()
	pkgs := "Package: foo\nVersion: 1.0\nArchitecture: amd64\nFilename: pool/f/foo_1.0_amd64.deb\nMaintainer: A <a@example.com>\nDescription: old one\n\n" +
		"Package: foo\nVersion: 2.0\nArchitecture: amd64\nFilename: pool/f/foo_2.0_amd64.deb\nMaintainer: A <a@example.com>\nDescription: new one\nmore text\n\n"
	writeGz(t, filepath.Join(root, "dists", "stable", "main", "binary-amd64", "Packages.gz"), pkgs)

	idx := &PackageIndex{ArchiveRoot: root, Suite: "stable", Component: "main", Arch: "amd64"}
	if err := idx.Load(); err != nil {
		t.Fatal(err)
	}
	got := idx.Packages()["foo"]
	if got.Version != "2.0" {
		t.Errorf("expected newest version 2.0, got %s", got.Version)
	}
	if got.Description != "new one" {
		t.Errorf("expected first line of description only, got %q", got.Description)
	}
}

func TestPackageIndexMissingIsFatal(t *testing.T) {
	idx := &PackageIndex{ArchiveRoot: t.TempDir(), Suite: "stable", Component: "main", Arch: "amd64"}
	if err := idx.Load(); err == nil {
		t.Fatal("expected error for missing Packages.gz")
	}
}

func TestContentsIndexFiltersIconPaths(t *testing.T) {
	root := t.TempDir()
	content := "usr/share/icons/hicolor/64x64/apps/foo.png   gnome/foo-icons\n" +
		"usr/bin/foo                                  utils/foo\n" +
		"usr/share/pixmaps/bar.xpm                    x11/bar\n"
	writeGz(t, filepath.Join(root, "dists", "stable", "main", "Contents-amd64.gz"), content)

	ci := &ContentsIndex{ArchiveRoot: root, Suite: "stable", Component: "main", Arch: "amd64"}
	if err := ci.Load(); err != nil {
		t.Fatal(err)
	}
	if pkg, ok := ci.Lookup("usr/share/icons/hicolor/64x64/apps/foo.png"); !ok || pkg != "foo-icons" {
		t.Errorf("expected foo-icons, got %q ok=%v", pkg, ok)
	}
	if _, ok := ci.Lookup("usr/bin/foo"); ok {
		t.Error("non-icon path should have been discarded")
	}
	if pkg, ok := ci.Lookup("usr/share/pixmaps/bar.xpm"); !ok || pkg != "bar" {
		t.Errorf("expected bar, got %q ok=%v", pkg, ok)
	}
}

func TestContentsIndexISO88591Fallback(t *testing.T) {
	root := t.TempDir()
	// 0xE9 alone is invalid UTF-8 but decodes to 'é' under ISO-8859-1.
	line := append([]byte("usr/share/icons/caf"), 0xE9, '/', 'x', '.', 'p', 'n', 'g')
	line = append(line, []byte("   group/pkgname\n")...)
	var buf bytes.Buffer
	buf.Write(line)
	writeGz(t, filepath.Join(root, "dists", "stable", "main", "Contents-amd64.gz"), buf.String())

	ci := &ContentsIndex{ArchiveRoot: root, Suite: "stable", Component: "main", Arch: "amd64"}
	if err := ci.Load(); err != nil {
		t.Fatal(err)
	}
	found := false
	for path, pkg := range ci.entries {
		if pkg == "pkgname" && len(path) > 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected ISO-8859-1 decoded line to resolve to a package")
	}
}
