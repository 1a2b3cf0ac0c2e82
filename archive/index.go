package archive

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/debian-appstream/dep11gen/component"
	debver "github.com/knqyf263/go-deb-version"
	"github.com/klauspost/compress/gzip"
)

// PackageDescriptor is the PackageIndex's output record: the minimal
// description of one binary package that the rest of the pipeline needs
// (§3 "Package descriptor"). It is immutable and owned by the extraction
// job that reads it.
type PackageDescriptor struct {
	Name         string
	Version      string
	Architecture string
	Filename     string // archive-relative path to the .deb payload
	Maintainer   string
	Description  string // untranslated short description (first line)
}

// PkID is the package identity string, matching component.Package.PkID.
func (d PackageDescriptor) PkID() string {
	return d.Name + "/" + d.Version + "/" + d.Architecture
}

// ToComponentPackage narrows the descriptor to the small snapshot a
// Component carries.
func (d PackageDescriptor) ToComponentPackage() component.Package {
	return component.Package{Name: d.Name, Version: d.Version, Architecture: d.Architecture}
}

// PackageIndex is a de-duplicated newest-version map of package descriptors
// for one (suite, archive-component, architecture) triple.
type PackageIndex struct {
	ArchiveRoot string
	Suite       string
	Component   string
	Arch        string

	packages map[string]PackageDescriptor
}

// Load reads dists/<suite>/<component>/binary-<arch>/Packages.gz, and
// optionally merges dists/<suite>/<component>/i18n/Translation-en.bz2 to
// fill the untranslated short description. A missing Packages.gz is a
// fatal error for this (component, architecture) pass; a missing
// Translation file is not fatal, it is simply skipped.
func (idx *PackageIndex) Load() error {
	pkgPath := filepath.Join(idx.ArchiveRoot, "dists", idx.Suite, idx.Component,
		"binary-"+idx.Arch, "Packages.gz")

	f, err := os.Open(pkgPath)
	if err != nil {
		return fmt.Errorf("packageindex: open %s: %w", pkgPath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("packageindex: decompress %s: %w", pkgPath, err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("packageindex: read %s: %w", pkgPath, err)
	}

	idx.packages = make(map[string]PackageDescriptor)
	for _, stanza := range parseStanzas(string(raw)) {
		name := stanza["Package"]
		version := stanza["Version"]
		if name == "" || version == "" {
			continue
		}
		desc := PackageDescriptor{
			Name:         name,
			Version:      version,
			Architecture: stanza["Architecture"],
			Filename:     stanza["Filename"],
			Maintainer:   stanza["Maintainer"],
			Description:  firstLine(stanza["Description"]),
		}
		idx.keepNewest(desc)
	}

	idx.mergeTranslation()
	return nil
}

func (idx *PackageIndex) keepNewest(desc PackageDescriptor) {
	existing, ok := idx.packages[desc.Name]
	if !ok {
		idx.packages[desc.Name] = desc
		return
	}
	newer, err := versionGreater(desc.Version, existing.Version)
	if err != nil {
		// Unparsable version string: keep the one already present rather
		// than risk flapping between packages on every run.
		return
	}
	if newer {
		idx.packages[desc.Name] = desc
	}
}

// versionGreater reports whether a sorts after b under standard Debian
// version comparison rules.
func versionGreater(a, b string) (bool, error) {
	va, err := debver.NewVersion(a)
	if err != nil {
		return false, err
	}
	vb, err := debver.NewVersion(b)
	if err != nil {
		return false, err
	}
	return va.Compare(vb) > 0, nil
}

func (idx *PackageIndex) mergeTranslation() {
	path := filepath.Join(idx.ArchiveRoot, "dists", idx.Suite, idx.Component, "i18n", "Translation-en.bz2")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(bzip2.NewReader(f))
	if err != nil {
		return
	}
	for _, stanza := range parseStanzas(string(raw)) {
		name := stanza["Package"]
		desc, ok := idx.packages[name]
		if !ok || desc.Description != "" {
			continue
		}
		if d := stanza["Description-en"]; d != "" {
			desc.Description = firstLine(d)
			idx.packages[name] = desc
		}
	}
}

// Packages returns the de-duplicated package map, keyed by package name.
func (idx *PackageIndex) Packages() map[string]PackageDescriptor {
	return idx.packages
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
