// Package catalog assembles the second-pass output described in §6: the
// gzip-compressed Components-<arch>.yml.gz and DEP11Hints_<arch>.yml.gz
// document streams, and the per-size icons-<WxH>.tar.gz tarballs. Grounded
// on original_source/dep11/component.py's get_dep11_header/DEP11YamlDumper
// and deb/repository.go's WriteTo tar-gzip assembly idiom.
package catalog

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.yaml.in/yaml/v3"
)

// Header is the single document that opens a Components-<arch>.yml.gz
// stream (§6).
type Header struct {
	File         string `yaml:"File"`
	Version      string `yaml:"Version"`
	Time         string `yaml:"Time"`
	Origin       string `yaml:"Origin"`
	MediaBaseURL string `yaml:"MediaBaseUrl,omitempty"`
	Priority     int    `yaml:"Priority,omitempty"`
}

// NewHeader builds the header document for one (suite, archive-component)
// catalog stream. Origin is "<repo>-<suite>-<archiveComponent>", lowercased,
// per §6.
func NewHeader(repositoryName, suite, archiveComponent, mediaBaseURL string, priority int, at time.Time) Header {
	origin := strings.ToLower(fmt.Sprintf("%s-%s-%s", repositoryName, suite, archiveComponent))
	return Header{
		File:         "DEP-11",
		Version:      "0.8",
		Time:         at.UTC().Format(time.RFC3339),
		Origin:       origin,
		MediaBaseURL: mediaBaseURL,
		Priority:     priority,
	}
}

// ComponentSource is the subset of *cache.Cache the writer needs: the
// already-rendered component and hints YAML documents filed under a
// package's pkid.
type ComponentSource interface {
	GetComponentsYAML(pkid string) (yamlDoc string, ok bool)
	GetHintsYAML(pkid string) (yamlDoc string, ok bool)
}

// WriteComponents writes one Components-<arch>.yml.gz stream to w: a single
// header document followed by one document per component found under
// pkids, in the given order (§6: "sorted identically for identical input" —
// pkids is expected to already be in the caller's deterministic order).
func WriteComponents(w io.Writer, header Header, pkids []string, src ComponentSource) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()

	gw.Write([]byte("---\n"))
	enc := yaml.NewEncoder(gw)
	enc.SetIndent(2)
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("catalog: encoding header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("catalog: closing header encoder: %w", err)
	}

	for _, pkid := range pkids {
		doc, ok := src.GetComponentsYAML(pkid)
		if !ok {
			continue
		}
		if _, err := gw.Write([]byte(doc)); err != nil {
			return fmt.Errorf("catalog: writing component doc for %s: %w", pkid, err)
		}
	}

	return gw.Close()
}

// WriteHints writes one DEP11Hints_<arch>.yml.gz stream to w: one document
// per package in pkids that recorded any hint.
func WriteHints(w io.Writer, pkids []string, src ComponentSource) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()

	for _, pkid := range pkids {
		doc, ok := src.GetHintsYAML(pkid)
		if !ok {
			continue
		}
		if _, err := gw.Write([]byte(doc)); err != nil {
			return fmt.Errorf("catalog: writing hints doc for %s: %w", pkid, err)
		}
	}

	return gw.Close()
}

// WriteIconTarball writes one icons-<WxH>.tar.gz to w: every cached icon
// file found under <mediaRoot>/<archiveComponent>/<gid>/icons/<WxH>/ for
// each gid in gids, stored flat (no directories) under its own file name
// (§6: "one file per unique component, named `<icon-file>`" — the
// `<pkg>_<icon>.png` naming keeps icons of different packages apart; a
// file whose name was already written, e.g. a second component of the same
// package using the same icon name, is skipped).
func WriteIconTarball(w io.Writer, mediaRoot, archiveComponent string, size int, gids []string) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	sizeDir := fmt.Sprintf("%dx%d", size, size)
	written := map[string]bool{}

	for _, gid := range gids {
		dir := filepath.Join(mediaRoot, archiveComponent, gid, "icons", sizeDir)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("catalog: reading icon dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || written[entry.Name()] {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return fmt.Errorf("catalog: reading icon %s: %w", entry.Name(), err)
			}
			hdr := &tar.Header{
				Name: entry.Name(),
				Mode: 0644,
				Size: int64(len(data)),
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("catalog: writing tar header for %s: %w", entry.Name(), err)
			}
			if _, err := tw.Write(data); err != nil {
				return fmt.Errorf("catalog: writing tar entry for %s: %w", entry.Name(), err)
			}
			written[entry.Name()] = true
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}
