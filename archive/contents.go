package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"
)

// iconPathPrefixes are the only path prefixes ContentsIndex retains; every
// other line is discarded immediately to keep the in-memory index small.
var iconPathPrefixes = []string{"usr/share/icons/", "usr/share/pixmaps/"}

// ContentsIndex answers "which package provides this file path?" for the
// subset of an archive's Contents-<arch> file that names icon-relevant
// paths (§4.3).
type ContentsIndex struct {
	ArchiveRoot string
	Suite       string
	Component   string
	Arch        string

	// Themes additionally retains usr/share/icons/<theme>/ lines for each
	// named theme, even if a theme package were to ship paths that don't
	// match the generic icon prefixes (defensive; in practice theme icons
	// already fall under usr/share/icons/).
	Themes []string

	// entries maps a retained file path to its owning package name.
	entries map[string]string
}

// Load reads dists/<suite>/<component>/Contents-<arch>.gz, falling back to
// dists/<suite>/Contents-<arch>.gz when the per-component path does not
// exist. A missing Contents file is fatal for this pass.
func (c *ContentsIndex) Load() error {
	primary := filepath.Join(c.ArchiveRoot, "dists", c.Suite, c.Component, "Contents-"+c.Arch+".gz")
	fallback := filepath.Join(c.ArchiveRoot, "dists", c.Suite, "Contents-"+c.Arch+".gz")

	path := primary
	f, err := os.Open(path)
	if err != nil {
		path = fallback
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("contentsindex: neither %s nor %s found", primary, fallback)
		}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("contentsindex: decompress %s: %w", path, err)
	}
	defer gz.Close()

	c.entries = make(map[string]string)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		c.addLine(decodeLine(scanner.Bytes()))
	}
	return scanner.Err()
}

// decodeLine decodes a Contents line as UTF-8, falling back to ISO-8859-1
// when the bytes are not valid UTF-8 (§4.3, §8 boundary behavior).
func decodeLine(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func (c *ContentsIndex) addLine(line string) {
	// Format: "<path>   <group1>/<pkg1>,<group2>/<pkg2>,..." or just
	// "<pkg>" when no group prefix is present.
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	path := fields[0]
	if !c.relevant(path) {
		return
	}
	pkgField := fields[len(fields)-1]
	for _, group := range strings.Split(pkgField, ",") {
		pkg := group
		if i := strings.LastIndex(group, "/"); i >= 0 {
			pkg = group[i+1:]
		}
		pkg = strings.TrimSpace(pkg)
		if pkg != "" {
			c.entries[path] = pkg
			return
		}
	}
}

func (c *ContentsIndex) relevant(path string) bool {
	for _, prefix := range iconPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, theme := range c.Themes {
		if strings.HasPrefix(path, "usr/share/icons/"+theme+"/") {
			return true
		}
	}
	return false
}

// Lookup returns the package owning path, if any line resolved to a known
// package.
func (c *ContentsIndex) Lookup(path string) (pkg string, ok bool) {
	pkg, ok = c.entries[path]
	return
}

// Search returns the first retained (path, package) pair whose path
// matches re, in indeterminate map-iteration order among ties (callers
// pass specific enough candidate patterns that this does not matter in
// practice, since candidates are tried one exact path at a time via
// Lookup; Search exists for the rare case a caller only has a pattern).
func (c *ContentsIndex) Search(re *regexp.Regexp) (path, pkg string, ok bool) {
	for p, pk := range c.entries {
		if re.MatchString(p) {
			return p, pk, true
		}
	}
	return "", "", false
}
