// Package icontheme parses XDG icon-theme description files and resolves
// candidate icon file paths for a requested (name, size) pair (§4.4).
package icontheme

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DirType is the sizing policy of one theme directory (§4.4).
type DirType string

const (
	TypeFixed     DirType = "Fixed"
	TypeScalable  DirType = "Scalable"
	TypeThreshold DirType = "Threshold"
)

// Dir is one section of an index.theme file, interpreted as a directory of
// icons sharing a sizing policy.
type Dir struct {
	Path      string
	Type      DirType
	Size      int
	MinSize   int
	MaxSize   int
	Threshold int
}

// Matches reports whether this directory may satisfy a request for size.
func (d Dir) Matches(size int) bool {
	switch d.Type {
	case TypeFixed:
		return d.Size == size
	case TypeScalable:
		return d.MinSize <= size && size <= d.MaxSize
	case TypeThreshold:
		return size >= d.Size-d.Threshold && size <= d.Size+d.Threshold
	default:
		return d.Size == size
	}
}

// Index is the parsed form of one theme's index.theme.
type Index struct {
	Name string
	Dirs []Dir
}

// candidateSuffixes is the ordered set of icon file extensions searched
// for a given icon name (§4.4).
var candidateSuffixes = []string{"png", "svgz", "svg", "xpm"}

// Parse reads an index.theme file's content. Sections are introduced by
// `[Section Name]`; the special `[Icon Theme]` section is ignored (it
// carries the theme's own metadata, not a directory definition), and every
// other section is a candidate icon directory as long as it declares a
// `Directories`-style `Size`/`Type`/`Context`-free path implied by the
// section name itself (the section name doubles as the directory path,
// matching the XDG icon theme specification).
func Parse(name, content string) (*Index, error) {
	idx := &Index{Name: name}

	var cur *Dir
	flush := func() {
		if cur != nil && cur.Path != "" {
			idx.Dirs = append(idx.Dirs, *cur)
		}
		cur = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			section := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if section == "Icon Theme" {
				continue
			}
			cur = &Dir{Path: section, Type: TypeThreshold, Threshold: 2}
			continue
		}
		if cur == nil {
			continue
		}
		k, v, ok := splitKV(line)
		if !ok {
			continue
		}
		switch k {
		case "Size":
			cur.Size = atoi(v)
		case "MinSize":
			cur.MinSize = atoi(v)
		case "MaxSize":
			cur.MaxSize = atoi(v)
		case "Threshold":
			cur.Threshold = atoi(v)
		case "Type":
			cur.Type = DirType(v)
		}
	}
	flush()

	for i := range idx.Dirs {
		d := &idx.Dirs[i]
		if d.Type == TypeScalable {
			if d.MinSize == 0 {
				d.MinSize = d.Size
			}
			if d.MaxSize == 0 {
				d.MaxSize = d.Size
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("icontheme: parse %s: %w", name, err)
	}
	return idx, nil
}

func splitKV(line string) (string, string, bool) {
	i := strings.Index(line, "=")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Candidates returns, in directory-match order, the archive-relative
// candidate file paths for icon name at size, under
// usr/share/icons/<theme>/<dir.path>/<name>.<suffix>.
func (idx *Index) Candidates(name string, size int) []string {
	var out []string
	for _, d := range idx.Dirs {
		if !d.Matches(size) {
			continue
		}
		for _, suffix := range candidateSuffixes {
			out = append(out, fmt.Sprintf("usr/share/icons/%s/%s/%s.%s", idx.Name, d.Path, name, suffix))
		}
	}
	return out
}

// AvailableSizes returns the distinct Fixed/Threshold sizes the theme
// declares, ascending, for locating a larger-than-requested icon to
// downscale when no exact match exists (never upscale, §9).
func (idx *Index) AvailableSizes() []int {
	seen := map[int]bool{}
	var sizes []int
	for _, d := range idx.Dirs {
		if d.Type == TypeScalable {
			continue
		}
		if d.Size > 0 && !seen[d.Size] {
			seen[d.Size] = true
			sizes = append(sizes, d.Size)
		}
	}
	sort.Ints(sizes)
	return sizes
}
