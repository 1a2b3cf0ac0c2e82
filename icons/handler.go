// Package icons implements IconHandler (§4.6): per-component icon
// resolution first inside the originating package, then archive-wide via a
// Finder abstraction, followed by raster/vector rendering to exact target
// sizes and storage in the media pool.
package icons

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/debian-appstream/dep11gen/component"
)

// allowedSuffixes is the set of icon reference suffixes IconHandler will
// attempt to resolve; anything else is `icon-format-unsupported` (§4.6).
var allowedSuffixes = map[string]bool{
	"png": true, "svg": true, "svgz": true, "gif": true, "jpg": true,
}

// defaultThemeOrder is the archive-wide theme search order ContentsFinder
// uses, ahead of the pixmaps fallback, when its ThemeOrder is empty (§4.6).
// The in-package search uses only the theme order passed to FetchIcon.
var defaultThemeOrder = []string{"hicolor", "Adwaita", "breeze"}

// PackageSource is the subset of debpkg.Reader IconHandler needs: presence
// and extraction of payload paths.
type PackageSource interface {
	Has(name string) bool
	Extract(name string) ([]byte, error)
}

// Finder resolves an icon name to an archive-relative file path somewhere
// else in the archive (§9: duck-typed icon-finder interface redesigned as
// two concrete implementations behind this interface).
type Finder interface {
	Find(name string, size int) (archivePath string, ok bool)
}

// NoopFinder never finds anything; used when no ContentsIndex/IconThemeIndex
// pair is configured for the current archive-component.
type NoopFinder struct{}

func (NoopFinder) Find(string, int) (string, bool) { return "", false }

// ThemeSource supplies candidate paths from the parsed index.theme of each
// theme, along with a way to ask the ContentsIndex which package, if any,
// provides a candidate path.
type ThemeSource interface {
	// CandidatesFor returns candidate archive paths for name at size,
	// drawn from the theme's parsed index.theme, in preference order.
	CandidatesFor(theme string, name string, size int) []string
	// Lookup returns the owning package name for an archive path, and
	// whether ANY package provides it.
	Lookup(archivePath string) (pkg string, ok bool)
}

// ContentsFinder resolves icons archive-wide using a ContentsIndex lookup
// driven by one or more IconThemeIndex candidate generators, plus a plain
// usr/share/pixmaps/NAME.<suffix> fallback.
type ContentsFinder struct {
	Source     ThemeSource
	ThemeOrder []string // e.g. {hicolor, <configured>, Adwaita, breeze}
}

func (f *ContentsFinder) Find(name string, size int) (string, bool) {
	order := f.ThemeOrder
	if len(order) == 0 {
		order = defaultThemeOrder
	}
	for _, theme := range order {
		for _, cand := range f.Source.CandidatesFor(theme, name, size) {
			if _, ok := f.Source.Lookup(cand); ok {
				return cand, true
			}
		}
	}
	for _, suffix := range []string{"png", "jpg", "svgz", "svg", "gif", "ico", "xpm"} {
		cand := fmt.Sprintf("usr/share/pixmaps/%s.%s", name, suffix)
		if _, ok := f.Source.Lookup(cand); ok {
			return cand, true
		}
	}
	return "", false
}

// Handler resolves and renders icons for components (§4.6).
type Handler struct {
	// TargetSizes are the output sizes to produce; 64 is mandatory and
	// must always be present (enforced by NewHandler).
	TargetSizes []int
	MediaRoot   string // <export>/media
	Finder      Finder

	// ThemeSource and ThemeOrder are bound once per archive-component and
	// used by FetchIconFor, the narrow single-archive-component entry
	// point consumed by the extractor package.
	ThemeSource ThemeSource
	ThemeOrder  []string
}

// NewHandler constructs a Handler, ensuring 64 is present in targetSizes.
func NewHandler(targetSizes []int, mediaRoot string, finder Finder) *Handler {
	has64 := false
	for _, s := range targetSizes {
		if s == 64 {
			has64 = true
		}
	}
	if !has64 {
		targetSizes = append([]int{64}, targetSizes...)
	}
	if finder == nil {
		finder = NoopFinder{}
	}
	return &Handler{TargetSizes: targetSizes, MediaRoot: mediaRoot, Finder: finder}
}

// inPackageCandidates enumerates candidate paths for name searched inside
// the originating package itself: the theme-directory convention under
// usr/share/icons/<theme>/..., then the flat pixmaps fallback.
func inPackageCandidates(name string, size int, themeOrder []string, src ThemeSource) []string {
	var out []string
	if src != nil {
		for _, theme := range themeOrder {
			out = append(out, src.CandidatesFor(theme, name, size)...)
		}
	}
	for _, suffix := range []string{"png", "jpg", "svgz", "svg", "gif", "ico", "xpm"} {
		out = append(out, fmt.Sprintf("usr/share/pixmaps/%s.%s", name, suffix))
	}
	return out
}

// FetchIcon resolves cpt's icon reference to rendered PNGs at every
// TargetSizes entry and records the result on cpt. archiveComponent is the
// archive-component subdirectory of the media pool (e.g. "main"); gid is
// the component's global id. pkgName prefixes every cached icon's stored
// file name (`<pkg>_<icon>.png`), so icons from different packages never
// collide in the flat icons-<WxH>.tar.gz tarball.
func (h *Handler) FetchIcon(cpt *component.Component, pkg PackageSource, themeSrc ThemeSource,
	themeOrder []string, archiveComponent, gid, pkgName string) {

	ref := h.iconReference(cpt)
	if ref == "" {
		return
	}

	// Step 1: absolute path present verbatim in the package.
	if strings.HasPrefix(ref, "/") {
		rel := strings.TrimPrefix(ref, "/")
		if pkg.Has(rel) {
			h.storeFromPackage(cpt, pkg, rel, []int{64}, archiveComponent, gid, pkgName)
			return
		}
	}

	name := path.Base(ref)
	suffix := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	baseName := strings.TrimSuffix(name, path.Ext(name))

	if suffix != "" && !allowedSuffixes[suffix] {
		cpt.AddHint("icon-format-unsupported", map[string]string{"icon": name})
		return
	}

	// Step 3: search inside the originating package.
	found := map[int]string{}
	for _, size := range h.TargetSizes {
		for _, cand := range inPackageCandidates(baseName, size, themeOrder, themeSrc) {
			candSuffix := strings.ToLower(strings.TrimPrefix(path.Ext(cand), "."))
			if !allowedSuffixes[candSuffix] {
				if strings.HasPrefix(cand, "usr/share/pixmaps/") && pkg.Has(cand) {
					// Present but disallowed format: stop entirely,
					// without falling through to the archive-wide search.
					cpt.AddHint("icon-format-unsupported", map[string]string{"icon": name})
					return
				}
				continue
			}
			if pkg.Has(cand) {
				found[size] = cand
				break
			}
		}
	}

	// Any in-package match at all is enough: storeSizes renders every
	// requested size at or below the largest match found, downscaling as
	// needed (never upscaling, §9) — e.g. a package shipping only a 128px
	// icon still yields a downscaled 64px copy (§8 scenario 2).
	if len(found) > 0 {
		h.storeSizes(cpt, pkg, found, h.TargetSizes, archiveComponent, gid, pkgName, baseName)
		return
	}

	// Step 4: search across the archive.
	if themeSrc != nil {
		archCand, ok := h.Finder.Find(baseName, 64)
		if ok {
			cpt.AddHint("icon-is-stock", map[string]string{"icon": archCand})
			if cpt.Icons == nil {
				cpt.Icons = map[component.IconKind]string{}
			}
			cpt.Icons[component.IconStock] = baseName + ".png"
			return
		}
	}

	cpt.AddHint("icon-not-found", map[string]string{"icon": name})
}

// FetchIconFor resolves cpt's icon using the Handler's bound ThemeSource and
// ThemeOrder. This is the entry point the extractor package drives; FetchIcon
// remains available directly for tests that need to vary the theme source
// per call.
func (h *Handler) FetchIconFor(cpt *component.Component, pkg PackageSource, archiveComponent, gid, pkgName string) {
	h.FetchIcon(cpt, pkg, h.ThemeSource, h.ThemeOrder, archiveComponent, gid, pkgName)
}

func (h *Handler) iconReference(cpt *component.Component) string {
	if cpt.Icons == nil {
		return ""
	}
	return cpt.Icons[component.IconRemote]
}

// storeFromPackage handles the absolute-path fast path (step 1): the icon
// is extracted as-is and resampled to 64×64 only.
func (h *Handler) storeFromPackage(cpt *component.Component, pkg PackageSource, rel string, sizes []int, archiveComponent, gid, pkgName string) {
	data, err := pkg.Extract(rel)
	if err != nil {
		cpt.AddHint("icon-not-found", map[string]string{"icon": rel})
		return
	}
	h.renderAndStore(cpt, data, rel, sizes, archiveComponent, gid, pkgName, strings.TrimSuffix(path.Base(rel), path.Ext(rel)))
}

// storeSizes renders every target size at or below the largest resolved
// size, all from the file matched at that largest size (downscaling, never
// upscaling, §9). Matches found at smaller sizes are not used as render
// sources.
func (h *Handler) storeSizes(cpt *component.Component, pkg PackageSource, found map[int]string,
	sizes []int, archiveComponent, gid, pkgName, baseName string) {

	// Find the path associated with the largest resolved size; it is the
	// render source for every size produced below.
	var bestSize int
	var bestPath string
	for size, p := range found {
		if size > bestSize {
			bestSize, bestPath = size, p
		}
	}
	data, err := pkg.Extract(bestPath)
	if err != nil {
		cpt.AddHint("icon-not-found", map[string]string{"icon": bestPath})
		return
	}

	var needed []int
	for _, s := range sizes {
		if s <= bestSize {
			needed = append(needed, s)
		}
	}
	// Sizes larger than anything we found are simply not produced (never
	// upscale). 64 is always in h.TargetSizes, so it is produced whenever
	// the largest match is at least 64.
	h.renderAndStore(cpt, data, bestPath, needed, archiveComponent, gid, pkgName, baseName)
}

// renderAndStore decodes data once and writes one PNG per requested size
// into <MediaRoot>/<archiveComponent>/<gid>/icons/<size>/<pkg>_<icon>.png.
// Writes are idempotent: if the destination already exists, rendering is
// skipped but the icon name is still recorded.
func (h *Handler) renderAndStore(cpt *component.Component, data []byte, sourcePath string, sizes []int,
	archiveComponent, gid, pkgName, baseName string) {

	isVector := strings.HasSuffix(sourcePath, ".svg") || strings.HasSuffix(sourcePath, ".svgz")
	if strings.HasSuffix(sourcePath, ".svgz") {
		inflated, err := inflateSVGZ(data)
		if err != nil {
			cpt.AddHint("svgz-decompress-error", map[string]string{"icon": sourcePath})
			return
		}
		data = inflated
	}

	cachedName := pkgName + "_" + baseName + ".png"
	for _, size := range sizes {
		dir := filepath.Join(h.MediaRoot, archiveComponent, gid, "icons", sizeDir(size))
		dest := filepath.Join(dir, cachedName)
		if _, err := os.Stat(dest); err == nil {
			continue // idempotent: already rendered
		}

		var png []byte
		var err error
		if isVector {
			png, err = renderVector(data, size)
		} else {
			png, err = renderRaster(data, size)
		}
		if err != nil {
			cpt.AddHint("icon-decode-error", map[string]string{"icon": sourcePath, "error": err.Error()})
			return
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			cpt.AddHint("icon-decode-error", map[string]string{"icon": sourcePath, "error": err.Error()})
			return
		}
		if err := os.WriteFile(dest, png, 0644); err != nil {
			cpt.AddHint("icon-decode-error", map[string]string{"icon": sourcePath, "error": err.Error()})
			return
		}
	}

	if cpt.Icons == nil {
		cpt.Icons = map[component.IconKind]string{}
	}
	cpt.Icons[component.IconCached] = cachedName
}

func sizeDir(size int) string {
	return fmt.Sprintf("%dx%d", size, size)
}
