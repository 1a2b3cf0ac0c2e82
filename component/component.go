// Package component defines the output data model of the DEP-11 catalog
// generator: the software Component record, its diagnostic Hints, and the
// deterministic identifiers (source-data checksum, global id) that govern
// cache identity and media-pool placement.
//
// A Component is a plain record, not a dynamic attribute bag: every field
// is explicit and optional, and "finalize" is a pure function from the
// record to its serializable view. The ignored flag is never set directly;
// it is computed from the presence of an error-severity hint.
package component

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Kind is the application category of a Component.
type Kind string

const (
	KindGeneric     Kind = "generic"
	KindDesktopApp  Kind = "desktop-app"
	KindFont        Kind = "font"
	KindCodec       Kind = "codec"
	KindInputMethod Kind = "inputmethod"
	KindAddon       Kind = "addon"
	KindFirmware    Kind = "firmware"
)

// ProvidedItemKind enumerates the keys of a Component's Provides map.
type ProvidedItemKind string

const (
	ProvidesBinary    ProvidedItemKind = "binaries"
	ProvidesLibrary   ProvidedItemKind = "libraries"
	ProvidesMimetype  ProvidedItemKind = "mimetypes"
	ProvidesFont      ProvidedItemKind = "fonts"
	ProvidesModalias  ProvidedItemKind = "modaliases"
	ProvidesPython2   ProvidedItemKind = "python2"
	ProvidesPython3   ProvidedItemKind = "python3"
	ProvidesDBus      ProvidedItemKind = "dbus"
	ProvidesFirmware  ProvidedItemKind = "firmware"
)

// IconKind distinguishes the three ways a Component's icon may be recorded.
type IconKind string

const (
	IconCached IconKind = "cached"
	IconStock  IconKind = "stock"
	IconRemote IconKind = "remote"
)

// LocaleString maps a locale to its text; it carries no ordering. The "C" locale is
// the untranslated template and must be present whenever any other locale
// is present (§3 invariant).
type LocaleString map[string]string

// Package is the minimal, immutable snapshot of the package a Component
// originated from. Components hold this small value rather than a pointer
// back into the originating Package descriptor, so a Component's lifetime
// never depends on a package index staying resident.
type Package struct {
	Name         string
	Version      string
	Architecture string
}

// PkID is the package identity string used as a Cache packages-namespace key.
func (p Package) PkID() string {
	return p.Name + "/" + p.Version + "/" + p.Architecture
}

// Screenshot is one entry in a Component's ordered screenshot list.
type Screenshot struct {
	Default     bool
	Caption     LocaleString
	SourceURL   string
	SourceWidth int
	SourceHeight int
	Thumbnails  []Thumbnail
}

// Thumbnail is one rescaled copy of a Screenshot.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// Hint is a diagnostic record attached to a Component by any pipeline stage.
type Hint struct {
	Tag      string
	Severity Severity
	Params   map[string]string
}

// Severity is the diagnostic level of a Hint.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Component is the unit of catalog output.
type Component struct {
	ID           string
	Kind         Kind
	Name         LocaleString
	Summary      LocaleString
	Description  LocaleString
	DeveloperName LocaleString
	Categories   []string
	Keywords     LocaleString
	Architectures []string
	Icons        map[IconKind]string
	Screenshots  []Screenshot
	URLs         map[string]string
	ProjectLicense string
	ProjectGroup string
	Provides     map[ProvidedItemKind][]string
	Extends      []string
	CompulsoryForDesktops []string

	Package Package
	Hints   []Hint

	// SrcDataChecksum is the MD5 of the raw metainfo text(s) plus the
	// originating package version. Set via SetSourceDataChecksumFromData.
	SrcDataChecksum string
}

// AddHint appends a diagnostic to the component.
func (c *Component) AddHint(tag string, params map[string]string) {
	c.Hints = append(c.Hints, Hint{Tag: tag, Severity: severityOf(tag), Params: params})
}

// addHintSeverity appends a diagnostic with an explicit severity, used for
// the handful of tags whose severity is not implied by the tag name alone.
func (c *Component) addHintSeverity(tag string, severity Severity, params map[string]string) {
	c.Hints = append(c.Hints, Hint{Tag: tag, Severity: severity, Params: params})
}

// knownErrorTags is the set of hint tags that carry error severity, marking
// a component ignored. Everything else defaults to warning.
var knownErrorTags = map[string]bool{
	"deb-filelist-error":      true,
	"metainfo-no-id":          true,
	"missing-desktop-file":    true,
	"deb-extract-error":       true,
	"icon-not-found":          true,
	"icon-format-unsupported": true,
	"svgz-decompress-error":   true,
	"metainfo-duplicate-id":   true,
}

func severityOf(tag string) Severity {
	if knownErrorTags[tag] {
		return SeverityError
	}
	return SeverityWarning
}

// HasIgnoreReason reports whether any hint carries error severity. A
// component with an ignore reason is dropped from the catalog but its
// hints are retained in the hints stream.
func (c *Component) HasIgnoreReason() bool {
	for _, h := range c.Hints {
		if h.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SetSourceDataChecksumFromData computes SrcDataChecksum as the MD5 of raw
// (text concatenated with the package version).
func (c *Component) SetSourceDataChecksumFromData(text string) {
	sum := md5.Sum([]byte(text + c.Package.Version))
	c.SrcDataChecksum = hex.EncodeToString(sum[:])
}

// reverseDNSPrefixes is the set of top-level labels for which the global id
// uses the three-segment T/O/RST form instead of the two-prefix fallback.
var reverseDNSPrefixes = map[string]bool{
	"org": true, "net": true, "com": true, "io": true, "edu": true, "name": true,
}

// GlobalID derives the content-addressed identity used as the media-pool
// subdirectory and the metadata-namespace cache key.
//
// Two forms coexisted historically. This implementation resolves the
// ambiguity: when the component id splits into three or more dot-separated
// parts and its first part is a recognized reverse-DNS top-level label, the
// id is split as T/O/RST (T lowercased); otherwise the two-prefix fallback
// form is used (first character, first two characters of the id, full id),
// with the two prefixes lowercased.
func (c *Component) GlobalID() string {
	return GlobalID(c.ID, c.SrcDataChecksum)
}

// GlobalID computes the global id for a (component id, source-data
// checksum) pair directly, without requiring a Component value.
func GlobalID(cid, checksum string) string {
	if cid == "" || checksum == "" {
		return ""
	}
	parts := strings.Split(cid, ".")
	if len(parts) >= 3 && reverseDNSPrefixes[strings.ToLower(parts[0])] {
		t := strings.ToLower(parts[0])
		o := parts[1]
		rest := strings.Join(parts[2:], ".")
		return t + "/" + o + "/" + rest + "/" + checksum
	}
	first := cid[:1]
	two := cid
	if len(cid) >= 2 {
		two = cid[:2]
	}
	return strings.ToLower(first) + "/" + strings.ToLower(two) + "/" + cid + "/" + checksum
}

// cleanupLocale removes cruft locales (x-test, xx), strings identical to
// the C template, encoding suffixes, and surrounding quotes. Mirrors the
// source reference's component finalization cleanup.
func cleanupLocale(d LocaleString) LocaleString {
	if len(d) == 0 {
		return d
	}
	out := make(LocaleString, len(d))
	for k, v := range d {
		out[k] = v
	}
	delete(out, "x-test")
	delete(out, "xx")

	unlocalized, hasC := out["C"]
	if hasC {
		for k, v := range out {
			if k == "C" {
				continue
			}
			if v == unlocalized {
				delete(out, k)
				continue
			}
			if isQuoted(v) {
				out[k] = strings.Trim(v, `"'`)
			}
			if strings.HasSuffix(k, ".UTF-8") {
				locale := strings.TrimSuffix(k, ".UTF-8")
				delete(out, k)
				out[locale] = v
			}
		}
	}
	return out
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)) ||
		(strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'"))
}

// Finalize runs the §3/§4.8 invariant checks and locale cleanup in place.
// It must be called exactly once, after media fetching, before the
// component is handed to the cache.
func (c *Component) Finalize() {
	c.Name = cleanupLocale(c.Name)
	c.Summary = cleanupLocale(c.Summary)
	c.Description = cleanupLocale(c.Description)
	c.DeveloperName = cleanupLocale(c.DeveloperName)
	for i := range c.Screenshots {
		if c.Screenshots[i].Caption != nil {
			c.Screenshots[i].Caption = cleanupLocale(c.Screenshots[i].Caption)
		}
	}

	if c.HasIgnoreReason() {
		return
	}

	if c.ID == "" {
		c.addHintSeverity("metainfo-no-id", SeverityError, nil)
	}
	if c.Kind == "" {
		c.addHintSeverity("metainfo-no-type", SeverityWarning, nil)
	}
	if len(c.Name) == 0 {
		c.addHintSeverity("metainfo-no-name", SeverityWarning, nil)
	}
	if c.Package.Name == "" {
		c.addHintSeverity("metainfo-no-package", SeverityWarning, nil)
	}
	if len(c.Summary) == 0 {
		c.addHintSeverity("metainfo-no-summary", SeverityWarning, nil)
	}

	for _, field := range []LocaleString{c.Name, c.Summary, c.Description, c.DeveloperName, c.Keywords} {
		if len(field) == 0 {
			continue
		}
		if _, ok := field["C"]; !ok {
			c.addHintSeverity("metainfo-localized-field-without-template", SeverityWarning, nil)
			break
		}
	}
}

// HasIcon reports whether any icon reference has been recorded.
func (c *Component) HasIcon() bool {
	return len(c.Icons) > 0
}

// SortedProvidedKinds returns the Provides map's keys in a stable order,
// for deterministic serialization.
func (c *Component) SortedProvidedKinds() []ProvidedItemKind {
	keys := make([]ProvidedItemKind, 0, len(c.Provides))
	for k := range c.Provides {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
