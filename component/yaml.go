package component

import (
	"strings"

	"go.yaml.in/yaml/v3"
)

// yamlDoc mirrors the DEP-11 component document schema (§6): field
// declaration order here is the emitted key order, since the yaml encoder
// preserves struct field order for block-style mappings.
type yamlDoc struct {
	Package               string              `yaml:"Package"`
	ID                    string              `yaml:"ID,omitempty"`
	Type                  Kind                `yaml:"Type,omitempty"`
	Ignored               bool                `yaml:"Ignored,omitempty"`
	Name                  LocaleString        `yaml:"Name,omitempty"`
	Summary               LocaleString        `yaml:"Summary,omitempty"`
	Categories            []string            `yaml:"Categories,omitempty"`
	Description           LocaleString        `yaml:"Description,omitempty"`
	Keywords              LocaleString        `yaml:"Keywords,omitempty"`
	Screenshots           []screenshotDoc     `yaml:"Screenshots,omitempty"`
	Architectures         []string            `yaml:"Architectures,omitempty"`
	Icon                  *iconDoc            `yaml:"Icon,omitempty"`
	URL                   map[string]string   `yaml:"Url,omitempty"`
	Provides              map[ProvidedItemKind][]string `yaml:"Provides,omitempty"`
	ProjectLicense        string              `yaml:"ProjectLicense,omitempty"`
	ProjectGroup          string              `yaml:"ProjectGroup,omitempty"`
	DeveloperName         LocaleString        `yaml:"DeveloperName,omitempty"`
	Extends               []string            `yaml:"Extends,omitempty"`
	CompulsoryForDesktops []string            `yaml:"CompulsoryForDesktops,omitempty"`
}

type iconDoc struct {
	Cached string `yaml:"cached,omitempty"`
	Stock  string `yaml:"stock,omitempty"`
	Remote string `yaml:"remote,omitempty"`
}

type imageDoc struct {
	URL    string `yaml:"url"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

type screenshotDoc struct {
	Default     bool         `yaml:"default,omitempty"`
	Caption     LocaleString `yaml:"caption,omitempty"`
	SourceImage imageDoc     `yaml:"source-image"`
	Thumbnails  []imageDoc   `yaml:"thumbnails,omitempty"`
}

func (c *Component) toYAMLDoc() yamlDoc {
	d := yamlDoc{
		Package: c.Package.Name,
		ID:      c.ID,
		Type:    c.Kind,
	}
	if c.HasIgnoreReason() {
		d.Ignored = true
		return d
	}

	d.Name = c.Name
	d.Summary = c.Summary
	d.Categories = c.Categories
	d.Description = c.Description
	d.Keywords = c.Keywords
	d.Architectures = c.Architectures
	d.URL = c.URLs
	d.Provides = c.Provides
	d.ProjectLicense = c.ProjectLicense
	d.ProjectGroup = c.ProjectGroup
	d.DeveloperName = c.DeveloperName
	d.Extends = c.Extends
	d.CompulsoryForDesktops = c.CompulsoryForDesktops

	if len(c.Icons) > 0 {
		icon := &iconDoc{
			Cached: c.Icons[IconCached],
			Stock:  c.Icons[IconStock],
			Remote: c.Icons[IconRemote],
		}
		d.Icon = icon
	}

	for _, shot := range c.Screenshots {
		sd := screenshotDoc{
			Default: shot.Default,
			Caption: shot.Caption,
			SourceImage: imageDoc{
				URL: shot.SourceURL, Width: shot.SourceWidth, Height: shot.SourceHeight,
			},
		}
		for _, th := range shot.Thumbnails {
			sd.Thumbnails = append(sd.Thumbnails, imageDoc{URL: th.URL, Width: th.Width, Height: th.Height})
		}
		d.Screenshots = append(d.Screenshots, sd)
	}

	return d
}

// ToYAMLDoc serializes the component to a single explicit-start YAML
// document, matching the §6 catalog document schema. Block-style
// (no flow collapses), 2-space indent, UTF-8 passed through unescaped.
func (c *Component) ToYAMLDoc() (string, error) {
	var buf strings.Builder
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c.toYAMLDoc()); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// hintEntry is one diagnostic in a package's hints document.
type hintEntry struct {
	Tag    string            `yaml:"tag"`
	Params map[string]string `yaml:"params,omitempty"`
}

// hintsDoc mirrors the §6 hints-stream document schema.
type hintsDoc struct {
	Package   string      `yaml:"Package"`
	PackageID string      `yaml:"PackageID,omitempty"`
	ID        string      `yaml:"ID,omitempty"`
	Type      Kind        `yaml:"Type,omitempty"`
	Ignored   bool        `yaml:"Ignored,omitempty"`
	Hints     []hintEntry `yaml:"Hints"`
}

// HintsYAMLDoc renders this component's hints as one §6 hints-stream
// document. pkid is the package identity string the hints are filed
// under. Returns ok=false when the component recorded no hints.
func (c *Component) HintsYAMLDoc(pkid string) (doc string, ok bool) {
	if len(c.Hints) == 0 {
		return "", false
	}
	hd := hintsDoc{
		Package:   c.Package.Name,
		PackageID: pkid,
		ID:        c.ID,
		Type:      c.Kind,
		Ignored:   c.HasIgnoreReason(),
	}
	for _, h := range c.Hints {
		hd.Hints = append(hd.Hints, hintEntry{Tag: h.Tag, Params: h.Params})
	}

	var buf strings.Builder
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(hd); err != nil {
		return "", false
	}
	if err := enc.Close(); err != nil {
		return "", false
	}
	return buf.String(), true
}
