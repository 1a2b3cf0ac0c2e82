// Package metainfo implements the two embedded metadata readers the
// Extractor consults: AppStream upstream XML and XDG desktop-entry INI
// (§4.5).
package metainfo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/debian-appstream/dep11gen/component"
)

// ParseAppstreamXML reads one AppStream upstream metainfo document into cpt.
// The root element's `type` attribute maps "desktop" to desktop-app; any
// other value (or its absence) is carried through as the component kind
// verbatim, defaulting to generic.
func ParseAppstreamXML(cpt *component.Component, xmlText string) error {
	dec := xml.NewDecoder(strings.NewReader(xmlText))

	var root struct {
		XMLName xml.Name `xml:"component"`
		Type    string   `xml:"type,attr"`
		ID      string   `xml:"id"`
		Name    []locEl  `xml:"name"`
		Summary []locEl  `xml:"summary"`
		Description struct {
			Inner string `xml:",innerxml"`
		} `xml:"description"`
		Screenshots struct {
			Screenshot []screenshotEl `xml:"screenshot"`
		} `xml:"screenshots"`
		Provides struct {
			Binary    []string `xml:"binary"`
			Library   []string `xml:"library"`
			Mimetype  []string `xml:"mimetype"`
			Font      []string `xml:"font"`
			Modalias  []string `xml:"modalias"`
			Python2   []string `xml:"python2"`
			Python3   []string `xml:"python3"`
			DBus      []string `xml:"dbus"`
			Firmware  []string `xml:"firmware"`
		} `xml:"provides"`
		URL                  []urlEl  `xml:"url"`
		ProjectLicense       string   `xml:"project_license"`
		ProjectGroup         string   `xml:"project_group"`
		DeveloperName        []locEl  `xml:"developer_name"`
		Extends              []string `xml:"extends"`
		CompulsoryForDesktop []string `xml:"compulsory_for_desktop"`
		Categories           struct {
			Category []string `xml:"category"`
		} `xml:"categories"`
		Keywords struct {
			Keyword []locEl `xml:"keyword"`
		} `xml:"keywords"`
	}

	if err := dec.Decode(&root); err != nil {
		return fmt.Errorf("metainfo: parse appstream xml: %w", err)
	}

	switch root.Type {
	case "desktop":
		cpt.Kind = component.KindDesktopApp
	case "":
		cpt.Kind = component.KindGeneric
	default:
		cpt.Kind = component.Kind(root.Type)
	}

	cpt.ID = strings.TrimSpace(root.ID)
	cpt.Name = localeMap(root.Name)
	cpt.Summary = localeMap(root.Summary)
	if desc := renderDescription(root.Description.Inner); desc != nil {
		cpt.Description = desc
	}
	cpt.DeveloperName = localeMap(root.DeveloperName)
	cpt.ProjectLicense = root.ProjectLicense
	cpt.ProjectGroup = root.ProjectGroup
	cpt.Extends = root.Extends
	cpt.CompulsoryForDesktops = root.CompulsoryForDesktop
	cpt.Categories = root.Categories.Category

	if len(root.Keywords.Keyword) > 0 {
		kw := localeMap(root.Keywords.Keyword)
		cpt.Keywords = kw
	}

	if urls := urlMap(root.URL); len(urls) > 0 {
		cpt.URLs = urls
	}

	provides := map[component.ProvidedItemKind][]string{}
	addProvides(provides, component.ProvidesBinary, root.Provides.Binary)
	addProvides(provides, component.ProvidesLibrary, root.Provides.Library)
	addProvides(provides, component.ProvidesMimetype, root.Provides.Mimetype)
	addProvides(provides, component.ProvidesFont, root.Provides.Font)
	addProvides(provides, component.ProvidesModalias, root.Provides.Modalias)
	addProvides(provides, component.ProvidesPython2, root.Provides.Python2)
	addProvides(provides, component.ProvidesPython3, root.Provides.Python3)
	addProvides(provides, component.ProvidesDBus, root.Provides.DBus)
	addProvides(provides, component.ProvidesFirmware, root.Provides.Firmware)
	if len(provides) > 0 {
		cpt.Provides = provides
	}

	cpt.Screenshots = renderScreenshots(root.Screenshots.Screenshot)
	return nil
}

type locEl struct {
	Lang string `xml:"lang,attr"`
	Text string `xml:",chardata"`
}

type urlEl struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

type screenshotEl struct {
	Type    string  `xml:"type,attr"`
	Text    string  `xml:",chardata"`
	Caption []locEl `xml:"caption"`
	Image   []struct {
		Width  int    `xml:"width,attr"`
		Height int    `xml:"height,attr"`
		Text   string `xml:",chardata"`
	} `xml:"image"`
}

func localeMap(els []locEl) component.LocaleString {
	if len(els) == 0 {
		return nil
	}
	m := make(component.LocaleString, len(els))
	for _, el := range els {
		lang := el.Lang
		if lang == "" {
			lang = "C"
		}
		m[lang] = strings.TrimSpace(collapseWhitespace(el.Text))
	}
	return m
}

func urlMap(els []urlEl) map[string]string {
	if len(els) == 0 {
		return nil
	}
	m := make(map[string]string, len(els))
	for _, el := range els {
		kind := el.Type
		if kind == "" {
			kind = "homepage"
		}
		m[kind] = strings.TrimSpace(el.Text)
	}
	return m
}

func addProvides(dst map[component.ProvidedItemKind][]string, kind component.ProvidedItemKind, values []string) {
	if len(values) == 0 {
		return
	}
	dst[kind] = append(dst[kind], values...)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// descTag is the minimal subset of description markup this reader
// understands: p, ul, ol, li (§4.5).
type descTag struct {
	XMLName xml.Name
	Lang    string    `xml:"lang,attr"`
	Content []byte    `xml:",innerxml"`
	Items   []descTag `xml:",any"`
}

// renderDescription turns the raw inner XML of a <description> element into
// a per-locale HTML fragment, concatenating rendered <p>/<ul>/<ol> blocks.
// <li> text is placed under its enclosing list's locale.
func renderDescription(innerXML string) component.LocaleString {
	if strings.TrimSpace(innerXML) == "" {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader([]byte("<root>" + innerXML + "</root>")))
	out := component.LocaleString{}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "p":
			var el descTag
			if err := dec.DecodeElement(&el, &start); err != nil {
				continue
			}
			lang := langOf(start, "C")
			out[lang] += "<p>" + collapseWhitespace(string(el.Content)) + "</p>"
		case "ul", "ol":
			var el struct {
				Li []locEl `xml:"li"`
			}
			if err := dec.DecodeElement(&el, &start); err != nil {
				continue
			}
			lang := langOf(start, "C")
			var b strings.Builder
			fmt.Fprintf(&b, "<%s>", start.Name.Local)
			for _, li := range el.Li {
				liLang := li.Lang
				if liLang == "" {
					liLang = lang
				}
				_ = liLang
				fmt.Fprintf(&b, "<li>%s</li>", escapeText(collapseWhitespace(li.Text)))
			}
			fmt.Fprintf(&b, "</%s>", start.Name.Local)
			out[lang] += b.String()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func langOf(start xml.StartElement, def string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == "lang" {
			return attr.Value
		}
	}
	return def
}

func escapeText(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

func renderScreenshots(els []screenshotEl) []component.Screenshot {
	var out []component.Screenshot
	for _, el := range els {
		shot := component.Screenshot{Default: el.Type == "default"}
		if len(el.Image) > 0 {
			// New form: <image> child carries the URL, optionally width/height.
			img := el.Image[0]
			shot.SourceURL = strings.TrimSpace(img.Text)
			shot.SourceWidth = img.Width
			shot.SourceHeight = img.Height
		} else {
			// Old form: element text itself is the URL.
			shot.SourceURL = strings.TrimSpace(el.Text)
		}
		if shot.SourceURL == "" {
			continue
		}
		if len(el.Caption) > 0 {
			shot.Caption = localeMap(el.Caption)
		}
		out = append(out, shot)
	}
	return out
}
