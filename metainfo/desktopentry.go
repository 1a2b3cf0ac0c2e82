package metainfo

import (
	"bufio"
	"strings"

	"github.com/debian-appstream/dep11gen/component"
)

// ParseDesktopEntry reads the `[Desktop Entry]` group of an XDG desktop
// file into cpt. It returns false when the entry should be silently
// dropped (§4.5): `Type` is not `Application`, or `NoDisplay=true` applies
// and ignoreNoDisplay is false. ignoreNoDisplay is true when a metainfo XML
// was already read for this component.
func ParseDesktopEntry(cpt *component.Component, content string, ignoreNoDisplay bool) (keep bool) {
	fields := parseDesktopGroup(content)

	if fields.plain["Type"] != "Application" {
		return false
	}
	if fields.plain["NoDisplay"] == "true" && !ignoreNoDisplay {
		return false
	}

	if name := fields.localized["Name"]; len(name) > 0 {
		mergeLocale(&cpt.Name, name)
	}
	if generic := fields.localized["GenericName"]; len(generic) > 0 && len(cpt.Name) == 0 {
		mergeLocale(&cpt.Name, generic)
	}
	if comment := fields.localized["Comment"]; len(comment) > 0 {
		mergeLocale(&cpt.Summary, comment)
	}
	if icon := fields.plain["Icon"]; icon != "" {
		if cpt.Icons == nil {
			cpt.Icons = map[component.IconKind]string{}
		}
		cpt.Icons[component.IconRemote] = icon // resolved to cached/stock by IconHandler
	}
	if cats := fields.plain["Categories"]; cats != "" {
		cpt.Categories = splitNonEmpty(cats, ";")
	}
	for locale, val := range fields.localized["Keywords"] {
		if cpt.Keywords == nil {
			cpt.Keywords = component.LocaleString{}
		}
		cpt.Keywords[locale] = val
	}
	if mimetypes := fields.plain["MimeType"]; mimetypes != "" {
		if cpt.Provides == nil {
			cpt.Provides = map[component.ProvidedItemKind][]string{}
		}
		cpt.Provides[component.ProvidesMimetype] = append(cpt.Provides[component.ProvidesMimetype],
			splitNonEmpty(mimetypes, ";")...)
	}
	return true
}

func mergeLocale(dst *component.LocaleString, src component.LocaleString) {
	if *dst == nil {
		*dst = component.LocaleString{}
	}
	for k, v := range src {
		(*dst)[k] = v
	}
}

type desktopGroup struct {
	plain     map[string]string
	localized map[string]component.LocaleString
}

// parseDesktopGroup parses the `[Desktop Entry]` group only, unquoting
// values and splitting `Key[locale]` forms, and stripping `.UTF-8` locale
// suffixes (§4.5).
func parseDesktopGroup(content string) desktopGroup {
	out := desktopGroup{plain: map[string]string{}, localized: map[string]component.LocaleString{}}

	inGroup := false
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inGroup = line == "[Desktop Entry]"
			continue
		}
		if !inGroup {
			continue
		}
		i := strings.Index(line, "=")
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		val := unquote(strings.TrimSpace(line[i+1:]))

		base, locale, ok := splitLocaleKey(key)
		if !ok {
			out.plain[key] = val
			continue
		}
		if out.localized[base] == nil {
			out.localized[base] = component.LocaleString{}
		}
		out.localized[base][locale] = val
	}

	// Plain (unsuffixed) forms of localizable keys become the "C" entry.
	for _, key := range []string{"Name", "GenericName", "Comment"} {
		if v, ok := out.plain[key]; ok {
			if out.localized[key] == nil {
				out.localized[key] = component.LocaleString{}
			}
			if _, has := out.localized[key]["C"]; !has {
				out.localized[key]["C"] = v
			}
		}
	}
	return out
}

func splitLocaleKey(key string) (base, locale string, ok bool) {
	i := strings.Index(key, "[")
	if i < 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	base = key[:i]
	locale = key[i+1 : len(key)-1]
	locale = strings.TrimSuffix(locale, ".UTF-8")
	return base, locale, true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)) ||
			(strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
