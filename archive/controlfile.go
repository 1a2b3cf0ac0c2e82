// Package archive reads the archive-wide indices a Debian-style archive
// publishes: per-(suite, component, architecture) package indices
// (PackageIndex, spec §4.1) and the Contents file that maps installed file
// paths back to owning packages (ContentsIndex, spec §4.3).
package archive

import "strings"

// parseStanzas splits an RFC-822-style control file into its blank-line
// separated paragraphs and folds continuation lines (leading whitespace)
// into the preceding field, the same folded-field convention Debian control
// files, Packages indices and Release files all share.
func parseStanzas(content string) []map[string]string {
	var stanzas []map[string]string
	cur := map[string]string{}
	var key string
	var val strings.Builder

	flush := func() {
		if key != "" {
			cur[key] = strings.TrimSpace(val.String())
		}
		key = ""
		val.Reset()
	}

	endStanza := func() {
		flush()
		if len(cur) > 0 {
			stanzas = append(stanzas, cur)
		}
		cur = map[string]string{}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			endStanza()
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			val.WriteString("\n" + line)
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		flush()
		key = strings.TrimSpace(line[:idx])
		val.WriteString(strings.TrimSpace(line[idx+1:]))
	}
	endStanza()
	return stanzas
}
