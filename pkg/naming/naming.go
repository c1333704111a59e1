package naming

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var unsafeKeyChars = strings.NewReplacer("?", "_", "&", "_", "=", "_", ":", "_", "#", "_")

// Slug derives the storage key for an identifier: the last path segment with
// characters unsafe for file names replaced and the extension dropped.
func Slug(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	p = strings.TrimRight(p, "/")
	if p == "" {
		return "index"
	}

	name := unsafeKeyChars.Replace(path.Base(p))
	stem := strings.TrimSuffix(name, path.Ext(name))
	if stem == "" {
		return "page"
	}
	return stem
}

// NaturalLess orders identifiers so that digit runs compare as integers:
// "chapter-9" sorts before "chapter-10". Equal keys fall back to a plain
// string comparison so the order is total.
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

// SortNatural sorts ids in place using NaturalLess.
func SortNatural(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return NaturalLess(ids[i], ids[j])
	})
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Namer builds processed artifact names for one label and extension.
// A Namer is safe for concurrent use.
type Namer struct {
	label   string
	ext     string
	pattern *regexp.Regexp
}

// NewNamer compiles the "<label>-<n>[-title]" pattern once for label.
func NewNamer(label, ext string) *Namer {
	return &Namer{
		label:   label,
		ext:     strings.TrimPrefix(ext, "."),
		pattern: regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(strings.ToLower(label)) + `-(\d+)(?:-(.+))?$`),
	}
}

// Name returns the artifact name for id, e.g. "chapter-426-blacksmith" with
// label "Chapter" becomes "Chapter 426 - Blacksmith.md". Identifiers that do
// not carry "<label>-<n>" fall back to "<id>.<ext>".
func (n *Namer) Name(id string) string {
	m := n.pattern.FindStringSubmatch(id)
	if m == nil {
		return fmt.Sprintf("%s.%s", id, n.ext)
	}

	name := fmt.Sprintf("%s %s", n.label, m[1])
	if m[2] != "" {
		title := cases.Title(language.English).String(strings.ReplaceAll(m[2], "-", " "))
		name += " - " + strings.TrimSpace(title)
	}
	return fmt.Sprintf("%s.%s", name, n.ext)
}

// Format applies the post-transform layout rules: the first line becomes a
// heading unless it already is one; later lines get em-dashes spaced out and
// tabs removed.
func Format(text string) string {
	lines := strings.Split(text, "\n")
	if !strings.HasPrefix(lines[0], "#") {
		lines[0] = "# " + lines[0]
	}
	for i := 1; i < len(lines); i++ {
		line := strings.ReplaceAll(lines[i], "—", " - ")
		lines[i] = strings.ReplaceAll(line, "\t", "")
	}
	return strings.Join(lines, "\n")
}
