// Package normalize rewrites processed artifacts as clean UTF-8.
//
// Transform backends and hand edits occasionally leave files in a legacy
// encoding or with a byte order mark. Dir detects each file's charset,
// decodes it, collapses runs of blank lines and writes it back.
package normalize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"rephrase/pkg/logger"
	"rephrase/pkg/storage"
)

// DefaultPattern matches the artifacts the processor writes with the default label.
const DefaultPattern = "Chapter*.md"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileResult reports what happened to one file.
type FileResult struct {
	Name string
	// From is the detected source charset.
	From    string
	Changed bool
	Err     error
}

// Dir normalises every file in dir matching pattern. Files whose encoding
// cannot be detected or decoded are reported and left untouched.
func Dir(dir, pattern string, log logger.Logger) ([]FileResult, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if pattern == "" {
		pattern = DefaultPattern
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	out, err := storage.NewManager(dir)
	if err != nil {
		return nil, err
	}

	detector := chardet.NewTextDetector()
	results := make([]FileResult, 0, len(matches))
	for _, path := range matches {
		res := normalizeFile(path, detector, out)
		if res.Err != nil {
			log.WithError(res.Err).WarnWithFields("Could not normalise file", map[string]interface{}{
				"file": res.Name,
			})
		} else {
			log.InfoWithFields("Normalised file", map[string]interface{}{
				"file":    res.Name,
				"from":    res.From,
				"changed": res.Changed,
			})
		}
		results = append(results, res)
	}
	return results, nil
}

func normalizeFile(path string, detector *chardet.Detector, out *storage.Manager) FileResult {
	res := FileResult{Name: filepath.Base(path)}

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	text, from, err := Decode(raw, detector)
	if err != nil {
		res.Err = err
		return res
	}
	res.From = from

	cleaned := collapseBlankLines(text)
	if cleaned == string(raw) {
		return res
	}

	if _, err := out.WriteFile(res.Name, []byte(cleaned)); err != nil {
		res.Err = err
		return res
	}
	res.Changed = true
	return res
}

// Decode converts raw to a UTF-8 string without a byte order mark and
// returns the detected source charset.
func Decode(raw []byte, detector *chardet.Detector) (string, string, error) {
	if bytes.HasPrefix(raw, utf8BOM) {
		return string(raw[len(utf8BOM):]), "UTF-8", nil
	}
	if len(raw) == 0 {
		return "", "UTF-8", nil
	}

	best, err := detector.DetectBest(raw)
	if err != nil {
		return "", "", fmt.Errorf("could not detect encoding: %w", err)
	}
	if strings.EqualFold(best.Charset, "UTF-8") {
		return string(raw), best.Charset, nil
	}

	enc, err := htmlindex.Get(best.Charset)
	if err != nil {
		return "", best.Charset, fmt.Errorf("unsupported encoding %s: %w", best.Charset, err)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", best.Charset, fmt.Errorf("failed to decode from %s: %w", best.Charset, err)
	}
	return string(bytes.TrimPrefix(decoded, utf8BOM)), best.Charset, nil
}

// collapseBlankLines replaces every run of three newlines with one.
func collapseBlankLines(s string) string {
	return strings.ReplaceAll(s, "\n\n\n", "\n")
}
