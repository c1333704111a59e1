// Package extractor pulls the chapter text and the next-link token out of a
// fetched page.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"rephrase/pkg/config"
	"rephrase/pkg/logger"
)

// Result is what the walker needs from one page.
type Result struct {
	Text string
	// NextHref is the raw href of the next link, possibly relative.
	// Empty when the page has no next link.
	NextHref string
	// Missing is set when the content element was absent.
	Missing bool
}

// Extractor is the extraction boundary.
type Extractor interface {
	Extract(body []byte, id string) (*Result, error)
}

// HTMLExtractor extracts content using CSS selectors.
type HTMLExtractor struct {
	contentSelector string
	nextSelector    string
	separator       string
	logger          logger.Logger
}

// New creates an HTMLExtractor from the extract configuration.
func New(cfg config.ExtractConfig, log logger.Logger) *HTMLExtractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTMLExtractor{
		contentSelector: cfg.ContentSelector,
		nextSelector:    cfg.NextSelector,
		separator:       cfg.TextSeparator,
		logger:          log,
	}
}

// Extract parses body and returns the content text and next link.
// A page without the content element yields empty text, not an error.
func (e *HTMLExtractor) Extract(body []byte, id string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &Result{}

	content := doc.Find(e.contentSelector).First()
	if content.Length() == 0 {
		e.logger.DebugWithFields("content element not found", map[string]interface{}{
			"url":      id,
			"selector": e.contentSelector,
		})
		result.Missing = true
	} else {
		result.Text = joinText(content.Nodes[0], e.separator)
	}

	if href, ok := doc.Find(e.nextSelector).First().Attr("href"); ok {
		result.NextHref = strings.TrimSpace(href)
	}

	return result, nil
}

// joinText concatenates every text node under n, in document order,
// with sep between them. Whitespace-only nodes are kept.
func joinText(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			parts = append(parts, node.Data)
			return
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}
