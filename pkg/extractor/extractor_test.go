package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rephrase/pkg/config"
	"rephrase/pkg/logger"
)

const chapterPage = `<html><head><title>Chapter 1</title></head><body>
<div id="chapter-content"><p>First line.</p><p>Second <b>bold</b> line.</p><script>var x = 1;</script></div>
<a id="next_chap" href=" /book/chapter-2.html ">Next</a>
</body></html>`

func newExtractor(log logger.Logger) *HTMLExtractor {
	return New(config.DefaultConfig().Extract, log)
}

func TestExtract(t *testing.T) {
	t.Run("ContentAndNext", func(t *testing.T) {
		res, err := newExtractor(nil).Extract([]byte(chapterPage), "https://example.com/book/chapter-1.html")
		require.NoError(t, err)
		assert.False(t, res.Missing)
		assert.Equal(t, "First line.\n\tSecond \n\tbold\n\t line.", res.Text)
		assert.Equal(t, "/book/chapter-2.html", res.NextHref)
	})

	t.Run("MissingContentIsNotAnError", func(t *testing.T) {
		log := logger.NewTestLogger()
		page := `<html><body><p>Nothing here</p><a id="next_chap" href="chapter-3.html">Next</a></body></html>`

		res, err := newExtractor(log).Extract([]byte(page), "https://example.com/book/chapter-2.html")
		require.NoError(t, err)
		assert.True(t, res.Missing)
		assert.Empty(t, res.Text)
		assert.Equal(t, "chapter-3.html", res.NextHref)
		assert.True(t, log.HasMessage("content element not found"))
	})

	t.Run("NoNextLink", func(t *testing.T) {
		page := `<div id="chapter-content">The end.</div>`
		res, err := newExtractor(nil).Extract([]byte(page), "https://example.com/last")
		require.NoError(t, err)
		assert.Equal(t, "The end.", res.Text)
		assert.Empty(t, res.NextHref)
	})

	t.Run("CustomSelectors", func(t *testing.T) {
		e := New(config.ExtractConfig{
			ContentSelector: "article",
			NextSelector:    "link[rel=next]",
			TextSeparator:   "\n",
		}, nil)
		page := `<html><head><link rel="next" href="/p/2"></head><body><article>a<br>b</article></body></html>`

		res, err := e.Extract([]byte(page), "https://example.com/p/1")
		require.NoError(t, err)
		assert.Equal(t, "a\nb", res.Text)
		assert.Equal(t, "/p/2", res.NextHref)
	})
}
