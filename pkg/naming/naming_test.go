package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"html page", "https://example.com/book/chapter-12.html", "chapter-12"},
		{"trailing slash", "https://example.com/book/chapter-12/", "chapter-12"},
		{"no path", "https://example.com", "index"},
		{"root path", "https://example.com/", "index"},
		{"unsafe characters", "https://example.com/read:chapter=3", "read_chapter_3"},
		{"query is not part of the key", "https://example.com/c/chapter-4.php?page=2", "chapter-4"},
		{"extension only", "https://example.com/.html", "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.url))
		})
	}
}

func TestSortNatural(t *testing.T) {
	ids := []string{"chapter-2", "chapter-10", "chapter-1"}
	SortNatural(ids)
	assert.Equal(t, []string{"chapter-1", "chapter-2", "chapter-10"}, ids)

	mixed := []string{"chapter-10-end", "chapter-9", "appendix", "chapter-010", "chapter-9-b"}
	SortNatural(mixed)
	assert.Equal(t, []string{"appendix", "chapter-9", "chapter-9-b", "chapter-010", "chapter-10-end"}, mixed)
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, NaturalLess("item-9", "item-10"))
	assert.False(t, NaturalLess("item-10", "item-9"))
	assert.False(t, NaturalLess("a", "a"))
	assert.True(t, NaturalLess("a", "ab"))
}

func TestNamer(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"chapter-426-blacksmith", "Chapter 426 - Blacksmith.md"},
		{"chapter-334", "Chapter 334.md"},
		{"chapter-7-the-iron-gate", "Chapter 7 - The Iron Gate.md"},
		{"Chapter-12", "Chapter 12.md"},
		{"prologue", "prologue.md"},
	}

	namer := NewNamer("Chapter", "md")
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, namer.Name(tt.id))
		})
	}

	episodes := NewNamer("Episode", ".txt")
	assert.Equal(t, "Episode 3.txt", episodes.Name("episode-3"))
	assert.Equal(t, "chapter-3.txt", episodes.Name("chapter-3"))

	// Labels are matched literally, not as patterns.
	assert.Equal(t, "part1x2.md", NewNamer("part.", "md").Name("part1x2"))
	assert.Equal(t, "part. 2.md", NewNamer("part.", "md").Name("part.-2"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Title\nLine - one\nindented", Format("Title\nLine—one\n\tindented"))
	assert.Equal(t, "# Already\nbody", Format("# Already\nbody"))
	assert.Equal(t, "# ", Format(""))

	once := Format("Title\nLine—one")
	assert.Equal(t, once, Format(once), "formatting is stable when reapplied")
}
