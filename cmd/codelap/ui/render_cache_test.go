package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderCacheEvictsOldest(t *testing.T) {
	c := newRenderCache(2)
	calls := 0
	render := func(s string) func() string {
		return func() string { calls++; return "<" + s + ">" }
	}

	assert.Equal(t, "<a>", c.getOrCompute(cacheKey("a"), render("a")))
	assert.Equal(t, "<a>", c.getOrCompute(cacheKey("a"), render("a")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.hits)

	c.getOrCompute(cacheKey("b"), render("b"))
	c.getOrCompute(cacheKey("c"), render("c"))
	assert.Equal(t, 2, c.len())

	_, ok := c.get(cacheKey("a"))
	assert.False(t, ok, "oldest entry evicted")
	_, ok = c.get(cacheKey("c"))
	assert.True(t, ok)
}

func TestCacheKeySeparatesParts(t *testing.T) {
	assert.NotEqual(t, cacheKey("ab", "c"), cacheKey("a", "bc"))
	assert.Equal(t, cacheKey("x"), cacheKey("x"))
}

func TestMarkdownRenderIsCached(t *testing.T) {
	md := NewMarkdown(DarkTheme(), 60)
	if md.renderer == nil {
		t.Skip("glamour renderer unavailable")
	}
	first := md.Render("# Title\n\nbody")
	assert.Contains(t, first, "Title")
	assert.Equal(t, first, md.Render("# Title\n\nbody"))
	assert.Equal(t, 1, md.cache.len())
}

func TestLayout(t *testing.T) {
	assert.Equal(t, 20, bodyHeight(24))
	assert.Equal(t, 0, bodyHeight(2))
	assert.Equal(t, 76, contentWidth(80))
	assert.Equal(t, minContentWidth, contentWidth(10))
}
