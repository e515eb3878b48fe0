package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dueldanov/embedscript/internal/script"
)

func TestScriptCache_PutAndGet(t *testing.T) {
	c := newScriptCache(10)
	parsed := &script.Script{Filename: "a.script"}

	_, _, ok := c.get("a.script", "source")
	assert.False(t, ok)

	c.put("a.script", "source", parsed, nil)

	got, diags, ok := c.get("a.script", "source")
	require.True(t, ok)
	assert.Same(t, parsed, got)
	assert.Empty(t, diags)
}

func TestScriptCache_DifferentSourceIsDifferentKey(t *testing.T) {
	c := newScriptCache(10)
	c.put("a.script", "v1", &script.Script{Filename: "a.script"}, nil)

	_, _, ok := c.get("a.script", "v2")
	assert.False(t, ok, "changing the source text must miss the cache")
}

func TestScriptCache_Clear(t *testing.T) {
	c := newScriptCache(10)
	c.put("a.script", "source", &script.Script{}, nil)
	require.Equal(t, 1, c.size())

	c.clear()
	assert.Equal(t, 0, c.size())
}
