package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags_SetKeepsOrderAndReplacesInPlace(t *testing.T) {
	tags := NewTags()
	tags.Set("title", "a")
	tags.Set("artist", "b")
	tags.Set("TITLE", "c")

	assert.Equal(t, []string{"title", "artist"}, tags.Keys())
	v, ok := tags.Get("Title")
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, 2, tags.Len())
}

func TestTags_Delete(t *testing.T) {
	tags := NewTags()
	tags.Set("a", "1")
	tags.Set("b", "2")
	tags.Set("c", "3")
	tags.Delete("B")
	tags.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, tags.Keys())
	_, ok := tags.Get("b")
	assert.False(t, ok)
}

func TestTags_NilSafe(t *testing.T) {
	var tags *Tags
	assert.Equal(t, 0, tags.Len())
	assert.Nil(t, tags.Keys())
	_, ok := tags.Get("x")
	assert.False(t, ok)
	assert.Empty(t, tags.Map())
}

func TestTags_MergeAndClone(t *testing.T) {
	a := TagsFromMap(map[string]string{"b": "2", "a": "1"})
	b := a.Clone()
	b.Merge(TagsFromMap(map[string]string{"a": "x", "c": "3"}))

	assert.Equal(t, []string{"a", "b"}, a.Keys())
	assert.Equal(t, map[string]string{"a": "x", "b": "2", "c": "3"}, b.Map())
}

func TestTags_MarshalJSONOrdered(t *testing.T) {
	tags := NewTags()
	tags.Set("zeta", "1")
	tags.Set("alpha", "\"q\"")

	out, err := json.Marshal(tags)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"1","alpha":"\"q\""}`, string(out))
}
