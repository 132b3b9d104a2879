package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/blogpipe/internal/content"
)

func TestIndexTermsAreLowercased(t *testing.T) {
	idx, err := NewIndex(nil)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, []string{"hello", "world"}, idx.Terms("Hello, WORLD!"))
	assert.Empty(t, idx.Terms("  ...  "))
}

func TestIndexMatchesCJK(t *testing.T) {
	idx, err := NewIndex([]content.SearchIndexEntry{
		entry("zh", "你好世界", "编程之旅"),
		entry("en", "Hello", "world"),
	})
	require.NoError(t, err)
	defer idx.Close()

	positions, err := idx.Search("世界", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, positions)
}

func TestIndexSearchesTags(t *testing.T) {
	idx, err := NewIndex([]content.SearchIndexEntry{
		entry("a", "One", "nothing", "kubernetes"),
		entry("b", "Two", "nothing"),
	})
	require.NoError(t, err)
	defer idx.Close()

	positions, err := idx.Search("kube", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, positions)

	positions, err = idx.Search("anything", 0)
	require.NoError(t, err)
	assert.Empty(t, positions)
}
