package ingest

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/pipeline/common"
)

func TestNewSplitter_Validation(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.True(t, common.IsValidationError(err))
	_, err = NewSplitter(100, 100)
	assert.True(t, common.IsValidationError(err))
	_, err = NewSplitter(100, -1)
	assert.True(t, common.IsValidationError(err))
	s, err := NewSplitter(1000, 200)
	require.NoError(t, err)
	assert.Equal(t, 1000, s.ChunkSize)
}

func TestSplitter_ShortTextSingleChunk(t *testing.T) {
	s, _ := NewSplitter(1000, 200)
	chunks := s.SplitText("  Attention is all you need.  ")
	assert.Equal(t, []string{"Attention is all you need."}, chunks)
	assert.Empty(t, s.SplitText("   \n\n  "))
}

func TestSplitter_RespectsSizeAndOverlap(t *testing.T) {
	s, _ := NewSplitter(50, 20)
	words := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words[:30], " ") + "\n\n" + strings.Join(words[30:], " ")
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50, c)
	}
	// consecutive chunks inside one paragraph share trailing words
	assert.True(t, strings.HasPrefix(chunks[1], "word word"))
	tail := chunks[0][len(chunks[0])-9:]
	assert.Contains(t, chunks[1], tail)
}

func TestSplitter_FallsBackToCharacters(t *testing.T) {
	s, _ := NewSplitter(10, 0)
	chunks := s.SplitText(strings.Repeat("x", 25))
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}

func TestSplitter_TransformMetadata(t *testing.T) {
	s, _ := NewSplitter(20, 0)
	docs := []*schema.Document{
		{Content: "alpha beta gamma delta epsilon", MetaData: map[string]any{common.MetaSource: "papers/a.pdf", common.MetaPage: 1}},
		{Content: "zeta eta", MetaData: map[string]any{common.MetaSource: "papers/a.pdf", common.MetaPage: 2}},
		{Content: "other", MetaData: map[string]any{common.MetaSource: "b.txt", common.MetaPage: 1}},
	}
	out, err := s.Transform(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, 0, out[0].MetaData[common.MetaChunkIndex])
	assert.Equal(t, 1, out[1].MetaData[common.MetaChunkIndex])
	assert.Equal(t, 2, out[2].MetaData[common.MetaChunkIndex])
	assert.Equal(t, 2, out[2].MetaData[common.MetaPage])
	assert.Equal(t, "b.txt", out[3].MetaData[common.MetaSource])
	assert.Equal(t, 0, out[3].MetaData[common.MetaChunkIndex])
	ids := map[string]bool{}
	for _, d := range out {
		assert.NotEmpty(t, d.ID)
		assert.False(t, ids[d.ID], "duplicate id")
		ids[d.ID] = true
	}
}
