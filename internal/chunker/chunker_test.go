package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := New(100, 10)
	got := s.Split("short text")
	require.Equal(t, []string{"short text"}, got)
}

func TestSplitEmptyText(t *testing.T) {
	s := New(100, 10)
	require.Nil(t, s.Split(""))
}

func TestSplitOverlapWindows(t *testing.T) {
	s := New(10, 3)
	got := s.Split("abcdefghijklmnopqrst")
	require.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrst"}, got)
}

func TestSplitCoversWholeInput(t *testing.T) {
	s := New(10, 3)
	text := strings.Repeat("x", 95)
	got := s.Split(text)
	var rebuilt strings.Builder
	rebuilt.WriteString(got[0])
	for _, c := range got[1:] {
		rebuilt.WriteString(c[3:])
	}
	require.Equal(t, text, rebuilt.String())
}

func TestSplitMultibyteBoundary(t *testing.T) {
	s := New(4, 1)
	got := s.Split("日本語の特許文書")
	for _, c := range got {
		require.True(t, len([]rune(c)) <= 4)
	}
	require.Equal(t, "日本語の", got[0])
}

func TestSplitBadConfigFallsBackToDefaults(t *testing.T) {
	s := New(0, -1)
	require.Equal(t, DefaultChunkSize, s.size)
	require.Equal(t, DefaultOverlap, s.overlap)
}
