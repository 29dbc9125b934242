package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "collapses runs of spaces within a line",
			text: "The  mitochondria   is\tthe powerhouse",
			want: "The mitochondria is the powerhouse",
		},
		{
			name: "drops lines that are empty after collapsing",
			text: "first line\n   \n\nsecond line\n",
			want: "first line\nsecond line",
		},
		{
			name: "empty input stays empty",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWhitespace(tt.text))
		})
	}
}

func TestBuildResult(t *testing.T) {
	t.Run("counts pages by form feed", func(t *testing.T) {
		raw := "Page one has plenty of digital text on it for the density check.\f" +
			"Page two also carries a normal amount of extracted text content.\f"

		got := buildResult(raw)
		assert.Equal(t, 2, got.PageCount)
		assert.False(t, got.IsScanned)
		assert.Equal(t, 1.0, got.Confidence)
	})

	t.Run("single page without form feed", func(t *testing.T) {
		got := buildResult("A single page of text that is comfortably long enough.")
		assert.Equal(t, 1, got.PageCount)
		assert.False(t, got.IsScanned)
	})

	t.Run("near-empty pages look like a scan", func(t *testing.T) {
		got := buildResult("3\f\f4\f")
		assert.Equal(t, 3, got.PageCount)
		assert.True(t, got.IsScanned)
		assert.Less(t, got.Confidence, 1.0)
	})

	t.Run("normalizes the joined text", func(t *testing.T) {
		got := buildResult("heading   with    spaces\n\n\nbody text follows the heading here\f")
		assert.Equal(t, "heading with spaces\nbody text follows the heading here", got.Text)
	})
}
