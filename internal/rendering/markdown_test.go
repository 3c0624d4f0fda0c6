package rendering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:     "heading and paragraph",
			input:    "# Solar Power\n\nPanels convert sunlight into electricity.",
			contains: []string{"<h1>Solar Power</h1>", "<p>Panels convert sunlight into electricity.</p>"},
		},
		{
			name:     "emphasis and list",
			input:    "Some **bold** text.\n\n- one\n- two\n",
			contains: []string{"<strong>bold</strong>", "<li>one</li>", "<li>two</li>"},
		},
		{
			name:     "strikethrough extension",
			input:    "~~old~~ new",
			contains: []string{"<del>old</del>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarkdownToHTML(tt.input)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestMarkdownToHTML_Blank(t *testing.T) {
	got, err := MarkdownToHTML("  \n\t")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarkdownToHTML_OmitsRawHTML(t *testing.T) {
	got, err := MarkdownToHTML("<script>alert(1)</script>\n\nHello")
	require.NoError(t, err)
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "<p>Hello</p>")
}

func TestHTMLDocument(t *testing.T) {
	doc := HTMLDocument(`Cats & "Dogs"`, "<p>x</p>\n")
	assert.Contains(t, doc, "<title>Cats &amp; &quot;Dogs&quot;</title>")
	assert.Contains(t, doc, "<body>\n<p>x</p>\n</body>")
	assert.Contains(t, doc, "<!DOCTYPE html>")
}

func TestRenderError(t *testing.T) {
	cause := errors.New("boom")
	err := &RenderError{Message: "failed", Cause: cause}
	assert.Equal(t, "render error: failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "render error: failed", (&RenderError{Message: "failed"}).Error())
}
