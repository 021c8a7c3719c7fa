package resolver

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "url query parameter",
			input:    "https://news.google.com/x?url=https%3A//example.com/article",
			expected: "https://example.com/article",
			ok:       true,
		},
		{
			name:     "url embedded in path",
			input:    "https://news.google.com/articles/xyzurl=https%3A//example.com/story&other=1",
			expected: "https://example.com/story",
			ok:       true,
		},
		{
			name:  "url param pointing back at google is rejected",
			input: "https://news.google.com/x?url=https%3A//news.google.com/other",
			ok:    false,
		},
		{
			name:  "no url parameter",
			input: "https://news.google.com/rss/articles/abc123",
			ok:    false,
		},
		{
			name:  "non-http url param",
			input: "https://news.google.com/x?url=javascript:alert(1)",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFromQuery(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestDecodeArticleID(t *testing.T) {
	t.Run("decodes embedded publisher url", func(t *testing.T) {
		payload := "\x08\x13https://example.com/news/story-42\x10"
		encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(payload))

		got, ok := DecodeArticleID("https://news.google.com/rss/articles/" + encoded)
		require.True(t, ok)
		assert.Equal(t, "https://example.com/news/story-42", got)
	})

	t.Run("skips google urls in payload", func(t *testing.T) {
		payload := "https://news.google.com/foo https://publisher.example/bar"
		encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(payload))

		got, ok := DecodeArticleID("https://news.google.com/rss/articles/" + encoded)
		require.True(t, ok)
		assert.Equal(t, "https://publisher.example/bar", got)
	})

	t.Run("not an articles path", func(t *testing.T) {
		_, ok := DecodeArticleID("https://news.google.com/topstories")
		assert.False(t, ok)
	})

	t.Run("garbage payload", func(t *testing.T) {
		_, ok := DecodeArticleID("https://news.google.com/rss/articles/!!!not-base64!!!")
		assert.False(t, ok)
	})
}

func TestScanHTMLForPublisherURL(t *testing.T) {
	t.Run("prefers href over bare quoted urls", func(t *testing.T) {
		html := `<html>
			<script>var x = "https://tracker.example/pixel.js"</script>
			<a href="https://publisher.example/story">Read</a>
		</html>`
		got, ok := ScanHTMLForPublisherURL(html)
		require.True(t, ok)
		assert.Equal(t, "https://publisher.example/story", got)
	})

	t.Run("skips google and asset urls", func(t *testing.T) {
		html := `<a href="https://news.google.com/next"></a>
			<a href="https://cdn.example/logo.png"></a>
			<a href="https://publisher.example/real"></a>`
		got, ok := ScanHTMLForPublisherURL(html)
		require.True(t, ok)
		assert.Equal(t, "https://publisher.example/real", got)
	})

	t.Run("data-url attribute", func(t *testing.T) {
		html := `<div data-url="https://publisher.example/from-data"></div>`
		got, ok := ScanHTMLForPublisherURL(html)
		require.True(t, ok)
		assert.Equal(t, "https://publisher.example/from-data", got)
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, ok := ScanHTMLForPublisherURL(`<html><body>plain text</body></html>`)
		assert.False(t, ok)
	})
}

func TestIsPublisherURL(t *testing.T) {
	assert.True(t, IsPublisherURL("https://example.com/a"))
	assert.False(t, IsPublisherURL("https://news.google.com/a"))
	assert.False(t, IsPublisherURL("https://www.gstatic.com/x"))
	assert.False(t, IsPublisherURL("https://example.com/pic.jpg"))
	assert.False(t, IsPublisherURL("ftp://example.com/a"))
	assert.False(t, IsPublisherURL("not a url"))
}
