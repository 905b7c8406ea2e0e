package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"index.html", "index.html"},
		{"/index.html", "index.html"},
		{"./src/../src/app.html", "src/app.html"},
		{"my%20app.html", "my%20app.html"},
		{"src/app.html?v=1#top", "src/app.html"},
		{"a%3Ab.html", "a%3Ab.html"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("rejects external and empty urls", func(t *testing.T) {
		for _, raw := range []string{"https://example.com/a.html", "//cdn/a.js", "", "/", "."} {
			_, err := normalize(raw)
			assert.Error(t, err, raw)
		}
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		href     string
		expected string
		local    bool
	}{
		{"sibling", "src/app.html", "el.html", "src/el.html", true},
		{"parent", "src/app.html", "../shared/x.html", "shared/x.html", true},
		{"root relative", "src/app.html", "/lib/y.js", "lib/y.js", true},
		{"escapes root", "app.html", "../x.html", "../x.html", false},
		{"absolute url", "app.html", "https://cdn.example.com/x.js", "https://cdn.example.com/x.js", false},
		{"protocol relative", "app.html", "//cdn.example.com/x.js", "//cdn.example.com/x.js", false},
		{"fragment only", "app.html", "#top", "", false},
		{"space is escaped", "src/app.html", "my el.html", "src/my%20el.html", true},
		{"colon is escaped", "src/app.html", "./x:y.css", "src/x%3Ay.css", true},
		{"colon base", "a%3Ab.html", "c.html", "c.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, local := resolve(tt.base, tt.href)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.local, local)
		})
	}
}

func TestIsExternalPackage(t *testing.T) {
	assert.True(t, isExternalPackage("bower_components/polymer/polymer.html"))
	assert.True(t, isExternalPackage("app/node_modules/lit/index.js"))
	assert.False(t, isExternalPackage("src/bower_components.html"))
	assert.False(t, isExternalPackage("src/app.html"))
}
