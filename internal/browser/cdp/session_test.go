package cdp

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scalpel-heal/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: true})
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, true, flags["no-sandbox"])
		assert.NotContains(t, flags, "ignore-certificate-errors")
	})

	t.Run("headful", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, false, flags["hide-scrollbars"])
	})

	t.Run("ignore TLS errors", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.Equal(t, true, flags["ignore-certificate-errors"])
		assert.Equal(t, true, flags["allow-insecure-localhost"])
	})

	t.Run("custom args override", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{
			Headless: true,
			Args:     []string{"--custom-arg1", "--lang=fr-FR", "--headless=new", "--", "  "},
		})
		assert.Equal(t, true, flags["custom-arg1"])
		assert.Equal(t, "fr-FR", flags["lang"])
		assert.Equal(t, "new", flags["headless"])
		assert.NotContains(t, flags, "")
	})
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		value any
		ok    bool
	}{
		{"--foo", "foo", true, true},
		{"-foo=bar", "foo", "bar", true},
		{"foo=", "foo", "", true},
		{"--=x", "", nil, false},
		{"", "", nil, false},
	}
	for _, tt := range tests {
		name, value, ok := parseArg(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.value, value, tt.in)
	}
}

func TestViewport(t *testing.T) {
	w, h := viewport(config.BrowserConfig{})
	assert.Equal(t, 1366, w)
	assert.Equal(t, 768, h)

	w, h = viewport(config.BrowserConfig{Viewport: map[string]int{"width": 1920, "height": 1080}})
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestDefaultAllocatorOptions(t *testing.T) {
	cfg := config.BrowserConfig{Headless: true, ExecPath: "/usr/bin/chromium", Args: []string{"--a", "--b"}}
	opts := DefaultAllocatorOptions(cfg)
	// chromedp defaults, one option per flag, exec path and window size.
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+len(allocatorFlags(cfg))+2)
}
