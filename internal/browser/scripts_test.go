package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSStringEscapesMarkup(t *testing.T) {
	got := jsString(`</script><b>"x" & 'y'`)
	assert.NotContains(t, got, "</script>")
	assert.NotContains(t, got, "<b>")
	assert.True(t, strings.HasPrefix(got, `"`))
	assert.Contains(t, got, `\"x\"`)
	assert.Contains(t, got, `\u0026`)
}

func TestBuildCreateOverlay(t *testing.T) {
	script := buildCreateOverlay("<h1>Keine Verbindung</h1>")
	assert.Contains(t, script, `"boardkiosk-offline-overlay"`)
	assert.Contains(t, script, `\u003ch1\u003eKeine Verbindung`)
	assert.Contains(t, script, "zIndex: '99999'")
	assert.Contains(t, script, "display: 'none'")
}

func TestBuildOverlayVisibility(t *testing.T) {
	assert.True(t, strings.HasSuffix(buildOverlayVisibility(true), `("boardkiosk-offline-overlay", true)`))
	assert.True(t, strings.HasSuffix(buildOverlayVisibility(false), `("boardkiosk-offline-overlay", false)`))
}

func TestBuildInjectionScripts(t *testing.T) {
	style := buildStyle("Ym9keXt9")
	assert.Contains(t, style, `("boardkiosk-custom-style", "Ym9keXt9")`)
	assert.Contains(t, style, "TextDecoder('utf-8')")

	logo := buildLogo("https://example.com/logo.png")
	assert.Contains(t, logo, `("logo-bottom-right", "https://example.com/logo.png")`)

	mode := buildViewMode(`Live "mode"`)
	assert.Contains(t, mode, `("Live \"mode\"")`)

	login := buildFillLogin("player", `pa"ss`)
	assert.Contains(t, login, `("player", "pa\"ss")`)
	assert.Contains(t, login, "kc-login")
}
