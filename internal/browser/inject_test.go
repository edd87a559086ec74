package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLogoSourcePassesThroughURLs(t *testing.T) {
	for _, src := range []string{
		"https://example.com/logo.png",
		"HTTP://example.com/logo.svg",
		"data:image/png;base64,AAAA",
	} {
		got, err := ResolveLogoSource(src)
		require.NoError(t, err)
		assert.Equal(t, src, got)
	}
}

func TestResolveLogoSourceEmbedsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	got, err := ResolveLogoSource(path)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5n", got)
}

func TestResolveLogoSourceUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.unknownext")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	got, err := ResolveLogoSource(path)
	require.NoError(t, err)
	assert.Equal(t, "data:application/octet-stream;base64,eA==", got)
}

func TestResolveLogoSourceErrors(t *testing.T) {
	_, err := ResolveLogoSource(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	got, err := ResolveLogoSource("  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
