package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dep11-config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ArchiveRoot: /srv/archive
MediaBaseUrl: https://example.org/media
Suites:
  stable:
    components: [main, contrib]
    architectures: [amd64, arm64]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cache", cfg.CacheDir)
	assert.Equal(t, "export", cfg.ExportDir)
	assert.Equal(t, defaultIconSizes, cfg.IconSizes)
	assert.Contains(t, cfg.Suites, "stable")
	assert.Equal(t, []string{"main", "contrib"}, cfg.Suites["stable"].Components)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
ArchiveRoot: /srv/archive
MediaBaseUrl: https://example.org/media
CacheDir: /var/cache/dep11
ExportDir: /srv/export
IconSizes: ["64x64"]
DistroName: Example
RepositoryName: example-repo
Suites:
  stable:
    components: [main]
    architectures: [amd64]
    dataPriority: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/dep11", cfg.CacheDir)
	assert.Equal(t, []string{"64x64"}, cfg.IconSizes)
	assert.Equal(t, "example-repo", cfg.RepositoryName)
	assert.Equal(t, 10, cfg.Suites["stable"].DataPriority)
}

func TestLoadRequiresArchiveRoot(t *testing.T) {
	path := writeConfig(t, `
MediaBaseUrl: https://example.org/media
Suites:
  stable:
    components: [main]
    architectures: [amd64]
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresAtLeastOneSuite(t *testing.T) {
	path := writeConfig(t, `
ArchiveRoot: /srv/archive
MediaBaseUrl: https://example.org/media
Suites: {}
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestIconSizePixelsRejectsNonSquare(t *testing.T) {
	_, err := IconSizePixels("64x128")
	require.Error(t, err)

	px, err := IconSizePixels("128x128")
	require.NoError(t, err)
	assert.Equal(t, 128, px)
}
