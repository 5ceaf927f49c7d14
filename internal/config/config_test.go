package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
domains:
  scryfall.com:
    selector: card-image
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Storage.Provider)
	require.Equal(t, "memory", cfg.Queue.Provider)
	require.Equal(t, 30, cfg.Batch.TTLDays)
	require.Equal(t, 100*time.Millisecond, cfg.Delay())
	require.Equal(t, 30*24*time.Hour, cfg.TTL())
	require.Equal(t, 15*time.Second, cfg.FetchTimeout())
	require.True(t, cfg.Scraper.RespectRobots)
}

func TestLoadParsesDomainRules(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
domains:
  scryfall.com:
    selector: card-image
  tcgplayer.com:
    selector: product-photo
    headless: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "card-image", cfg.Domains["scryfall.com"].Selector)
	require.False(t, cfg.Domains["scryfall.com"].Headless)
	require.True(t, cfg.Domains["tcgplayer.com"].Headless)
	require.ElementsMatch(t, []string{"scryfall.com", "tcgplayer.com"}, cfg.ApprovedDomains())
}

func TestLoadRejectsEmptyDomains(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "server:\n  port: 9000\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateStorageProvider(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
storage:
  provider: gcs
domains:
  scryfall.com:
    selector: card-image
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "gcs_bucket")
}

func TestValidateQueueProvider(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
queue:
  provider: pubsub
  project_id: proj
domains:
  scryfall.com:
    selector: card-image
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "subscription_id")
}

func TestValidateAuthRequiresKey(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
auth:
  enabled: true
domains:
  scryfall.com:
    selector: card-image
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "api_key")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
