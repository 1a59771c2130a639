package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autosocial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
validation:
  approveScore: 75
  maxAttempts: 4
worker:
  dueInterval: 45s
replicate:
  ocr:
    - name: only-ocr
      model: some/model
`), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env/db")
	t.Setenv(logLevelEnv, "warn")

	cfg := Load()
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "postgres://env/db", cfg.Database.DSN)
	require.Equal(t, 75, cfg.Validation.ApproveScore)
	require.Equal(t, 4, cfg.Validation.MaxAttempts)
	require.Equal(t, 50, cfg.Validation.RejectBelow)
	require.Equal(t, 45*time.Second, cfg.Worker.DueInterval)
	require.Equal(t, 10*time.Minute, cfg.Worker.GenerationInterval)
	require.Len(t, cfg.Replicate.OCR, 1)
	require.NotNil(t, cfg.Replicate.LastResort)
	require.NoError(t, cfg.Validate())
}

func TestLoadKeepsDefaultsOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [nope"), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	require.Equal(t, DefaultValidation(), cfg.Validation)
	require.Equal(t, defaultServerAddr, cfg.Server.Addr)
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Validation.ApproveScore = 120
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Logging.Format = "xml"
	require.Error(t, cfg.Validate())
}
