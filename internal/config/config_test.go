package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/ChrisMcGann/mzkit/pkg/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mzkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10.0, cfg.Extraction.PPMTolerance)
	assert.Equal(t, 3, cfg.Extraction.NumIsotopes)
	assert.Equal(t, 4, cfg.Extraction.Workers)
	assert.Equal(t, 1.0, cfg.Extraction.BinSize)
	assert.Equal(t, "average", cfg.Merge.Strategy)
	assert.Equal(t, 0.01, cfg.Merge.Tolerance)
	assert.Equal(t, 5, cfg.Merge.DensityWindow)
	assert.Equal(t, "float64le", cfg.Codec.Encoding)
	assert.Equal(t, "zlib", cfg.Codec.Compression)
	assert.Equal(t, 0.01, cfg.Mobility.MZTolerance)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadConfigOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
extraction:
  ppm_tolerance: 20
  workers: 8
merge:
  strategy: max
codec:
  encoding: MS:1000521
  compression: none
logging:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Extraction.PPMTolerance)
	assert.Equal(t, 8, cfg.Extraction.Workers)
	assert.Equal(t, 3, cfg.Extraction.NumIsotopes)
	assert.Equal(t, "debug", cfg.Logging.Level)

	c, err := cfg.NewCodec()
	require.NoError(t, err)
	assert.Equal(t, codec.Float32Little, c.Encoding())
	assert.Equal(t, codec.NoCompression, c.Compression())

	m, err := cfg.NewMerger()
	require.NoError(t, err)
	assert.Equal(t, merge.MaxIntensity, m.Strategy())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative ppm", "extraction:\n  ppm_tolerance: -1\n"},
		{"negative workers", "extraction:\n  workers: -2\n"},
		{"negative bin size", "extraction:\n  bin_size: -0.5\n"},
		{"unknown strategy", "merge:\n  strategy: median\n"},
		{"negative merge tolerance", "merge:\n  tolerance: -0.01\n"},
		{"unknown encoding", "codec:\n  encoding: float16\n"},
		{"unknown compression", "codec:\n  compression: lzma\n"},
		{"negative mobility tolerance", "mobility:\n  mz_tolerance: -1\n"},
		{"relative metrics path", "metrics:\n  path: metrics\n"},
		{"malformed yaml", "extraction: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
