package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		env         map[string]string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, CacheBackendFile, cfg.Cache.Backend)
				assert.Equal(t, DefaultMinYear, cfg.Years.Min)
				assert.Equal(t, DefaultMaxYear, cfg.Years.Max)
				assert.Equal(t, DefaultDistrictURL, cfg.Source.DistrictURL)
				assert.Equal(t, DefaultBuildingMinYear, cfg.Source.BuildingMinYear)
			},
		},
		{
			name: "yaml overrides defaults and keeps the rest",
			yaml: `
server:
  port: 9090
  read_timeout: 5s
cache:
  backend: bolt
  bolt_file: /var/lib/enr.db
years:
  min: 2000
  max: 2024
source:
  mirrors:
    - https://mirror.example.org/enr.xlsx
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
				assert.Equal(t, CacheBackendBolt, cfg.Cache.Backend)
				assert.Equal(t, "/var/lib/enr.db", cfg.Cache.BoltFile)
				assert.Equal(t, 2000, cfg.Years.Min)
				assert.Equal(t, 2024, cfg.Years.Max)
				assert.Equal(t, []string{"https://mirror.example.org/enr.xlsx"}, cfg.Source.Mirrors)
				assert.Equal(t, DefaultDistrictURL, cfg.Source.DistrictURL)
			},
		},
		{
			name: "env wins over yaml",
			yaml: "server:\n  port: 9090\n",
			env: map[string]string{
				"IDSCHOOL_SERVER_PORT":    "7070",
				"IDSCHOOL_LOGGING_LEVEL":  "debug",
				"IDSCHOOL_SOURCE_MIRRORS": "https://a.example.org/x.xlsx,https://b.example.org/x.xlsx",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Len(t, cfg.Source.Mirrors, 2)
			},
		},
		{
			name:    "invalid cache backend",
			env:     map[string]string{"IDSCHOOL_CACHE_BACKEND": "redis"},
			wantErr: "Backend",
		},
		{
			name:    "max year before min year",
			yaml:    "years:\n  min: 2010\n  max: 2005\n",
			wantErr: "Max",
		},
		{
			name:    "minio backend without endpoint",
			env:     map[string]string{"IDSCHOOL_CACHE_BACKEND": "minio"},
			wantErr: "endpoint and bucket",
		},
		{
			name:    "building minimum before range",
			yaml:    "source:\n  building_min_year: 1990\n",
			wantErr: "building_min_year",
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [",
			wantErr: "failed to load config from file",
		},
		{
			name:    "bad env value",
			env:     map[string]string{"IDSCHOOL_SERVER_PORT": "eighty"},
			wantErr: "failed to load config from env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeYAML(t, tt.yaml)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadUsesConfigEnvFile(t *testing.T) {
	path := writeYAML(t, "server:\n  port: 6060\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateMinIO(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = CacheBackendMinIO
	cfg.Cache.MinIO.Endpoint = "localhost:9000"
	cfg.Cache.MinIO.Bucket = "enrollment"
	assert.NoError(t, cfg.Validate())
}
