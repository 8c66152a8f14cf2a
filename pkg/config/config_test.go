package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	assert.False(t, Default().Auth.Enabled())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  addr: ":9000"
  shutdown_timeout: 5s
  cors_origins: ["https://risk.example.com"]
engine:
  risk_scoring: true
  max_paths_per_threat: 50
archive:
  sink: s3
  bucket: bowties
  prefix: snapshots
  region: eu-west-1
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, []string{"https://risk.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Engine.RiskScoring)
	assert.Equal(t, 50, cfg.Engine.MaxPathsPerThreat)
	assert.Equal(t, SinkS3, cfg.Archive.Sink)
	assert.True(t, cfg.Archive.Compress)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":   "server:\n  adress: x\n",
		"bad duration":    "server:\n  read_timeout: soon\n",
		"short secret":    "auth:\n  jwt_secret: tooshort\n",
		"bucket required": "archive:\n  sink: s3\n",
		"absolute prefix": "archive:\n  sink: s3\n  bucket: b\n  prefix: /x\n",
		"bad sink":        "archive:\n  sink: ftp\n",
		"bad level":       "log:\n  level: loud\n",
		"depth range":     "server:\n  graphql_max_depth: 99\n",
		"tls no cert":     "server:\n  tls:\n    enabled: true\n",
		"tls half pair":   "server:\n  tls:\n    enabled: true\n    cert_file: a.pem\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_TLS(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  tls:\n    enabled: true\n    auto_generate: true\n    hosts: [bowtie.local]\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Server.TLS.AutoGenerate)
	assert.Equal(t, []string{"bowtie.local"}, cfg.Server.TLS.Hosts)

	_, err = Parse([]byte("server:\n  tls:\n    enabled: true\n    cert_file: c.pem\n    key_file: k.pem\n"))
	assert.NoError(t, err)
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Server.MaxDiagrams = 0
	cfg.Log.Level = "trace"

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"Server.Addr", "Server.MaxDiagrams", "Log.Level"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"PORT":                "9090",
		"LOG_LEVEL":           "WARN",
		"BOWTIE_JWT_SECRET":   strings.Repeat("s", 32),
		"BOWTIE_RISK_SCORING": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Auth.Enabled())
	assert.True(t, cfg.Engine.RiskScoring)
	require.NoError(t, cfg.Validate())

	assert.Error(t, Default().ApplyEnv(env(map[string]string{"PORT": "http"})))
	assert.Error(t, Default().ApplyEnv(env(map[string]string{"BOWTIE_RISK_SCORING": "maybe"})))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bowtie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archive:\n  sink: file\n  dir: /tmp/snapshots\n"), 0o600))

	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SinkFile, cfg.Archive.Sink)
	assert.Equal(t, "/tmp/snapshots", cfg.Archive.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
