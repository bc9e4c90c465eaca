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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  driver: postgres
  host: localhost
  port: 5432
  user: subwatch
  password: file-secret
  name: subwatch
apiKeys:
  user-1: token-1
gmail:
  clientId: cid
openai:
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "token-1", cfg.APIKeys["user-1"])
	assert.Equal(t, "cid", cfg.Gmail.ClientID)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `
database:
  password: file-secret
openai:
  apiKey: file-key
`)
	t.Setenv("DATABASE_PASSWORD", "env-secret")
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Database.Password)
	assert.Equal(t, "env-key", cfg.OpenAI.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db"
	cfg.Database.Port = 5432
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Name = "subwatch"

	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=subwatch sslmode=disable",
		cfg.PostgresDSN(), "sslmode defaults to disable")

	cfg.Database.SSLMode = "require"
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=require")
}

func TestMySQLDSN(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db"
	cfg.Database.Port = 3306
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Name = "subwatch"

	dsn := cfg.MySQLDSN()
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/subwatch")
	assert.Contains(t, dsn, "parseTime=true")
}
