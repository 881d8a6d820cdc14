package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load also reads .env from the working directory; run from an empty one.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "NCRM_STAGE_CIF_ADDR_API", s.Database.Table)
	assert.Equal(t, "ADDR_PYTHON", s.Database.RuleColumn)
	assert.Equal(t, "ADDR_GAI", s.Database.LLMColumn)
	assert.Equal(t, 1000, s.Batch.RuleSize)
	assert.Equal(t, 10, s.Batch.LLMSize)
	assert.Equal(t, 3000, s.LLM.MaxTokens)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "addrnorm.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug = true

[database]
driver = "sqlite"
dsn = "file:local.db"
table = "CUSTOMER_ADDR"

[postal]
file = "zip.json"

[llm]
url = "https://llm.example/chat"
api_key = "from-file"
`), 0o600))

	t.Setenv("API_KEY", "from-env")
	t.Setenv("BATCH_SIZE", "250")

	s, err := Load(path)
	require.NoError(t, err)
	assert.True(t, s.Debug)
	assert.Equal(t, "sqlite", s.Database.Driver)
	assert.Equal(t, "file:local.db", s.Database.DSN)
	assert.Equal(t, "CUSTOMER_ADDR", s.Database.Table)
	assert.Equal(t, "SNO", s.Database.IDColumn)
	assert.Equal(t, "zip.json", s.Postal.File)
	assert.Equal(t, "https://llm.example/chat", s.LLM.URL)
	assert.Equal(t, "from-env", s.LLM.APIKey)
	assert.Equal(t, 250, s.Batch.RuleSize)

	require.NoError(t, s.ValidateDatabase())
	require.NoError(t, s.ValidateLLM())
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nSYSTEM_ID=\"crm\"\nexport WEB_PORT=9090\n"), 0o600))
	t.Setenv("SYSTEM_ID", "")
	t.Setenv("WEB_PORT", "")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "crm", s.LLM.SystemID)
	assert.Equal(t, 9090, s.Server.Port)
}

func TestLoadDSNFromParts(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USERNAME", "crm")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_DATABASE", "cif")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "host=db.internal port=5432 user=crm password=secret dbname=cif sslmode=disable", s.Database.DSN)
}

func TestLoadErrors(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[database\n"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := Default()
	s.Database.Driver = "mssql"

	err := s.ValidateDatabase()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mssql")
	assert.Contains(t, err.Error(), "DATABASE_URL")

	err = s.ValidateLLM()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_URL")
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ADDR_TEST_INT", "12")
	t.Setenv("ADDR_TEST_BAD_INT", "x")
	t.Setenv("ADDR_TEST_FLOAT", "0.5")
	t.Setenv("ADDR_TEST_BOOL", "yes")

	assert.Equal(t, 12, GetEnvInt("ADDR_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("ADDR_TEST_BAD_INT", 1))
	assert.Equal(t, 0.5, GetEnvFloat("ADDR_TEST_FLOAT", 1))
	assert.True(t, GetEnvBool("ADDR_TEST_BOOL", false))
	assert.Equal(t, "fallback", GetEnv("ADDR_TEST_UNSET", "fallback"))
}
