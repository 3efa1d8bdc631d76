package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_DeploymentNames(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("MAX_FAILED_ATTEMPTS", "5")
	t.Setenv("LOCK_TIME_MINUTES", "30")
	t.Setenv("SMTP_HOST", "mail.local")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_PASS", "pw")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	c := &Config{}
	c.LoadDefaults()
	parseEnv(c)

	assert.Equal(t, "postgres://u:p@db:5432/x", c.DatabaseDSN)
	assert.Equal(t, "env-secret", c.SecretKey)
	assert.Equal(t, 5, c.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, c.LockDuration)
	assert.Equal(t, "mail.local", c.SMTPHost)
	assert.Equal(t, 2525, c.SMTPPort)
	assert.Equal(t, "pw", c.SMTPPassword)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, c.TrustedProxies)
}

func TestParseEnv_InvalidInteger(t *testing.T) {
	t.Setenv("MAX_FAILED_ATTEMPTS", "many")
	c := &Config{}
	require.Panics(t, func() { parseEnv(c) })
}

func TestLoadDotEnv_FromFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BIZDESK_DOTENV_PROBE=loaded\n"), 0o600))
	t.Setenv("BIZDESK_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("BIZDESK_DOTENV_PROBE"))

	os.Args = []string{"testbin", "-env", path}
	loadDotEnv()

	assert.Equal(t, "loaded", os.Getenv("BIZDESK_DOTENV_PROBE"))
}

func TestLoadDotEnv_MissingDefaultFileIsIgnored(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	require.NotPanics(t, loadDotEnv)
}

func TestLoadEnvironment_SkipsFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-a", ":9999"}
	t.Setenv("DB_DSN", "postgres://cli@db/x")
	t.Setenv("SUPERUSER_ID", "7")

	c := LoadEnvironment()
	assert.Equal(t, "postgres://cli@db/x", c.DatabaseDSN)
	assert.Equal(t, int64(7), c.SuperuserID)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
}
