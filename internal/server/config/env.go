package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/flagx"
	"github.com/joho/godotenv"
)

// defaultEnvFile is read when present and no -env flag is given.
const defaultEnvFile = ".env"

// loadDotEnv loads KEY=VALUE pairs from the -env file (or ./.env) into the
// process environment. Variables already set in the environment win.
func loadDotEnv() {
	path := flagx.EnvFileFlags()
	if path == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

// parseEnv overlays values from environment variables. Names match
// the variables of existing .env deployments.
func parseEnv(c *Config) {
	c.EndpointAddrHTTP = getEnv("HTTP_ADDR", c.EndpointAddrHTTP)
	c.EndpointAddrGRPC = getEnv("GRPC_ADDR", c.EndpointAddrGRPC)
	c.DatabaseDSN = getEnv("DB_DSN", c.DatabaseDSN)

	c.SecretKey = getEnv("JWT_SECRET", c.SecretKey)
	c.TokenIssuer = getEnv("JWT_ISSUER", c.TokenIssuer)
	c.AccessTokenValidityDuration = getEnvMinutes("JWT_TTL_MINUTES", c.AccessTokenValidityDuration)
	c.MaxFailedAttempts = getEnvInt("MAX_FAILED_ATTEMPTS", c.MaxFailedAttempts)
	c.LockDuration = getEnvMinutes("LOCK_TIME_MINUTES", c.LockDuration)
	c.SuperuserID = int64(getEnvInt("SUPERUSER_ID", int(c.SuperuserID)))
	c.PublicBaseURL = getEnv("PUBLIC_BASE_URL", c.PublicBaseURL)

	c.FileBackend = getEnv("FILE_BACKEND", c.FileBackend)
	c.S3RootUser = getEnv("S3_ROOT_USER", c.S3RootUser)
	c.S3RootPassword = getEnv("S3_ROOT_PASSWORD", c.S3RootPassword)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	c.S3BaseEndpoint = getEnv("S3_BASE_ENDPOINT", c.S3BaseEndpoint)

	c.MailTransport = getEnv("MAIL_TRANSPORT", c.MailTransport)
	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getEnvInt("SMTP_PORT", c.SMTPPort)
	c.SMTPUser = getEnv("SMTP_USER", c.SMTPUser)
	c.SMTPPassword = getEnv("SMTP_PASS", c.SMTPPassword)
	c.SMTPFrom = getEnv("SMTP_FROM", c.SMTPFrom)
	c.SMTPFromName = getEnv("SMTP_FROM_NAME", c.SMTPFromName)
	c.MailAPIURL = getEnv("MAIL_API_URL", c.MailAPIURL)
	c.MailAPIKey = getEnv("MAIL_API_KEY", c.MailAPIKey)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.CORSOrigins = splitList(origins)
	}
	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		c.TrustedProxies = splitList(proxies)
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic("invalid integer in " + key + ": " + v)
	}
	return n
}

func getEnvMinutes(key string, def time.Duration) time.Duration {
	n := getEnvInt(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Minute
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
