package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/flagx"
	"github.com/dmitrijs2005/bizdesk/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations accept strings such as "15m" as well as integer nanoseconds.
// Absent fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	TokenIssuer                 string         `json:"token_issuer"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ResetTokenValidityDuration  timex.Duration `json:"reset_token_validity_duration"`
	MaxFailedAttempts           int            `json:"max_failed_attempts"`
	LockDuration                timex.Duration `json:"lock_duration"`
	SuperuserID                 int64          `json:"superuser_id"`
	PublicBaseURL               string         `json:"public_base_url"`
	FileBackend                 string         `json:"file_backend"`
	MaxUploadBytes              int64          `json:"max_upload_bytes"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	MailTransport               string         `json:"mail_transport"`
	SMTPHost                    string         `json:"smtp_host"`
	SMTPPort                    int            `json:"smtp_port"`
	SMTPUser                    string         `json:"smtp_user"`
	SMTPPassword                string         `json:"smtp_password"`
	SMTPFrom                    string         `json:"smtp_from"`
	SMTPFromName                string         `json:"smtp_from_name"`
	MailAPIURL                  string         `json:"mail_api_url"`
	MailAPIKey                  string         `json:"mail_api_key"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisPassword               string         `json:"redis_password"`
	RedisDB                     int            `json:"redis_db"`
	PermissionCacheTTL          timex.Duration `json:"permission_cache_ttl"`
	RateLimitPerSecond          int            `json:"rate_limit_per_second"`
	RateLimitBurst              int            `json:"rate_limit_burst"`
	MaxBodyBytes                int64          `json:"max_body_bytes"`
	CORSOrigins                 []string       `json:"cors_origins"`
	TrustedProxies              []string       `json:"trusted_proxies"`
	LogLevel                    string         `json:"log_level"`
	LogFormat                   string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config.
// A missing flag means nothing to load; an unreadable or invalid file panics
// because the server cannot start with a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)
	setInt(&config.MaxFailedAttempts, c.MaxFailedAttempts)
	setDuration(&config.LockDuration, c.LockDuration)
	setInt64(&config.SuperuserID, c.SuperuserID)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.FileBackend, c.FileBackend)
	setInt64(&config.MaxUploadBytes, c.MaxUploadBytes)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.MailTransport, c.MailTransport)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.SMTPFromName, c.SMTPFromName)
	setString(&config.MailAPIURL, c.MailAPIURL)
	setString(&config.MailAPIKey, c.MailAPIKey)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setDuration(&config.PermissionCacheTTL, c.PermissionCacheTTL)
	setInt(&config.RateLimitPerSecond, c.RateLimitPerSecond)
	setInt(&config.RateLimitBurst, c.RateLimitBurst)
	setInt64(&config.MaxBodyBytes, c.MaxBodyBytes)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	if len(c.TrustedProxies) > 0 {
		config.TrustedProxies = c.TrustedProxies
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.IsSet() {
		*dst = v.Duration
	}
}
