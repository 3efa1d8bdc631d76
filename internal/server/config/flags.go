package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/flagx"
)

// parseFlags overlays values from short command-line flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   session token secret
//	-t int      session token validity, minutes
//	-m int      failed logins before lockout
//	-l int      lockout duration, minutes
//	-f string   file backend (db|s3)
//	-u string   public base URL used in mailed links
//
// Only these flags are looked at (flagx.FilterArgs), so -c and -env do not
// collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-m", "-l", "-f", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "session token validity (in minutes)")
	fs.IntVar(&config.MaxFailedAttempts, "m", config.MaxFailedAttempts, "failed logins before lockout")
	lockDuration := fs.Int("l", int(config.LockDuration.Minutes()), "lockout duration (in minutes)")

	fs.StringVar(&config.FileBackend, "f", config.FileBackend, "file backend (db|s3)")
	fs.StringVar(&config.PublicBaseURL, "u", config.PublicBaseURL, "public base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.LockDuration = time.Duration(*lockDuration) * time.Minute
}
