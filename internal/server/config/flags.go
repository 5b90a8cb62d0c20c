package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-t", "-r", "-m", "-u", "-p", "-b", "-g", "-e"}

// parseFlags overlays command-line flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-s string   signing secret for cookies and reset tokens
//	-t int      session lifetime, minutes
//	-r int      reset token lifetime, minutes
//	-m string   cache URL ("redis://host:6379/0", "memory://")
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 endpoint (e.g. "http://127.0.0.1:9000")
//
// Unrecognised arguments are filtered out first so subcommands and -c can
// share the command line.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session lifetime (in minutes)")
	resetTTL := fs.Int("r", int(config.ResetTokenTTL.Minutes()), "password reset token lifetime (in minutes)")

	fs.StringVar(&config.CacheURL, "m", config.CacheURL, "cache URL")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.Filter(args, serverFlags...)); err != nil {
		return err
	}

	// Minute flags only apply when given, so finer-grained values from the
	// file or environment survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
		case "r":
			config.ResetTokenTTL = time.Duration(*resetTTL) * time.Minute
		}
	})
	return nil
}
