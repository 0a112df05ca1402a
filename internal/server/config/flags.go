package config

import (
	"github.com/spf13/pflag"
)

// Flags binds the server settings to a pflag.FlagSet (normally the cobra
// command's). Only flags the user actually set override earlier layers.
//
//	-c, --config              JSON config file
//	    --env-file            dotenv file (default ".env")
//	-a, --http-addr           HTTP bind address
//	-g, --grpc-addr           gRPC bind address
//	-d, --database-dsn        PostgreSQL DSN
//	    --storage             postgres | memory
//	-s, --secret-key          access token signing secret
//	-t, --access-token-ttl    access token lifetime
//	-r, --refresh-token-ttl   refresh token lifetime
//	    --storage-timeout     bound for a single storage unit
//	    --cookie-secure       Secure attribute on the refresh cookie
//	    --log-level           debug | info | warn | error
//	    --log-format          text | json
type Flags struct {
	fs *pflag.FlagSet

	ConfigFile string
	EnvFile    string

	values Config
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	var d Config
	d.LoadDefaults()

	fs.StringVarP(&f.ConfigFile, "config", "c", "", "path to JSON config file")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "path to dotenv file")

	fs.StringVarP(&f.values.HTTPAddr, "http-addr", "a", d.HTTPAddr, "HTTP bind address")
	fs.StringVarP(&f.values.GRPCAddr, "grpc-addr", "g", d.GRPCAddr, "gRPC bind address")
	fs.StringVarP(&f.values.DatabaseDSN, "database-dsn", "d", d.DatabaseDSN, "database DSN")
	fs.StringVar(&f.values.Storage, "storage", d.Storage, "storage backend (postgres|memory)")
	fs.StringVarP(&f.values.SecretKey, "secret-key", "s", "", "access token signing secret")
	fs.DurationVarP(&f.values.AccessTokenValidityDuration, "access-token-ttl", "t", d.AccessTokenValidityDuration, "access token lifetime")
	fs.DurationVarP(&f.values.RefreshTokenValidityDuration, "refresh-token-ttl", "r", d.RefreshTokenValidityDuration, "refresh token lifetime")
	fs.DurationVar(&f.values.StorageTimeout, "storage-timeout", d.StorageTimeout, "storage call timeout")
	fs.BoolVar(&f.values.CookieSecure, "cookie-secure", d.CookieSecure, "set Secure on the refresh token cookie")
	fs.StringVar(&f.values.LogLevel, "log-level", d.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&f.values.LogFormat, "log-format", d.LogFormat, "log format (text|json)")

	return f
}

func (f *Flags) parseFlags(config *Config) {
	changed := func(name string) bool { return f.fs.Changed(name) }

	if changed("http-addr") {
		config.HTTPAddr = f.values.HTTPAddr
	}
	if changed("grpc-addr") {
		config.GRPCAddr = f.values.GRPCAddr
	}
	if changed("database-dsn") {
		config.DatabaseDSN = f.values.DatabaseDSN
	}
	if changed("storage") {
		config.Storage = f.values.Storage
	}
	if changed("secret-key") {
		config.SecretKey = f.values.SecretKey
	}
	if changed("access-token-ttl") {
		config.AccessTokenValidityDuration = f.values.AccessTokenValidityDuration
	}
	if changed("refresh-token-ttl") {
		config.RefreshTokenValidityDuration = f.values.RefreshTokenValidityDuration
	}
	if changed("storage-timeout") {
		config.StorageTimeout = f.values.StorageTimeout
	}
	if changed("cookie-secure") {
		config.CookieSecure = f.values.CookieSecure
	}
	if changed("log-level") {
		config.LogLevel = f.values.LogLevel
	}
	if changed("log-format") {
		config.LogFormat = f.values.LogFormat
	}
}

// Load builds a validated Config: defaults, then the JSON file, then the
// environment, then explicitly set flags. Call it after the flag set has
// been parsed.
func (f *Flags) Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, f.ConfigFile); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, f.EnvFile); err != nil {
		return nil, err
	}
	f.parseFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
