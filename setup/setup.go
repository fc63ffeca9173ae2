// SPDX-License-Identifier: Apache-2.0

// Package setup loads the configuration of the connector and opens the
// session store it selects.
//
// Every key can be set through the environment with the ICWC_ prefix, e.g.
//
//	ICWC_ORIGIN=https://www.stoicwallet.com
//	ICWC_IC_HOST=https://ic0.app
//	ICWC_STORE_PATH=/home/user/.icwc/session
//	ICWC_SIGN_TIMEOUT=2m
package setup

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/session"
	"perun.network/icp-wallet-connector/stoic"
)

// EnvPrefix prefixes all environment variables read by Load.
const EnvPrefix = "ICWC"

// Configuration keys.
const (
	KeyOrigin      = "origin"
	KeyICHost      = "ic_host"
	KeyWhitelist   = "whitelist"
	KeyDev         = "dev"
	KeyStorePath   = "store_path"
	KeyRedisAddr   = "redis_addr"
	KeyLogLevel    = "log_level"
	KeySignTimeout = "sign_timeout"
)

// DefaultICHost is the public boundary node.
const DefaultICHost = "https://ic0.app"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Origin      string        `mapstructure:"origin"`
	ICHost      string        `mapstructure:"ic_host"`
	Whitelist   []string      `mapstructure:"whitelist"`
	Dev         bool          `mapstructure:"dev"`
	StorePath   string        `mapstructure:"store_path"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	LogLevel    string        `mapstructure:"log_level"`
	SignTimeout time.Duration `mapstructure:"sign_timeout"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOrigin, stoic.DefaultOrigin)
	v.SetDefault(KeyICHost, DefaultICHost)
	v.SetDefault(KeyWhitelist, []string{})
	v.SetDefault(KeyDev, false)
	v.SetDefault(KeyStorePath, "")
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySignTimeout, time.Duration(0))
}

// Load reads the configuration from v. Defaults and the environment are
// applied first, flags or a config file bound to v by the caller take
// precedence as usual for viper.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WithMessage(err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	origin, err := host.Origin(c.Origin)
	if err != nil || origin != strings.TrimSuffix(c.Origin, "/") {
		return errors.WithMessagef(ErrInvalidConfig, "origin %q", c.Origin)
	}
	if _, err := c.ICHostURL(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return errors.WithMessagef(ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	if c.SignTimeout < 0 {
		return errors.WithMessagef(ErrInvalidConfig, "negative sign timeout %v", c.SignTimeout)
	}
	return nil
}

// ICHostURL parses ICHost.
func (c *Config) ICHostURL() (*url.URL, error) {
	u, err := url.Parse(c.ICHost)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.WithMessagef(ErrInvalidConfig, "ic host %q", c.ICHost)
	}
	return u, nil
}

func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// OpenStore opens the session store selected by the configuration: redis if
// RedisAddr is set, leveldb if StorePath is set, memory otherwise. Redis wins
// if both are set. The returned closer releases the backend.
func (c *Config) OpenStore(ctx context.Context) (*session.Store, io.Closer, error) {
	switch {
	case c.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.WithMessagef(err, "connecting to redis at %s", c.RedisAddr)
		}
		b := session.NewRedisBackend(client, "")
		return session.NewStore(b), b, nil
	case c.StorePath != "":
		b, err := session.NewLevelDBBackend(c.StorePath)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "opening store at %s", c.StorePath)
		}
		return session.NewStore(b), b, nil
	default:
		b := session.NewMemoryBackend()
		return session.NewStore(b), b, nil
	}
}
