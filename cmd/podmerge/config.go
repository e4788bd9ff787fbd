package main

import (
	"context"
	"os"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"

	"github.com/podmerge/podmerge/pkg/cache"
	"github.com/podmerge/podmerge/pkg/fetch"
	"github.com/podmerge/podmerge/pkg/merge"
	"github.com/podmerge/podmerge/pkg/model"
	"github.com/podmerge/podmerge/pkg/server"
)

var pathRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type Config struct {
	// Server is the web server configuration
	Server server.Config `toml:"server"`
	// Sources are the two upstream feeds to merge
	Sources Sources `toml:"sources"`
	// Fetch configures upstream requests
	Fetch fetch.Config `toml:"fetch"`
	// Cache keeps the public feed for a short while
	Cache cache.Config `toml:"cache"`
	// Merge configures how overlapping entries are resolved
	Merge Merge `toml:"merge"`
	// Feed configures the served documents
	Feed Feed `toml:"feed"`
	// Log is the optional logging configuration
	Log Log `toml:"log"`
}

type Sources struct {
	Public     fetch.Source `toml:"public" env:", prefix=PODMERGE_PUBLIC_"`
	Authorized fetch.Source `toml:"authorized" env:", prefix=PODMERGE_AUTHORIZED_"`
}

type Merge struct {
	// Policy is one of "richer", "public", "authorized" or "fill"
	Policy string `toml:"policy" env:"PODMERGE_MERGE_POLICY, overwrite"`
}

type Feed struct {
	// TokenParam is the query parameter clients pass their token in
	TokenParam string `toml:"token_param" env:"PODMERGE_FEED_TOKEN_PARAM, overwrite"`
	// Generator is written to the generated documents
	Generator string `toml:"generator" env:"PODMERGE_FEED_GENERATOR, overwrite"`
	// TTL is the RSS channel time to live in minutes
	TTL int `toml:"ttl" env:"PODMERGE_FEED_TTL, overwrite"`
}

type Log struct {
	// Filename to write the log to (instead of stdout)
	Filename string `toml:"filename" env:"PODMERGE_LOG_FILENAME, overwrite"`
	// MaxSize is the maximum size of the log file in MB
	MaxSize int `toml:"max_size" env:"PODMERGE_LOG_MAX_SIZE, overwrite"`
	// MaxBackups is the maximum number of log file backups to keep after rotation
	MaxBackups int `toml:"max_backups" env:"PODMERGE_LOG_MAX_BACKUPS, overwrite"`
	// MaxAge is the maximum number of days to keep the logs for
	MaxAge int `toml:"max_age" env:"PODMERGE_LOG_MAX_AGE, overwrite"`
	// Compress old backups
	Compress bool `toml:"compress" env:"PODMERGE_LOG_COMPRESS, overwrite"`
	// Format is either "text" (default) or "json"
	Format string `toml:"format" env:"PODMERGE_LOG_FORMAT, overwrite"`
}

// LoadConfig loads TOML configuration from a file path, then applies PODMERGE_* environment overrides
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	config := Config{}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal toml")
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, errors.Wrap(err, "failed to process environment")
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Server.Path != "" && !pathRegex.MatchString(c.Server.Path) {
		result = multierror.Append(result, errors.Errorf("server handle path must match %s or be empty", pathRegex))
	}

	if c.Server.TLS && (c.Server.CertificatePath == "" || c.Server.KeyFilePath == "") {
		result = multierror.Append(result, errors.New("certificate and key file paths are required for TLS"))
	}

	if c.Sources.Public.URL == "" {
		result = multierror.Append(result, errors.New("public feed URL is required"))
	}

	if c.Sources.Authorized.URL == "" {
		result = multierror.Append(result, errors.New("authorized feed URL is required"))
	}

	if c.Fetch.Timeout < 0 {
		result = multierror.Append(result, errors.New("fetch timeout can't be negative"))
	}

	if c.Cache.TTL < 0 {
		result = multierror.Append(result, errors.New("cache TTL can't be negative"))
	}

	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			result = multierror.Append(result, errors.New("redis URL is required for redis cache"))
		}
	default:
		result = multierror.Append(result, errors.Errorf("unsupported cache backend %q", c.Cache.Backend))
	}

	if _, err := merge.ParsePolicy(c.Merge.Policy); err != nil {
		result = multierror.Append(result, err)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		result = multierror.Append(result, errors.Errorf("unsupported log format %q", c.Log.Format))
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = model.DefaultPort
	}

	c.Sources.Public.Name = model.SourcePublic
	c.Sources.Authorized.Name = model.SourceAuthorized

	if c.Sources.Authorized.TokenParam == "" {
		c.Sources.Authorized.TokenParam = model.DefaultTokenParam
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = model.DefaultFetchTimeout
	}

	if c.Fetch.MaxBodySize == 0 {
		c.Fetch.MaxBodySize = model.DefaultMaxBodySize
	}

	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = model.DefaultUserAgent
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = model.DefaultCacheBackend
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = model.DefaultCacheTTL
	}

	if c.Cache.Size == 0 {
		c.Cache.Size = model.DefaultCacheSize
	}

	if c.Merge.Policy == "" {
		c.Merge.Policy = model.DefaultMergePolicy
	}

	if c.Feed.TokenParam == "" {
		c.Feed.TokenParam = model.DefaultTokenParam
	}

	if c.Feed.Generator == "" {
		c.Feed.Generator = model.DefaultGenerator
	}

	if c.Feed.TTL == 0 {
		c.Feed.TTL = model.DefaultFeedTTL
	}

	if c.Log.Filename != "" {
		if c.Log.MaxSize == 0 {
			c.Log.MaxSize = model.DefaultLogMaxSize
		}
		if c.Log.MaxAge == 0 {
			c.Log.MaxAge = model.DefaultLogMaxAge
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = model.DefaultLogMaxBackups
		}
	}
}
