package model

import (
	"time"
)

const (
	DefaultPort         = 8080
	DefaultTokenParam   = "auth"
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodySize  = 32 << 20
	DefaultUserAgent    = "podmerge (+https://github.com/podmerge/podmerge)"
	DefaultCacheBackend = "memory"
	DefaultCacheTTL     = 60 * time.Second
	DefaultCacheSize    = 16
	DefaultMergePolicy  = "richer"
	DefaultGenerator    = "podmerge"
	// DefaultFeedTTL is the RSS channel <ttl> in minutes.
	DefaultFeedTTL = 60

	DefaultLogMaxSize    = 50 // megabytes
	DefaultLogMaxAge     = 30 // days
	DefaultLogMaxBackups = 7
)
