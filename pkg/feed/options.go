// Package feed renders merged feeds as RSS and Atom documents.
package feed

import (
	"time"

	"github.com/podmerge/podmerge/pkg/model"
)

type Options struct {
	// Generator is advertised in the output document
	Generator string
	// TTL is the RSS channel time to live in minutes
	TTL int
	// Now is the build time, time.Now when zero
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now.UTC()
}

func (o Options) generator() string {
	if o.Generator == "" {
		return model.DefaultGenerator
	}
	return o.Generator
}

// lastUpdate is the most recent entry time, falling back to the channel's own date.
func lastUpdate(feed *model.MergedFeed) model.Timestamp {
	var latest model.Timestamp
	for _, e := range feed.Entries {
		ts := e.Updated.Or(e.Published)
		if ts.Valid && (!latest.Valid || ts.Time.After(latest.Time)) {
			latest = ts
		}
	}
	return latest.Or(feed.Metadata.Updated)
}
