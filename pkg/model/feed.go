package model

// Source tells which upstream feed an entry came from.
type Source string

const (
	SourcePublic     = Source("public")
	SourceAuthorized = Source("authorized")
)

// Dialect is the syndication format of a document.
type Dialect string

const (
	DialectRSS  = Dialect("rss")
	DialectAtom = Dialect("atom")
)

type Image struct {
	URL   string
	Title string
	Link  string
}

func (i Image) IsZero() bool {
	return i.URL == ""
}

// Enclosure is the media file attached to an episode.
type Enclosure struct {
	URL    string
	Type   string // MIME type
	Length int64  // in bytes, 0 if unknown
}

func (e Enclosure) IsZero() bool {
	return e.URL == ""
}

// Entry is a single episode.
type Entry struct {
	// ID is unique within a merged feed
	ID          string
	Title       string
	Link        string
	Description string
	Content     string
	Published   Timestamp
	Updated     Timestamp
	Enclosure   Enclosure
	Source      Source

	// iTunes data, passed through when present
	Author      string
	Image       string
	Duration    string
	Explicit    string
	Season      string
	Episode     string
	EpisodeType string
}

// Metadata is the channel level information of a feed.
type Metadata struct {
	Title       string
	Description string
	Link        string
	Image       Image
	Language    string
	Copyright   string
	Author      string
	OwnerName   string
	OwnerEmail  string
	Explicit    string
	Type        string // itunes:type, episodic or serial
	Categories  []string
	Updated     Timestamp
}

// Feed is a parsed upstream document.
type Feed struct {
	Dialect  Dialect
	Source   Source
	Metadata Metadata
	Entries  []Entry
}

// MergedFeed is the result of merging the public and the authorized feeds.
// Entries are ordered by publication time (newest first), then by ID.
type MergedFeed struct {
	Metadata Metadata
	Entries  []Entry
}
