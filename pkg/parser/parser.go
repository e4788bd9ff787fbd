// Package parser turns raw RSS and Atom documents into model feeds.
package parser

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/pkg/errors"

	"github.com/podmerge/podmerge/pkg/model"
)

const maxSnippet = 80

var (
	// Namespace for identifiers of entries without guid and link
	entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/podmerge/podmerge/entry"))

	errMissingTitle = errors.New("channel title is missing")
	lineRegex       = regexp.MustCompile(`line (\d+)`)
)

// Parse decodes an RSS or Atom document.
func Parse(raw []byte, source model.Source) (*model.Feed, error) {
	fp := gofeed.NewParser()
	doc, err := fp.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, newParseError(raw, source, err)
	}

	var dialect model.Dialect
	switch doc.FeedType {
	case "rss":
		dialect = model.DialectRSS
	case "atom":
		dialect = model.DialectAtom
	default:
		return nil, newParseError(raw, source, errors.Errorf("unsupported feed type %q", doc.FeedType))
	}

	if strings.TrimSpace(doc.Title) == "" {
		return nil, newParseError(raw, source, errMissingTitle)
	}

	feed := &model.Feed{
		Dialect:  dialect,
		Source:   source,
		Metadata: metadata(doc),
		Entries:  make([]model.Entry, 0, len(doc.Items)),
	}

	for _, item := range doc.Items {
		if item == nil {
			continue
		}
		feed.Entries = append(feed.Entries, entry(item, source))
	}

	return feed, nil
}

func metadata(doc *gofeed.Feed) model.Metadata {
	meta := model.Metadata{
		Title:       strings.TrimSpace(doc.Title),
		Description: doc.Description,
		Link:        doc.Link,
		Language:    doc.Language,
		Copyright:   doc.Copyright,
		Updated:     model.TimestampOf(doc.UpdatedParsed).Or(model.TimestampOf(doc.PublishedParsed)),
	}

	if doc.Image != nil {
		meta.Image = model.Image{URL: doc.Image.URL, Title: doc.Image.Title, Link: doc.Link}
	}

	if doc.Author != nil {
		meta.Author = doc.Author.Name
	}

	meta.Categories = append(meta.Categories, doc.Categories...)

	if it := doc.ITunesExt; it != nil {
		if meta.Author == "" {
			meta.Author = it.Author
		}
		if meta.Description == "" {
			meta.Description = it.Summary
		}
		if meta.Image.IsZero() && it.Image != "" {
			meta.Image = model.Image{URL: it.Image, Title: meta.Title, Link: meta.Link}
		}
		if it.Owner != nil {
			meta.OwnerName = it.Owner.Name
			meta.OwnerEmail = it.Owner.Email
		}
		meta.Explicit = it.Explicit
		meta.Type = strings.TrimSpace(it.Type)
		if len(meta.Categories) == 0 {
			meta.Categories = itunesCategories(it.Categories)
		}
	}

	return meta
}

func itunesCategories(categories []*ext.ITunesCategory) []string {
	var out []string
	for _, c := range categories {
		if c != nil && c.Text != "" {
			out = append(out, c.Text)
		}
	}
	return out
}

func entry(item *gofeed.Item, source model.Source) model.Entry {
	e := model.Entry{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: strings.TrimSpace(item.Description),
		Content:     item.Content,
		Published:   model.TimestampOf(item.PublishedParsed),
		Updated:     model.TimestampOf(item.UpdatedParsed),
		Source:      source,
	}

	if item.Author != nil {
		e.Author = item.Author.Name
	}
	if item.Image != nil {
		e.Image = item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		length, _ := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64)
		e.Enclosure = model.Enclosure{URL: enc.URL, Type: enc.Type, Length: length}
		break
	}

	if it := item.ITunesExt; it != nil {
		if e.Author == "" {
			e.Author = it.Author
		}
		if e.Image == "" {
			e.Image = it.Image
		}
		if e.Description == "" {
			e.Description = it.Summary
		}
		e.Duration = it.Duration
		e.Explicit = it.Explicit
		e.Season = it.Season
		e.Episode = it.Episode
		e.EpisodeType = it.EpisodeType
	}

	e.ID = Identifier(strings.TrimSpace(item.GUID), e)
	return e
}

// Identifier derives a stable entry identifier: the guid if present, else
// the link, else a name based UUID over title, publication time and description.
func Identifier(guid string, e model.Entry) string {
	if guid != "" {
		return guid
	}
	if e.Link != "" {
		return e.Link
	}

	published := ""
	if e.Published.Valid {
		published = e.Published.Time.Format(time.RFC3339)
	}

	data := strings.Join([]string{e.Title, published, e.Description}, "\x00")
	return uuid.NewSHA1(entryNamespace, []byte(data)).URN()
}

func newParseError(raw []byte, source model.Source, err error) error {
	line := 0

	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		line = syntaxErr.Line
	} else if m := lineRegex.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
	} else if errors.Is(err, errMissingTitle) {
		line = lineOf(raw, "<channel", "<feed")
	}

	return &model.ParseError{
		Source:  source,
		Line:    line,
		Snippet: snippet(raw, line),
		Err:     err,
	}
}

// lineOf returns the 1-based line of the first marker found, 0 if none.
func lineOf(raw []byte, markers ...string) int {
	for _, marker := range markers {
		if idx := bytes.Index(raw, []byte(marker)); idx >= 0 {
			return bytes.Count(raw[:idx], []byte("\n")) + 1
		}
	}
	return 0
}

func snippet(raw []byte, line int) string {
	lines := bytes.Split(raw, []byte("\n"))

	var text []byte
	if line > 0 && line <= len(lines) {
		text = lines[line-1]
	} else {
		text = raw
	}

	s := strings.TrimSpace(string(text))
	if utf8.RuneCountInString(s) > maxSnippet {
		s = string([]rune(s)[:maxSnippet]) + "..."
	}
	return s
}
