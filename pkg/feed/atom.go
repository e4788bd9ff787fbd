package feed

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/pkg/errors"

	"github.com/podmerge/podmerge/pkg/model"
)

// Atom renders the feed as an Atom 1.0 document.
// Entries are written in the given order.
func Atom(feed *model.MergedFeed, opts Options) ([]byte, error) {
	meta := feed.Metadata

	out := &feeds.Feed{
		Title:       meta.Title,
		Link:        &feeds.Link{Href: meta.Link},
		Description: meta.Description,
		Copyright:   meta.Copyright,
		Updated:     lastUpdate(feed).Or(model.At(opts.now())).Time,
		Items:       make([]*feeds.Item, 0, len(feed.Entries)),
	}

	if meta.Author != "" || meta.OwnerEmail != "" {
		out.Author = &feeds.Author{Name: meta.Author, Email: meta.OwnerEmail}
	}

	for i, entry := range feed.Entries {
		if entry.ID == "" {
			return nil, errors.Wrapf(model.ErrSerialization, "entry %d (%q) has no identifier", i, entry.Title)
		}

		item := &feeds.Item{
			Id:          entry.ID,
			Title:       entry.Title,
			Description: entry.Description,
			Content:     entry.Content,
			Created:     entry.Published.Time,
			Updated:     entry.Updated.Or(entry.Published).Time,
		}

		if entry.Link != "" {
			item.Link = &feeds.Link{Href: entry.Link}
		}

		if entry.Author != "" {
			item.Author = &feeds.Author{Name: entry.Author}
		}

		if !entry.Enclosure.IsZero() {
			item.Enclosure = &feeds.Enclosure{Url: entry.Enclosure.URL, Type: entry.Enclosure.Type}
			if entry.Enclosure.Length > 0 {
				item.Enclosure.Length = strconv.FormatInt(entry.Enclosure.Length, 10)
			}
		}

		out.Items = append(out.Items, item)
	}

	doc := (&feeds.Atom{Feed: out}).AtomFeed()
	doc.Id = feedID(meta)
	doc.Logo = meta.Image.URL

	// gorilla/feeds leaves published out and always writes an alternate link
	for i, entry := range feed.Entries {
		atomEntry := doc.Entries[i]
		if entry.Published.Valid {
			atomEntry.Published = entry.Published.Time.Format(time.RFC3339)
		}

		links := atomEntry.Links[:0]
		for _, link := range atomEntry.Links {
			if link.Href != "" {
				links = append(links, link)
			}
		}
		atomEntry.Links = links
	}

	data, err := feeds.ToXML(doc)
	if err != nil {
		return nil, errors.Wrapf(model.ErrSerialization, "failed to encode atom: %v", err)
	}

	return []byte(data), nil
}

// feedID builds a stable feed identifier from the channel link (or title).
func feedID(meta model.Metadata) string {
	name := meta.Link
	if name == "" {
		name = meta.Title
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).URN()
}
