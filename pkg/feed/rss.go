package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"mime"
	"path"
	"strconv"
	"strings"

	itunes "github.com/eduncan911/podcast"
	"github.com/pkg/errors"

	"github.com/podmerge/podmerge/pkg/model"
)

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

// document is the podcast package's rss wrapper extended with the
// iTunes elements the package has no fields for.
type document struct {
	XMLName  xml.Name `xml:"rss"`
	Version  string   `xml:"version,attr"`
	ITunesNS string   `xml:"xmlns:itunes,attr"`
	Channel  *channel
}

type channel struct {
	*itunes.Podcast
	IType string `xml:"itunes:type,omitempty"`
	Items []*episode
}

type episode struct {
	*itunes.Item
	ITitle       string `xml:"itunes:title,omitempty"`
	ISeason      string `xml:"itunes:season,omitempty"`
	IEpisode     string `xml:"itunes:episode,omitempty"`
	IEpisodeType string `xml:"itunes:episodeType,omitempty"`
}

// RSS renders the feed as RSS 2.0 with iTunes podcast tags.
// Entries are written in the given order.
func RSS(feed *model.MergedFeed, opts Options) ([]byte, error) {
	p, err := Build(feed, opts)
	if err != nil {
		return nil, err
	}

	ch := &channel{Podcast: p, IType: feed.Metadata.Type}
	for i, item := range p.Items {
		entry := feed.Entries[i]
		ch.Items = append(ch.Items, &episode{
			Item:         item,
			ITitle:       entry.Title,
			ISeason:      entry.Season,
			IEpisode:     entry.Episode,
			IEpisodeType: entry.EpisodeType,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(document{Version: "2.0", ITunesNS: itunesNS, Channel: ch}); err != nil {
		return nil, errors.Wrapf(model.ErrSerialization, "failed to encode rss: %v", err)
	}

	return buf.Bytes(), nil
}

// Build prepares the podcast channel for the merged feed.
func Build(feed *model.MergedFeed, opts Options) (*itunes.Podcast, error) {
	var (
		now  = opts.now()
		meta = feed.Metadata
	)

	updated := lastUpdate(feed)

	p := itunes.New(meta.Title, meta.Link, meta.Description, updated.Ptr(), &now)
	if !updated.Valid {
		// New formats a nil date as the current time
		p.PubDate = ""
	}
	p.Generator = opts.generator()
	p.TTL = opts.TTL
	p.Copyright = meta.Copyright
	p.AddSummary(meta.Description)

	if meta.Language != "" {
		p.Language = meta.Language
	}

	if meta.Author != "" {
		p.IAuthor = meta.Author
	}

	if meta.OwnerName != "" || meta.OwnerEmail != "" {
		p.IOwner = &itunes.Author{Name: meta.OwnerName, Email: meta.OwnerEmail}
	}

	if meta.OwnerEmail != "" {
		p.ManagingEditor = meta.OwnerEmail
		if meta.OwnerName != "" {
			p.ManagingEditor = fmt.Sprintf("%s (%s)", meta.OwnerEmail, meta.OwnerName)
		}
	}

	if !meta.Image.IsZero() {
		p.AddImage(meta.Image.URL)
		if meta.Image.Title != "" {
			p.Image.Title = meta.Image.Title
		}
		if meta.Image.Link != "" {
			p.Image.Link = meta.Image.Link
		}
	}

	for _, category := range meta.Categories {
		p.AddCategory(category, nil)
	}

	if meta.Explicit != "" {
		p.IExplicit = meta.Explicit
	}

	for i, entry := range feed.Entries {
		if entry.ID == "" {
			return nil, errors.Wrapf(model.ErrSerialization, "entry %d (%q) has no identifier", i, entry.Title)
		}

		item := itunes.Item{
			GUID:        entry.ID,
			Link:        entry.Link,
			Title:       entry.Title,
			Description: entry.Description,
			IAuthor:     entry.Author,
			IDuration:   entry.Duration,
			IExplicit:   entry.Explicit,
			// Some app prefer 1-based order
			IOrder: strconv.Itoa(i + 1),
		}

		if entry.Published.Valid {
			item.AddPubDate(entry.Published.Ptr())
		}

		if entry.Image != "" {
			item.AddImage(entry.Image)
		}

		if !entry.Enclosure.IsZero() {
			item.AddEnclosure(entry.Enclosure.URL, enclosureType(entry.Enclosure), entry.Enclosure.Length)
		} else if item.Link == "" {
			// p.AddItem requires either an enclosure or a link
			item.Link = meta.Link
			if item.Link == "" {
				item.Link = entry.ID
			}
		}

		// p.AddItem requires title and description to be not empty, use workaround
		if item.Title == "" {
			item.Title = " "
		}
		if item.Description == "" {
			item.Description = " "
		}

		if _, err := p.AddItem(item); err != nil {
			return nil, errors.Wrapf(model.ErrSerialization, "failed to add item %q: %v", entry.ID, err)
		}

		restore(p.Items[len(p.Items)-1], entry, meta)
	}

	return &p, nil
}

// restore undoes the defaults p.AddItem fills in, so entries keep their own
// identifier, type and dates instead of values derived from the channel.
func restore(item *itunes.Item, entry model.Entry, meta model.Metadata) {
	// AddItem replaces the guid with the link for items without enclosure
	item.GUID = entry.ID

	if !entry.Published.Valid {
		item.PubDateFormatted = ""
	}

	if item.Enclosure != nil && entry.Enclosure.Type != "" {
		item.Enclosure.TypeFormatted = entry.Enclosure.Type
	}

	if entry.Enclosure.IsZero() && entry.Link == "" {
		item.Link = meta.Link
	}

	item.IAuthor = entry.Author
	item.Author = nil
	if entry.Image == "" {
		item.IImage = nil
	}
}

// enclosureType maps a MIME type to one the podcast encoder knows.
// Unknown audio falls back to MP3, unknown video to MP4. The mapped type
// only satisfies p.AddItem, the upstream type is what gets written.
func enclosureType(enc model.Enclosure) itunes.EnclosureType {
	mediaType, _, err := mime.ParseMediaType(enc.Type)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(enc.Type))
	}

	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return itunes.MP3
	case "audio/x-m4a", "audio/m4a", "audio/mp4", "audio/aac":
		return itunes.M4A
	case "video/mp4":
		return itunes.MP4
	case "video/x-m4v":
		return itunes.M4V
	case "video/quicktime":
		return itunes.MOV
	case "application/pdf":
		return itunes.PDF
	case "application/epub+zip", "document/x-epub":
		return itunes.EPUB
	}

	switch strings.ToLower(path.Ext(strings.SplitN(enc.URL, "?", 2)[0])) {
	case ".m4a":
		return itunes.M4A
	case ".mp4":
		return itunes.MP4
	case ".m4v":
		return itunes.M4V
	case ".mov":
		return itunes.MOV
	case ".pdf":
		return itunes.PDF
	case ".epub":
		return itunes.EPUB
	case ".mp3":
		return itunes.MP3
	}

	if strings.HasPrefix(mediaType, "video/") {
		return itunes.MP4
	}
	return itunes.MP3
}
