package feed

import (
	"strings"
	"testing"
	"time"

	itunes "github.com/eduncan911/podcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podmerge/podmerge/pkg/model"
	"github.com/podmerge/podmerge/pkg/parser"
)

var buildTime = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func testFeed() *model.MergedFeed {
	return &model.MergedFeed{
		Metadata: model.Metadata{
			Title:       "Show",
			Description: "A show about things",
			Link:        "https://example.com/show",
			Image:       model.Image{URL: "https://example.com/cover.jpg", Title: "Show", Link: "https://example.com/show"},
			Language:    "de",
			Copyright:   "(c) Show",
			Author:      "Host",
			OwnerName:   "Host",
			OwnerEmail:  "host@example.com",
			Explicit:    "no",
			Type:        "episodic",
			Categories:  []string{"Comedy"},
		},
		Entries: []model.Entry{
			{
				ID:          "E2",
				Title:       "Second",
				Link:        "https://example.com/e2",
				Description: "Bonus <b>notes</b> & more",
				Published:   model.At(time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)),
				Enclosure:   model.Enclosure{URL: "https://cdn.example.com/e2.mp3", Type: "audio/mpeg", Length: 1234},
				Duration:    "10:00",
				Season:      "2",
				Episode:     "7",
				EpisodeType: "bonus",
				Source:      model.SourceAuthorized,
			},
			{
				ID:        "E1",
				Title:     "First",
				Link:      "https://example.com/e1",
				Published: model.At(time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)),
				Source:    model.SourcePublic,
			},
			{
				ID:    "urn:uuid:5b1f0f38-7c52-5b5e-9f4b-0e6b1e2b6b0a",
				Title: "Undated",
			},
		},
	}
}

func TestBuild(t *testing.T) {
	out, err := Build(testFeed(), Options{Generator: "test", TTL: 5, Now: buildTime})
	require.NoError(t, err)

	assert.EqualValues(t, "Show", out.Title)
	assert.EqualValues(t, "A show about things", out.Description)
	assert.EqualValues(t, "de", out.Language)
	assert.EqualValues(t, "test", out.Generator)
	assert.EqualValues(t, 5, out.TTL)
	assert.EqualValues(t, buildTime.Format(time.RFC1123Z), out.LastBuildDate)
	assert.EqualValues(t, "Comedy", out.Category)
	require.NotNil(t, out.IOwner)
	assert.EqualValues(t, "host@example.com", out.IOwner.Email)
	require.NotNil(t, out.Image)
	assert.EqualValues(t, "https://example.com/cover.jpg", out.Image.URL)

	require.Len(t, out.Items, 3)
	assert.EqualValues(t, "E2", out.Items[0].GUID)
	assert.EqualValues(t, "1", out.Items[0].IOrder)
	assert.EqualValues(t, "10:00", out.Items[0].IDuration)
	require.NotNil(t, out.Items[0].Enclosure)
	assert.EqualValues(t, itunes.MP3, out.Items[0].Enclosure.Type)
	assert.EqualValues(t, "https://cdn.example.com/e2.mp3", out.Items[0].Enclosure.URL)

	assert.EqualValues(t, "E1", out.Items[1].GUID)
	assert.EqualValues(t, "https://example.com/e1", out.Items[1].Link)
	assert.Nil(t, out.Items[1].Enclosure)
	assert.Nil(t, out.Items[1].IImage)
	assert.Empty(t, out.Items[1].IAuthor)

	// No link and no enclosure, channel link is used instead
	assert.EqualValues(t, "https://example.com/show", out.Items[2].Link)
	assert.EqualValues(t, "urn:uuid:5b1f0f38-7c52-5b5e-9f4b-0e6b1e2b6b0a", out.Items[2].GUID)
	assert.Empty(t, out.Items[2].PubDateFormatted)
}

func TestBuildWithoutEnclosures(t *testing.T) {
	feed := &model.MergedFeed{
		Metadata: model.Metadata{Title: "Show", Link: "https://example.com/show"},
		Entries: []model.Entry{
			{ID: "E3", Title: "Dated", Published: model.At(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))},
			{ID: "U1", Title: "Linked", Link: "https://example.com/u1"},
			{ID: "U2", Title: "Bare"},
		},
	}

	data, err := RSS(feed, Options{Now: buildTime})
	require.NoError(t, err)

	doc := string(data)
	assert.Contains(t, doc, "<guid>E3</guid>")
	assert.Contains(t, doc, "<guid>U1</guid>")
	assert.Contains(t, doc, "<guid>U2</guid>")
	assert.Equal(t, 2, strings.Count(doc, "<pubDate>"))

	out, err := parser.Parse(data, model.SourcePublic)
	require.NoError(t, err)
	require.Len(t, out.Entries, 3)

	assert.Equal(t, "E3", out.Entries[0].ID)
	assert.True(t, out.Entries[0].Published.Valid)
	assert.Equal(t, "U1", out.Entries[1].ID)
	assert.Equal(t, "https://example.com/u1", out.Entries[1].Link)
	assert.False(t, out.Entries[1].Published.Valid)
	assert.Equal(t, "U2", out.Entries[2].ID)
	assert.False(t, out.Entries[2].Published.Valid)
}

func TestBuildWithoutChannelLink(t *testing.T) {
	feed := &model.MergedFeed{
		Metadata: model.Metadata{Title: "Show"},
		Entries:  []model.Entry{{ID: "U1", Title: "Bare"}},
	}

	out, err := Build(feed, Options{Now: buildTime})
	require.NoError(t, err)

	require.Len(t, out.Items, 1)
	assert.EqualValues(t, "U1", out.Items[0].GUID)
	assert.Empty(t, out.Items[0].Link)
}

func TestEnclosureTypePassthrough(t *testing.T) {
	feed := testFeed()
	feed.Entries[0].Enclosure = model.Enclosure{URL: "https://cdn.example.com/e2.ogg", Type: "audio/ogg", Length: 10}

	data, err := RSS(feed, Options{Now: buildTime})
	require.NoError(t, err)

	doc := string(data)
	assert.Contains(t, doc, `type="audio/ogg"`)
	assert.NotContains(t, doc, `type="audio/mpeg"`)
}

func TestBuildDefaults(t *testing.T) {
	out, err := Build(&model.MergedFeed{Metadata: model.Metadata{Title: "Show"}}, Options{Now: buildTime})
	require.NoError(t, err)

	assert.EqualValues(t, model.DefaultGenerator, out.Generator)
	assert.Empty(t, out.Items)
	assert.Empty(t, out.PubDate)
	assert.EqualValues(t, buildTime.Format(time.RFC1123Z), out.LastBuildDate)
}

func TestEmptyIdentifier(t *testing.T) {
	feed := testFeed()
	feed.Entries[1].ID = ""

	_, err := RSS(feed, Options{})
	assert.ErrorIs(t, err, model.ErrSerialization)

	_, err = Atom(feed, Options{})
	assert.ErrorIs(t, err, model.ErrSerialization)
}

func TestDoesNotMutateInput(t *testing.T) {
	feed := testFeed()
	before := testFeed()

	_, err := RSS(feed, Options{})
	require.NoError(t, err)
	_, err = Atom(feed, Options{})
	require.NoError(t, err)

	assert.Equal(t, before, feed)
}

func TestRSS(t *testing.T) {
	data, err := RSS(testFeed(), Options{Now: buildTime})
	require.NoError(t, err)

	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"`)
	assert.Contains(t, doc, `version="2.0"`)
	assert.Contains(t, doc, "<guid>E2</guid>")
	assert.Contains(t, doc, "Tue, 02 Jan 2024 08:30:00 +0000")
	assert.Contains(t, doc, `url="https://cdn.example.com/e2.mp3"`)
	assert.Contains(t, doc, "<itunes:type>episodic</itunes:type>")
	assert.Contains(t, doc, "<itunes:title>Second</itunes:title>")
	assert.Contains(t, doc, "<itunes:season>2</itunes:season>")
	assert.Contains(t, doc, "<itunes:episode>7</itunes:episode>")
	assert.Contains(t, doc, "<itunes:episodeType>bonus</itunes:episodeType>")
	assert.Equal(t, 3, strings.Count(doc, "<item>"))

	// Channel date and the two dated entries, none for the undated one
	assert.Equal(t, 3, strings.Count(doc, "<pubDate>"))

	// Order is kept as given
	assert.Less(t, strings.Index(doc, "<guid>E2</guid>"), strings.Index(doc, "<guid>E1</guid>"))
}

func TestAtom(t *testing.T) {
	data, err := Atom(testFeed(), Options{Now: buildTime})
	require.NoError(t, err)

	doc := string(data)
	assert.Contains(t, doc, `<feed xmlns="http://www.w3.org/2005/Atom">`)
	assert.Contains(t, doc, "<id>E2</id>")
	assert.Contains(t, doc, "<published>2024-01-02T08:30:00Z</published>")
	assert.Contains(t, doc, `rel="enclosure"`)
	assert.Contains(t, doc, `length="1234"`)
	assert.Contains(t, doc, "<logo>https://example.com/cover.jpg</logo>")
	assert.Contains(t, doc, feedID(testFeed().Metadata))
	assert.NotContains(t, doc, `href=""`)

	// Feed is updated when its newest entry is
	assert.Contains(t, doc, "<updated>2024-01-02T08:30:00Z</updated>")

	assert.Less(t, strings.Index(doc, "<id>E2</id>"), strings.Index(doc, "<id>E1</id>"))
}

func TestRoundTrip(t *testing.T) {
	render := map[model.Dialect]func(*model.MergedFeed, Options) ([]byte, error){
		model.DialectRSS:  RSS,
		model.DialectAtom: Atom,
	}

	for dialect, fn := range render {
		t.Run(string(dialect), func(t *testing.T) {
			in := testFeed()

			data, err := fn(in, Options{Now: buildTime})
			require.NoError(t, err)

			out, err := parser.Parse(data, model.SourcePublic)
			require.NoError(t, err)

			assert.Equal(t, dialect, out.Dialect)
			assert.Equal(t, in.Metadata.Title, out.Metadata.Title)

			require.Len(t, out.Entries, len(in.Entries))
			for i := range in.Entries {
				assert.Equal(t, in.Entries[i].ID, out.Entries[i].ID)
				assert.Equal(t, in.Entries[i].Title, out.Entries[i].Title)
				assert.True(t, in.Entries[i].Published.Equal(out.Entries[i].Published), "entry %s", in.Entries[i].ID)
			}

			assert.Equal(t, "Bonus <b>notes</b> & more", out.Entries[0].Description)
			assert.Equal(t, "https://cdn.example.com/e2.mp3", out.Entries[0].Enclosure.URL)
			assert.EqualValues(t, 1234, out.Entries[0].Enclosure.Length)

			if dialect == model.DialectRSS {
				assert.Equal(t, "episodic", out.Metadata.Type)
				assert.Equal(t, "2", out.Entries[0].Season)
				assert.Equal(t, "7", out.Entries[0].Episode)
				assert.Equal(t, "bonus", out.Entries[0].EpisodeType)
			}
		})
	}
}

func TestEnclosureType(t *testing.T) {
	tests := []struct {
		enc    model.Enclosure
		expect itunes.EnclosureType
	}{
		{model.Enclosure{Type: "audio/mpeg"}, itunes.MP3},
		{model.Enclosure{Type: "audio/mpeg; charset=binary"}, itunes.MP3},
		{model.Enclosure{Type: "audio/x-m4a"}, itunes.M4A},
		{model.Enclosure{Type: "video/mp4"}, itunes.MP4},
		{model.Enclosure{Type: "video/quicktime"}, itunes.MOV},
		{model.Enclosure{Type: "application/pdf"}, itunes.PDF},
		{model.Enclosure{URL: "https://cdn.example.com/a.m4a?token=1"}, itunes.M4A},
		{model.Enclosure{URL: "https://cdn.example.com/a.EPUB"}, itunes.EPUB},
		{model.Enclosure{Type: "video/webm"}, itunes.MP4},
		{model.Enclosure{Type: "audio/ogg"}, itunes.MP3},
		{model.Enclosure{}, itunes.MP3},
	}

	for _, tt := range tests {
		t.Run(tt.enc.Type+tt.enc.URL, func(t *testing.T) {
			assert.Equal(t, tt.expect, enclosureType(tt.enc))
		})
	}
}
