package follows

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV_RoundTripWithEscaping(t *testing.T) {
	items := []FollowItem{
		{
			Title:          `Kubera: "The Finite"`,
			SourceURL:      "https://mangapark.net/title/1",
			StableID:       "1",
			LastReadMarker: "Ch. 120, Pt. 2",
			LastReadURL:    "https://mangapark.net/title/1/c120",
			CapturedAt:     "2026-08-31T00:00:00Z",
		},
		{
			Title:      "Plain Title",
			SourceURL:  "https://mangapark.net/title/2",
			CapturedAt: "2026-08-31T00:00:00Z",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, items, got, "commas and quotes survive the round trip")
}

func TestWriteCSV_HeaderAlwaysPresent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "zero items still writes the header")
	assert.Equal(t, strings.Join(CSVHeader, ","), lines[0])
}

func TestWriteJSON_StableOutput(t *testing.T) {
	payload := ExportPayload{
		Meta: PayloadMeta{
			CapturedAt:   "2026-08-31T00:00:00Z",
			SourceOrigin: "https://mangapark.net",
			OwnerID:      "42",
			TotalItems:   1,
		},
		Items: []FollowItem{{Title: "A & B", SourceURL: "https://mangapark.net/title/a?x=1&y=2", CapturedAt: "2026-08-31T00:00:00Z"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, payload))

	out := buf.String()
	assert.Contains(t, out, `"A & B"`, "HTML escaping disabled")
	assert.Contains(t, out, "x=1&y=2")
	assert.True(t, strings.HasPrefix(out, "{\n  \"meta\""), "two-space indentation, meta first")
}

func TestDedupeMap_FirstSeenWins(t *testing.T) {
	d := NewDedupeMap()

	first := FollowItem{Title: "Original", StableID: "x", SourceURL: "https://a/1"}
	dup := FollowItem{Title: "Renamed", StableID: "x", SourceURL: "https://a/other"}

	assert.True(t, d.Add(first))
	assert.False(t, d.Add(dup))
	require.Equal(t, 1, d.Len())
	assert.Equal(t, "Original", d.Items()[0].Title)
}

func TestDedupeMap_URLIdentityFallback(t *testing.T) {
	d := NewDedupeMap()

	assert.True(t, d.Add(FollowItem{Title: "A", SourceURL: "https://a/1"}))
	assert.False(t, d.Add(FollowItem{Title: "B", SourceURL: "https://a/1"}), "same URL, no stable id")
	assert.True(t, d.Add(FollowItem{Title: "C", SourceURL: "https://a/2"}))
	assert.Equal(t, 2, d.Len())
}

func TestDedupeMap_RejectsEmptyIdentity(t *testing.T) {
	d := NewDedupeMap()

	assert.False(t, d.Add(FollowItem{Title: "ghost"}))
	assert.Equal(t, 0, d.Len())
}

func TestDedupeMap_ItemsIsACopy(t *testing.T) {
	d := NewDedupeMap()
	d.Add(FollowItem{Title: "A", StableID: "a"})

	got := d.Items()
	got[0].Title = "mutated"

	assert.Equal(t, "A", d.Items()[0].Title)
}

func TestPartialSnapshot_Valid(t *testing.T) {
	assert.False(t, (*PartialSnapshot)(nil).Valid())
	assert.False(t, (&PartialSnapshot{}).Valid())
	assert.False(t, (&PartialSnapshot{Meta: SnapshotMeta{Page: 1}}).Valid(), "no items")
	assert.False(t, (&PartialSnapshot{Items: []FollowItem{{StableID: "a"}}}).Valid(), "page zero")
	assert.True(t, (&PartialSnapshot{Meta: SnapshotMeta{Page: 1}, Items: []FollowItem{{StableID: "a"}}}).Valid())
}

func TestHTTPCode(t *testing.T) {
	assert.Equal(t, "HTTP_503", HTTPCode(503))
	assert.Equal(t, "HTTP_429", HTTPCode(429))
}
