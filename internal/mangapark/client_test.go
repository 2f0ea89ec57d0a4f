package mangapark

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPage_MapsItems(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"page": 2, "pages": 4, "total": 190,
			"items": [
				{"id": "75605", "title": "Kagurabachi", "url": "/title/75605-en-kagurabachi",
				 "last_read": "Ch. 55", "last_read_url": "/title/75605/c55"},
				{"id": "", "title": "No Stable ID", "url": "https://other.example/title/x"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, srv.URL, nil)

	page, err := c.FetchPage(context.Background(), "42", 2)
	require.NoError(t, err)

	assert.Equal(t, "/api/member/42/follows", gotPath)
	assert.Equal(t, "page=2&limit=50", gotQuery)

	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 4, page.Pages)
	assert.Equal(t, 190, page.Total)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, "Kagurabachi", first.Title)
	assert.Equal(t, srv.URL+"/title/75605-en-kagurabachi", first.SourceURL, "relative URLs resolve against the origin")
	assert.Equal(t, "75605", first.StableID)
	assert.Equal(t, "Ch. 55", first.LastReadMarker)
	assert.Equal(t, srv.URL+"/title/75605/c55", first.LastReadURL)
	assert.NotEmpty(t, first.CapturedAt)

	assert.Equal(t, "https://other.example/title/x", page.Items[1].SourceURL, "absolute URLs pass through")
}

func TestFetchPage_MalformedItemURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"page": 1, "pages": 1, "total": 2,
			"items": [
				{"id": "9", "title": "Control Character", "url": "/title/\u0001bad"},
				{"id": "10", "title": "Fine", "url": "/title/10-fine"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, srv.URL, nil)

	page, err := c.FetchPage(context.Background(), "42", 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "/title/\x01bad", page.Items[0].SourceURL, "unparseable URLs pass through untouched")
	assert.Equal(t, srv.URL+"/title/10-fine", page.Items[1].SourceURL)
}

func TestFetchPage_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, srv.URL, nil)

	_, err := c.FetchPage(context.Background(), "42", 1)
	var se *exporter.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
}

func TestFetchPage_ShapeCheck(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `<html>maintenance</html>`},
		{"missing pages", `{"page": 1, "items": []}`},
		{"missing items", `{"page": 1, "pages": 3}`},
		{"wrong types", `{"pages": "three", "items": []}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.Client(), srv.URL, srv.URL, nil)

			_, err := c.FetchPage(context.Background(), "42", 1)
			assert.ErrorIs(t, err, exporter.ErrBadShape)
		})
	}
}

func TestFetchPage_EmptyItemsIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page": 1, "pages": 1, "total": 0, "items": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, srv.URL, nil)

	page, err := c.FetchPage(context.Background(), "42", 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items, "an empty follow list is not a shape error")
}
