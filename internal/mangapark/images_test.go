package mangapark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixImageURL(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{
			"dead cdn host",
			"https://xcdn-209.mangapark.net/10102/a1/b2/page-001.webp",
			"https://xfs-209.mangapark.net/10102/a1/b2/page-001.webp",
			true,
		},
		{
			"plain http",
			"http://s5.mpimg.net/x/y.png",
			"https://s5.mpimg.net/x/y.png",
			true,
		},
		{
			"http and dead host",
			"http://s1.mpcdn.net/x/page-004.jpg",
			"https://s1.mpimg.net/x/page-004.jpg",
			true,
		},
		{
			"already fine",
			"https://xfs-224.mangapark.net/c/page-002.webp?v=3",
			"https://xfs-224.mangapark.net/c/page-002.webp?v=3",
			false,
		},
		{
			"query survives rewrite",
			"https://s2.mpcdn.net/d/page-003.jpeg?expires=99",
			"https://s2.mpimg.net/d/page-003.jpeg?expires=99",
			true,
		},
		{
			"hostless string untouched",
			"not a url",
			"not a url",
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := FixImageURL(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.changed, changed)
		})
	}
}

func TestFixImageURLs_CountsRepairs(t *testing.T) {
	in := []string{
		"https://xcdn-209.mangapark.net/a.webp",
		"https://xfs-209.mangapark.net/b.webp",
		"http://s1.mpcdn.net/c.jpg",
	}

	out, fixed := FixImageURLs(in)
	require.Len(t, out, 3)
	assert.Equal(t, 2, fixed)
	assert.Equal(t, "https://xfs-209.mangapark.net/a.webp", out[0])
	assert.Equal(t, "https://xfs-209.mangapark.net/b.webp", out[1])
	assert.Equal(t, "https://s1.mpimg.net/c.jpg", out[2])
}

func TestReaderImages(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<img src="https://xfs-209.mangapark.net/p1.webp">
		<img src="/placeholder.gif" data-src="https://xfs-209.mangapark.net/p2.webp">
		<img src="data:image/gif;base64,R0lGOD">
		<picture><source srcset="//xfs-209.mangapark.net/p3.webp 1x, //xfs-209.mangapark.net/p3@2x.webp 2x"></picture>
		<script>var pages = ['https://s1.mpimg.net/p4.jpg'];</script>
		<img src="https://xfs-209.mangapark.net/p1.webp">
	</body></html>`)

	c := NewClient(srv.Client(), srv.URL, srv.URL, nil)

	urls, err := c.ReaderImages(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://xfs-209.mangapark.net/p1.webp",
		"https://xfs-209.mangapark.net/p2.webp",
		"https://xfs-209.mangapark.net/p3.webp",
		"https://xfs-209.mangapark.net/p3@2x.webp",
		"https://s1.mpimg.net/p4.jpg",
	}, urls)
}
