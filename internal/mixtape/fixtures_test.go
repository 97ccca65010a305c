package mixtape

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type entryFixture struct {
	banners []string
	artist  string
	title   string
	href    string
	listens string
	alt     string
	votes   string
}

func officialEntry(artist, title, href string, extra ...string) entryFixture {
	return entryFixture{
		banners: append([]string{"banner official"}, extra...),
		artist:  artist,
		title:   title,
		href:    href,
		listens: "12,345",
		alt:     "4 stars",
		votes:   "1,024 votes",
	}
}

func (e entryFixture) html() string {
	var b strings.Builder
	b.WriteString(`<div class="contentItemInner"><a href="` + e.href + `">`)
	for _, c := range e.banners {
		fmt.Fprintf(&b, `<div class="%s"></div>`, c)
	}
	b.WriteString(`</a>`)
	if e.artist != "" {
		fmt.Fprintf(&b, `<div class="artist">%s</div>`, e.artist)
	}
	if e.title != "" || e.href != "" {
		fmt.Fprintf(&b, `<div class="title"><a href="%s">%s</a></div>`, e.href, e.title)
	}
	fmt.Fprintf(&b, `<div>Listens: <span>%s</span></div>`, e.listens)
	fmt.Fprintf(&b, `<div class="text"><img alt="%s" title="%s"/></div>`, e.alt, e.votes)
	b.WriteString(`</div>`)
	return b.String()
}

func catalogPage(active, next int, entries ...entryFixture) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="leftColumnWide">`)
	for _, e := range entries {
		b.WriteString(e.html())
	}
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div class="pagination"><a href="/mixtapes.php?filter=all&amp;p=%d" class="active">%d</a>`, active, active)
	fmt.Fprintf(&b, `<a class="next" href="/mixtapes.php?filter=all&amp;p=%d">Next</a></div>`, next)
	b.WriteString(`</body></html>`)
	return b.String()
}

const detailPage = `<html><body>
<div class="module1">
  <ul>
    <li class="dj"> DJ Host </li>
    <li class="listens">Views: 4,321</li>
  </ul>
  <div class="left"><span>March 3, 2015</span> by <a>uploader</a></div>
  <div class="description"> A fine tape. </div>
  <div class="downloads right"><ul>
    <li><img src="/images/icon-listens.png"/> 98,765 listens</li>
    <li><img src="/images/icon-downloads.png"/> 5,000</li>
  </ul></div>
</div>
<span class="tracknumber">1</span>
<span class="tracknumber">2</span>
<span class="tracknumber">3</span>
<div class="actionButtons"><a> Stream </a><a>Download</a></div>
</body></html>`

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
