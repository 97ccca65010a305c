package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mixtapes.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Agent", r.UserAgent())
		w.Header().Set("X-Trace", r.Header.Get("X-Trace"))
		_, _ = w.Write([]byte(`<html><body>page ` + r.URL.Query().Get("p") + `</body></html>`))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherFetchesPage(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f, err := New(Config{UserAgent: "mixtape-test", Timeout: time.Second})
	require.NoError(t, err)

	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{
		Stage:   crawler.StageCatalog,
		URL:     srv.URL + "/mixtapes.php?filter=all&p=2",
		Headers: http.Header{"X-Trace": {"yes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "page 2")
	assert.Equal(t, "mixtape-test", resp.Headers.Get("X-Agent"))
	assert.Equal(t, "yes", resp.Headers.Get("X-Trace"))
	assert.Equal(t, srv.URL+"/mixtapes.php?filter=all&p=2", resp.URL)
}

func TestFetcherRevisitsSameURL(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f, err := New(Config{})
	require.NoError(t, err)

	for range 2 {
		_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/mixtapes.php?p=1"})
		require.NoError(t, err)
	}
}

func TestFetcherReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f, err := New(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetcherHonorsContext(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL + "/slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f, err := New(Config{UserAgent: "coverage-agent", RespectRobots: false, Timeout: time.Second})
	require.NoError(t, err)

	collector := f.buildCollector(crawler.FetchRequest{URL: "https://example.com"}, time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	assert.Equal(t, "coverage-agent", collector.UserAgent)
	assert.True(t, collector.IgnoreRobotsTxt)
	assert.True(t, collector.AllowURLRevisit)

	f, err = New(Config{RespectRobots: true, Parallelism: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	collector = f.buildCollector(crawler.FetchRequest{}, time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	assert.False(t, collector.IgnoreRobotsTxt)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	req := crawler.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	require.EqualError(t, fetchErr, "status 502: Bad Gateway")
	var statusErr *crawler.StatusError
	require.ErrorAs(t, fetchErr, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
