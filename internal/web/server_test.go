package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JonMunkholm/worldview/internal/config"
	"github.com/JonMunkholm/worldview/internal/core"
	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/metrics"
	"github.com/JonMunkholm/worldview/internal/restcountries"
)

const cookieName = "worldview_session"

type stubFetcher struct {
	records []directory.Record
	err     error
}

func (f stubFetcher) FetchAll(context.Context) ([]directory.Record, error) {
	return f.records, f.err
}

// fixture returns 7 European, 3 Asian and 10 African countries.
func fixture() []directory.Record {
	var out []directory.Record
	add := func(n int, region directory.Region, prefix string) {
		for i := 0; i < n; i++ {
			out = append(out, directory.Record{
				ID:          fmt.Sprintf("%s%d", prefix, i),
				DisplayName: fmt.Sprintf("%s Land %d", region, i),
				Region:      region,
				Population:  1_000_000 + int64(i),
				Capital:     fmt.Sprintf("%s City %d", region, i),
				FlagURL:     fmt.Sprintf("https://flags.example/%s%d.png", prefix, i),
			})
		}
	}
	add(7, directory.RegionEurope, "EU")
	add(3, directory.RegionAsia, "AS")
	add(10, directory.RegionAfrica, "AF")
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Source:    config.SourceConfig{MaxConcurrent: 2, MaxWaitTime: time.Second},
		Directory: config.DirectoryConfig{PageSize: 8},
		Session:   config.SessionConfig{TTL: time.Minute, CookieName: cookieName},
		Security:  config.SecurityConfig{EnableCSP: true},
	}
}

type ServerSuite struct {
	suite.Suite
	cfg     *config.Config
	fetcher stubFetcher
	service *core.Service
	server  *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.cfg = testConfig()
	s.fetcher = stubFetcher{records: fixture()}
	s.build()
}

func (s *ServerSuite) TearDownTest() {
	s.server.Shutdown(context.Background())
}

func (s *ServerSuite) build() {
	if s.server != nil {
		s.server.Shutdown(context.Background())
	}
	s.service = core.NewService(s.fetcher, s.cfg, metrics.New())
	s.server = NewServer(s.service, s.cfg)
}

func (s *ServerSuite) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)
	return rec
}

// open visits the page and returns the session cookie it was given.
func (s *ServerSuite) open() *http.Cookie {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	s.FailNow("no session cookie set")
	return nil
}

func formPost(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonPost(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeView(t require.TestingT, rec *httptest.ResponseRecorder) ViewResponse {
	var v ViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *ServerSuite) TestIndexOpensSessionAndRendersFirstPage() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	s.True(strings.HasPrefix(body, "<!DOCTYPE html>"))
	s.Equal(8, strings.Count(body, `class="card"`))
	s.Contains(body, "page 1 of 3, 20 of 20 countries")
	s.Contains(body, `title="Previous page" disabled`)
	s.NotContains(body, `title="Next page" disabled`)
	s.Equal(1, s.service.ActiveSessions())

	cookie := rec.Result().Cookies()[0]
	s.Equal(cookieName, cookie.Name)
	s.True(cookie.HttpOnly)
	s.Equal(http.SameSiteLaxMode, cookie.SameSite)
}

func (s *ServerSuite) TestIndexReusesSession() {
	cookie := s.open()
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)

	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Result().Cookies())
	s.Equal(1, s.service.ActiveSessions())
}

func (s *ServerSuite) TestIndexAppliesQueryFilters() {
	cookie := s.open()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/?search=&region=Europe", nil), cookie)
	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Equal(7, strings.Count(body, `class="card"`))
	s.Contains(body, "page 1 of 1, 7 of 20 countries")
	s.Contains(body, `<option value="Europe" selected>`)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/?region=Atlantis", nil), cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "REQ001")
}

func (s *ServerSuite) TestIndexRejectedQueryLeavesFilterUnchanged() {
	cookie := s.open()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/?search=asia&region=Atlantis", nil), cookie)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/view", nil), cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	v := decodeView(s.T(), rec)
	s.Equal("", v.Filter.SearchText)
	s.Equal(directory.RegionNone, v.Filter.Region)
	s.Equal(20, v.MatchCount)
}

func (s *ServerSuite) TestIndexAppliesSearchAndRegionTogether() {
	cookie := s.open()
	s.do(formPost("/page/next", nil), cookie)
	s.do(formPost("/page/next", nil), cookie)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/?search=Land&region=Africa", nil), cookie)
	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "page 2 of 2, 10 of 20 countries")
	s.Contains(body, `value="Land"`)
	s.Contains(body, `<option value="Africa" selected>`)
}

func (s *ServerSuite) TestFormPostsRedirectAndPersist() {
	cookie := s.open()

	rec := s.do(formPost("/page/next", nil), cookie)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/", rec.Header().Get("Location"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	s.Contains(rec.Body.String(), "page 2 of 3")

	rec = s.do(formPost("/search", url.Values{"search": {"asia"}}), cookie)
	s.Equal(http.StatusSeeOther, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	body := rec.Body.String()
	s.Contains(body, "page 1 of 1, 3 of 20 countries", "page clamps to the narrowed result")
	s.Contains(body, `value="asia"`)
}

func (s *ServerSuite) TestHTMXPostRendersPartial() {
	cookie := s.open()

	req := formPost("/region", url.Values{"region": {"Asia"}})
	req.Header.Set("HX-Request", "true")
	rec := s.do(req, cookie)

	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.True(strings.HasPrefix(body, `<section id="directory">`))
	s.NotContains(body, "<html")
	s.Equal(3, strings.Count(body, `class="card"`))
}

func (s *ServerSuite) TestFormPostWithoutSession() {
	rec := s.do(formPost("/page/next", nil), nil)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/", rec.Header().Get("Location"))

	req := formPost("/page/next", nil)
	req.Header.Set("HX-Request", "true")
	rec = s.do(req, &http.Cookie{Name: cookieName, Value: "stale"})
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), `role="alert"`)
	s.Contains(rec.Body.String(), "SES001")
	s.Equal(0, s.service.ActiveSessions())
}

func (s *ServerSuite) TestRegionScenarioOverAPI() {
	cookie := s.open()

	rec := s.do(jsonPost("/api/region", `{"region":"Europe"}`), cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	v := decodeView(s.T(), rec)
	s.Len(v.Visible, 7)
	s.Equal(1, v.Page)
	s.Equal(1, v.TotalPages)
	s.False(v.HasNext)

	rec = s.do(jsonPost("/api/page/next", ``), cookie)
	v = decodeView(s.T(), rec)
	s.Equal(1, v.Page, "next on the last page is a no-op")
	s.Len(v.Visible, 7)

	rec = s.do(jsonPost("/api/region", `{"region":"Asia"}`), cookie)
	v = decodeView(s.T(), rec)
	s.Len(v.Visible, 3)
	for _, r := range v.Visible {
		s.Equal(directory.RegionAsia, r.Region)
	}

	rec = s.do(jsonPost("/api/region", `{"region":""}`), cookie)
	v = decodeView(s.T(), rec)
	s.Equal(20, v.MatchCount)
	s.Equal(directory.RegionNone, v.Filter.Region)
}

func (s *ServerSuite) TestAPISearchAndPaging() {
	cookie := s.open()

	rec := s.do(jsonPost("/api/page/next", ``), cookie)
	v := decodeView(s.T(), rec)
	s.Equal(2, v.Page)
	s.True(v.HasPrev)

	rec = s.do(jsonPost("/api/search", `{"text":"LAND 1"}`), cookie)
	v = decodeView(s.T(), rec)
	s.Equal("LAND 1", v.Filter.SearchText)
	s.Equal(3, v.MatchCount, "Land 1 in each region")
	s.Equal(1, v.Page)

	rec = s.do(jsonPost("/api/page/prev", ``), cookie)
	v = decodeView(s.T(), rec)
	s.Equal(1, v.Page)
	s.False(v.HasPrev)
}

func (s *ServerSuite) TestAPIRejectsBadInput() {
	cookie := s.open()

	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"unknown region", "/api/region", `{"region":"Atlantis"}`, "REQ001"},
		{"lowercase region", "/api/region", `{"region":"europe"}`, "REQ001"},
		{"malformed json", "/api/search", `{"text":`, "REQ002"},
		{"unknown field", "/api/search", `{"query":"x"}`, "REQ002"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(jsonPost(tt.path, tt.body), cookie)
			s.Equal(http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
			s.Equal(tt.code, resp.Code)
		})
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/view", nil), cookie)
	v := decodeView(s.T(), rec)
	s.Equal(directory.DefaultFilter(), v.Filter, "rejected input leaves state untouched")
}

func (s *ServerSuite) TestAPIWithoutSession() {
	rec := s.do(jsonPost("/api/page/next", ``), nil)
	s.Equal(http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("SES001", resp.Code)
}

func (s *ServerSuite) TestViewETag() {
	cookie := s.open()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/view", nil), cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	s.Regexp(`^"[0-9a-f]{16}"$`, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("If-None-Match", etag)
	rec = s.do(req, cookie)
	s.Equal(http.StatusNotModified, rec.Code)
	s.Empty(rec.Body.String())

	s.do(jsonPost("/api/page/next", ``), cookie)

	req = httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("If-None-Match", etag)
	rec = s.do(req, cookie)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEqual(etag, rec.Header().Get("ETag"))
}

func (s *ServerSuite) TestFetchFailureShowsBanner() {
	s.fetcher = stubFetcher{err: &restcountries.FetchError{Kind: restcountries.ErrUpstreamStatus}}
	s.build()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)
	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `role="alert"`)
	s.Contains(body, "SRC002")
	s.Zero(strings.Count(body, `class="card"`))
	s.Contains(body, "page 1 of 1, 0 of 0 countries")
	s.Contains(body, `title="Previous page" disabled`)
	s.Contains(body, `title="Next page" disabled`)

	cookie := rec.Result().Cookies()[0]
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/view", nil), cookie)
	v := decodeView(s.T(), rec)
	s.Require().NotNil(v.LoadError)
	s.Equal("SRC002", v.LoadError.Code)
	s.NotNil(v.Visible)
	s.Empty(v.Visible)
}

func (s *ServerSuite) TestCloseSession() {
	cookie := s.open()

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/session", nil), cookie)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal(0, s.service.ActiveSessions())

	cleared := rec.Result().Cookies()
	s.Require().Len(cleared, 1)
	s.Equal(-1, cleared[0].MaxAge)
}

func (s *ServerSuite) TestRegions() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/regions", nil), nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"regions":["Europe","Africa","Americas","Oceania","Asia","Antarctic"]}`, rec.Body.String())
	s.Equal(0, s.service.ActiveSessions(), "listing regions opens no session")
}

func (s *ServerSuite) TestHealthz() {
	s.open()
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	s.Equal(http.StatusOK, rec.Code)

	var resp HealthResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("ok", resp.Status)
	s.Equal(1, resp.Sessions)
	s.Equal(2, resp.Fetches.MaxConcurrent)
}

func (s *ServerSuite) TestMetricsAuth() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	s.Equal(http.StatusOK, rec.Code, "open when no keys are configured")

	s.cfg.Security.MetricsAPIKeys = []string{"secret"}
	s.build()
	s.open()

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = s.do(req, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = s.do(req, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "worldview_sessions_opened_total 1")
}

func (s *ServerSuite) TestRateLimit() {
	s.cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s.build()

	for i := 0; i < 2; i++ {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/regions", nil), nil)
		s.Equal(http.StatusOK, rec.Code)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/regions", nil), nil)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("60", rec.Header().Get("Retry-After"))

	var resp ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("RATE001", resp.Code)
}

func (s *ServerSuite) TestSecurityHeadersAndStatic() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil), nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/css")
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	s.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	s.Contains(rec.Header().Get("Content-Security-Policy"), "img-src 'self' data: https:")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/static/directory.js", nil), nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "HX-Request")
	s.Contains(rec.Header().Get("Content-Security-Policy"), "script-src 'self'")

	s.cfg.Security.EnableCSP = false
	s.build()
	rec = s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	s.Empty(rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestEtagMatches(t *testing.T) {
	etag := contentETag([]byte(`{"a":1}`))

	assert.True(t, etagMatches(etag, etag))
	assert.True(t, etagMatches(`"other", W/`+etag, etag))
	assert.True(t, etagMatches("*", etag))
	assert.False(t, etagMatches("", etag))
	assert.False(t, etagMatches(`"other"`, etag))
	assert.Equal(t, etag, contentETag([]byte(`{"a":1}`)))
}
