package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"
)

func TestEndpointPath(t *testing.T) {
	assert.Equal(t, generatePath, endpointPath(false))
	assert.Equal(t, streamPath, endpointPath(true))
}

func TestBuildRequestSetsFixedHeaders(t *testing.T) {
	c := New(Options{})
	req, err := c.buildRequest(context.Background(), "https://example.test", &native.Request{}, "tok-123", false, "")
	require.NoError(t, err)

	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
	assert.Equal(t, xGoogAPIClient, req.Header.Get("X-Goog-Api-Client"))
	assert.Equal(t, clientMetadata, req.Header.Get("Client-Metadata"))
	assert.True(t, strings.HasPrefix(req.Header.Get("User-Agent"), "antigravity/"))
	assert.Equal(t, "https://example.test"+generatePath, req.URL.String())
}

func TestBuildRequestStreamingAppendsAltQuery(t *testing.T) {
	c := New(Options{})
	req, err := c.buildRequest(context.Background(), "https://example.test", &native.Request{}, "tok", true, "sse")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test"+streamPath+"?alt=sse", req.URL.String())
}

// roundTripToTestServer rewrites every outbound request's scheme/host to
// point at a local httptest server, letting tests exercise Refresh and
// DiscoverProject without reaching the real, hardcoded upstream hosts.
type roundTripToTestServer struct {
	target *url.URL
}

func (rt roundTripToTestServer) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected := req.Clone(req.Context())
	redirected.URL.Scheme = rt.target.Scheme
	redirected.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(redirected)
}

func newRedirectingClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: roundTripToTestServer{target: target}}
}

func TestRefreshSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-token","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: newRedirectingClient(t, srv), ClientID: "id", ClientSecret: "secret"})
	token, expiresAt, err := c.Refresh(context.Background(), &pool.Account{Email: "a@example.com", RefreshToken: "rt"})
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
}

func TestRefreshUnauthorizedSurfacesAsInvalidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: newRedirectingClient(t, srv)})
	_, _, err := c.Refresh(context.Background(), &pool.Account{Email: "a@example.com", RefreshToken: "rt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestRefreshServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: newRedirectingClient(t, srv)})
	_, _, err := c.Refresh(context.Background(), &pool.Account{Email: "a@example.com", RefreshToken: "rt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transient")
}

func TestRefreshRejectsAccountWithNoRefreshToken(t *testing.T) {
	c := New(Options{})
	_, _, err := c.Refresh(context.Background(), &pool.Account{Email: "a@example.com"})
	require.Error(t, err)
}

func TestDiscoverProjectParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cloudaicompanionProject":"proj-123"}`))
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: newRedirectingClient(t, srv)})
	proj, err := c.DiscoverProject(context.Background(), &pool.Account{Email: "a@example.com"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "proj-123", proj)
}
