package dispatcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/cache"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/toolconv"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
	_ "github.com/SolarCrown57/antigravity-claude-proxy/internal/translator/openai"
)

type stubRefresher struct{}

func (stubRefresher) Refresh(context.Context, *pool.Account) (string, time.Time, error) {
	return "tok", time.Now().Add(time.Hour), nil
}

type fakeSender struct {
	responses []*http.Response
	calls     int
}

func (f *fakeSender) Send(context.Context, *native.Request, string, bool, string) (*http.Response, error) {
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestPool(t *testing.T) *pool.Manager {
	t.Helper()
	mgr, err := pool.NewManager(pool.Options{Refresher: stubRefresher{}})
	require.NoError(t, err)
	require.NoError(t, mgr.AddOrReplace(&pool.Account{
		Email:                "a@example.com",
		AccessToken:          "tok",
		RefreshToken:         "refresh",
		AccessTokenExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
		ProjectID:            "proj-1",
	}))
	return mgr
}

func TestDispatchUnaryOK(t *testing.T) {
	body := `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]},"finishReason":"STOP"}]}`
	sender := &fakeSender{responses: []*http.Response{jsonResponse(200, body)}}

	d := New(newTestPool(t), sender, toolconv.NewMapper(cache.NewToolNameCache()), cache.NewSignatureCache())
	req := &native.Request{Model: "gemini-2.5-pro", Request: native.Content{SessionID: "sess"}}

	result, stream, err := d.Dispatch(context.Background(), req, translator.FamilyOpenAI, false, "")
	require.NoError(t, err)
	require.Nil(t, stream)
	require.Contains(t, string(result.Body), "hello")
}

func TestDispatchRotatesOnRateLimit(t *testing.T) {
	mgr, err := pool.NewManager(pool.Options{Refresher: stubRefresher{}})
	require.NoError(t, err)
	require.NoError(t, mgr.AddOrReplace(&pool.Account{Email: "a@example.com", AccessToken: "tok", RefreshToken: "r", AccessTokenExpiresAt: time.Now().Add(time.Hour).UnixMilli(), ProjectID: "p"}))
	require.NoError(t, mgr.AddOrReplace(&pool.Account{Email: "b@example.com", AccessToken: "tok", RefreshToken: "r", AccessTokenExpiresAt: time.Now().Add(time.Hour).UnixMilli(), ProjectID: "p"}))

	rateLimited := jsonResponse(429, `{"error":"RESOURCE_EXHAUSTED"}`)
	rateLimited.Header.Set("Retry-After", "120")
	ok := jsonResponse(200, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]},"finishReason":"STOP"}]}`)
	sender := &fakeSender{responses: []*http.Response{rateLimited, ok}}

	d := New(mgr, sender, toolconv.NewMapper(cache.NewToolNameCache()), cache.NewSignatureCache())
	req := &native.Request{Model: "gemini-2.5-pro", Request: native.Content{SessionID: "sess"}}

	result, _, err := d.Dispatch(context.Background(), req, translator.FamilyOpenAI, false, "")
	require.NoError(t, err)
	require.Contains(t, string(result.Body), "hi")

	snap := mgr.Snapshot()
	require.Equal(t, 1, snap.RateLimited)
	require.Equal(t, 1, snap.Available)
}

func TestDispatchNoAccountsAvailable(t *testing.T) {
	mgr, err := pool.NewManager(pool.Options{Refresher: stubRefresher{}})
	require.NoError(t, err)
	d := New(mgr, &fakeSender{}, toolconv.NewMapper(cache.NewToolNameCache()), cache.NewSignatureCache())
	req := &native.Request{Model: "gemini-2.5-pro", Request: native.Content{SessionID: "sess"}}

	_, _, err = d.Dispatch(context.Background(), req, translator.FamilyOpenAI, false, "")
	require.Error(t, err)
}

func TestDispatchToolNameRoundTrip(t *testing.T) {
	body := `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"id":"c1","name":"my_tool_"}}]},"finishReason":"TOOL_USE"}]}`
	sender := &fakeSender{responses: []*http.Response{jsonResponse(200, body)}}

	names := cache.NewToolNameCache()
	d := New(newTestPool(t), sender, toolconv.NewMapper(names), cache.NewSignatureCache())

	req := &native.Request{
		Model: "gemini-2.5-pro",
		Request: native.Content{
			SessionID: "sess",
			Tools: []native.Tool{{FunctionDeclarations: []native.FunctionDeclaration{
				{Name: "my.tool!"},
			}}},
		},
	}

	result, _, err := d.Dispatch(context.Background(), req, translator.FamilyOpenAI, false, "")
	require.NoError(t, err)
	require.Equal(t, "my_tool_", req.Request.Tools[0].FunctionDeclarations[0].Name)
	require.Contains(t, string(result.Body), "my.tool!")
}
