// Package upstream builds the native Antigravity HTTP call: endpoint
// selection with daily/prod fallback, the fixed header set the
// upstream requires, and OAuth token refresh against Google's token
// endpoint (spec §4.3).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"
)

const (
	// BaseURLDaily is the primary endpoint the dispatcher tries first.
	BaseURLDaily = "https://daily-cloudcode-pa.sandbox.googleapis.com"
	// BaseURLProd is the fallback endpoint used when the primary fails
	// at the network level.
	BaseURLProd = "https://cloudcode-pa.googleapis.com"

	generatePath = "/v1internal:generateContent"
	streamPath   = "/v1internal:streamGenerateContent"

	xGoogAPIClient = "google-cloud-sdk vscode_cloudshelleditor/0.1"
	clientMetadata = "ideType=IDE_UNSPECIFIED,platform=PLATFORM_UNSPECIFIED,pluginType=GEMINI"

	oauthTokenURL = "https://oauth2.googleapis.com/token"
)

// userAgent renders the fixed upstream User-Agent header, pinned to the
// protocol version this gateway speaks and the running OS/arch.
func userAgent() string {
	return fmt.Sprintf("antigravity/1.11.5 %s/%s", runtime.GOOS, runtime.GOARCH)
}

// Client sends native requests to the Antigravity upstream and returns
// the raw HTTP response for the dispatcher to classify and stream.
type Client struct {
	http         *http.Client
	clientID     string
	clientSecret string
}

// defaultCallTimeout is the upstream unary call timeout ceiling spec
// §5 names when no CallTimeout is configured.
const defaultCallTimeout = 120 * time.Second

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// CallTimeout bounds an upstream unary call (spec §5); ignored
	// when HTTPClient is supplied directly. Defaults to
	// defaultCallTimeout.
	CallTimeout  time.Duration
	ClientID     string
	ClientSecret string
}

// New constructs a Client. A zero-value Options is valid; callers that
// need OAuth refresh must supply ClientID/ClientSecret.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.CallTimeout
		if timeout <= 0 {
			timeout = defaultCallTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{http: httpClient, clientID: opts.ClientID, clientSecret: opts.ClientSecret}
}

func endpointPath(streaming bool) string {
	if streaming {
		return streamPath
	}
	return generatePath
}

// Send posts req to the upstream, trying BaseURLDaily first and
// retrying once against BaseURLProd on a network-level error (spec
// §4.3). It does not interpret the HTTP status; that is the
// dispatcher's job.
func (c *Client) Send(ctx context.Context, req *native.Request, token string, streaming bool, alt string) (*http.Response, error) {
	bases := []string{BaseURLDaily, BaseURLProd}

	var lastErr error
	for i, base := range bases {
		httpReq, err := c.buildRequest(ctx, base, req, token, streaming, alt)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(httpReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i+1 < len(bases) {
			log.Debugf("upstream: network error on %s, retrying fallback endpoint: %v", base, err)
		}
	}
	return nil, lastErr
}

func (c *Client) buildRequest(ctx context.Context, base string, req *native.Request, token string, streaming bool, alt string) (*http.Request, error) {
	req.UserAgent = userAgent()
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: encode request: %w", err)
	}

	endpoint := base + endpointPath(streaming)
	if streaming && alt != "" {
		endpoint += "?alt=" + url.QueryEscape(alt)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", userAgent())
	httpReq.Header.Set("X-Goog-Api-Client", xGoogAPIClient)
	httpReq.Header.Set("Client-Metadata", clientMetadata)
	return httpReq, nil
}

// oauthConfig builds the oauth2.Config this client refreshes tokens
// through, pinned to Google's token endpoint.
func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: oauthTokenURL},
	}
}

// Refresh implements pool.Refresher: exchanges account's refresh token
// for a new access token against Google's OAuth endpoint (spec §4.1
// refresh protocol) via oauth2.Config's TokenSource. A 400 or 401 from
// the token endpoint returns a "refresh failed" error carrying the
// status and body so the caller marks the account invalid; other
// failures return an error marked "transient" and are treated as
// transient. Neither error wraps the *oauth2.RetrieveError.
func (c *Client) Refresh(ctx context.Context, account *pool.Account) (string, time.Time, error) {
	if account.RefreshToken == "" {
		return "", time.Time{}, fmt.Errorf("upstream: account %s has no refresh token", account.Email)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	ts := c.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})

	tok, err := ts.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			status := retrieveErr.Response.StatusCode
			if status == http.StatusBadRequest || status == http.StatusUnauthorized {
				return "", time.Time{}, fmt.Errorf("upstream: refresh failed: status %d: %s", status, string(retrieveErr.Body))
			}
			return "", time.Time{}, fmt.Errorf("upstream: refresh transient error: status %d", status)
		}
		return "", time.Time{}, fmt.Errorf("upstream: refresh transient error: %w", err)
	}
	if tok.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("upstream: refresh response missing access_token")
	}
	return tok.AccessToken, tok.Expiry, nil
}

// codeAssistProjectResponse is the subset of loadCodeAssist's response
// this client reads for project discovery.
type codeAssistProjectResponse struct {
	CloudaicompanionProject string `json:"cloudaicompanionProject"`
}

// DiscoverProject implements pool.ProjectDiscoverer by calling the
// upstream's loadCodeAssist endpoint with the account's token (spec
// §4.1 get_project).
func (c *Client) DiscoverProject(ctx context.Context, account *pool.Account, token string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, BaseURLDaily+"/v1internal:loadCodeAssist", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", userAgent())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Errorf("upstream: close project discovery response body: %v", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upstream: project discovery failed: status %d", resp.StatusCode)
	}

	var parsed codeAssistProjectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("upstream: decode project discovery response: %w", err)
	}
	return parsed.CloudaicompanionProject, nil
}
