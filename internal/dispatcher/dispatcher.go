// Package dispatcher ties the account pool, protocol translator, and
// upstream client together into the retry/fallback loop described in
// spec §4.4: select an account, refresh its token, substitute its
// project, call upstream, classify the result, and retry against a
// different account on a retryable failure.
package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/cache"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/gatewayerr"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/idgen"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/metrics"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/toolconv"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/upstream"
)

// MaxAttempts is the retry loop's hard cap (spec §4.4).
const MaxAttempts = 5

const defaultRateLimitCooldown = 60 * time.Second

// Sender is the subset of upstream.Client the dispatcher depends on,
// narrowed for testability.
type Sender interface {
	Send(ctx context.Context, req *native.Request, token string, streaming bool, alt string) (*http.Response, error)
}

// Dispatcher implements the end-to-end request flow: translate in,
// retry across accounts, stream or return a completed response,
// translate out.
type Dispatcher struct {
	Pool     *pool.Manager
	Upstream Sender
	Mapper   *toolconv.Mapper
	Sigs     *cache.SignatureCache
}

// New constructs a Dispatcher from its collaborators.
func New(p *pool.Manager, up Sender, mapper *toolconv.Mapper, sigs *cache.SignatureCache) *Dispatcher {
	return &Dispatcher{Pool: p, Upstream: up, Mapper: mapper, Sigs: sigs}
}

// Result is a completed (non-streaming) dispatch outcome.
type Result struct {
	Body []byte
}

// StreamResult is a committed streaming dispatch outcome: the caller
// reads Events until it closes or the channel closes, then must call
// Close to release the upstream response body.
type StreamResult struct {
	Events <-chan StreamEvent
	Close  func()
}

// StreamEvent is either a translated client-format SSE payload or a
// terminal error.
type StreamEvent struct {
	Data string
	Err  error
}

// Dispatch runs the retry loop for a single inbound request already
// translated into native shape by the caller's family. family selects
// which outbound transform renders the response/stream back to the
// client's protocol.
func (d *Dispatcher) Dispatch(ctx context.Context, req *native.Request, family translator.Family, streaming bool, alt string) (*Result, *StreamResult, error) {
	d.applyToolSanitization(req)
	d.refillSignatures(req)

	outbound, ok := translator.Default.Outbound(family)
	if !ok {
		return nil, nil, gatewayerr.Newf(gatewayerr.KindInternal, "no outbound transform registered for family %q", family)
	}
	streamOutbound, _ := translator.Default.Streaming(family)

	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		account, err := d.Pool.SelectNext()
		if err != nil {
			return nil, nil, err
		}

		token, err := d.Pool.GetToken(ctx, account)
		if err != nil {
			lastErr = err
			log.Debugf("dispatcher: account %s token refresh failed, trying next account: %v", account.Email, err)
			continue
		}

		project, err := d.Pool.GetProject(ctx, account, token)
		if err != nil {
			lastErr = err
			continue
		}
		req.Project = project
		if req.RequestID == "" {
			req.RequestID = idgen.RequestID()
		}

		start := time.Now()
		httpResp, sendErr := d.Upstream.Send(ctx, req, token, streaming, alt)
		metrics.UpstreamLatencySeconds.Observe(time.Since(start).Seconds())
		if sendErr != nil {
			lastErr = gatewayerr.Newf(gatewayerr.KindUpstreamTransient, "upstream transport error: %v", sendErr)
			log.Debugf("dispatcher: transport error on account %s: %v", account.Email, sendErr)
			metrics.RetriesTotal.Inc()
			continue
		}

		outcome, classifyErr := d.classify(account.Email, httpResp)
		switch outcome {
		case outcomeOK:
			metrics.RequestsTotal.WithLabelValues("ok").Inc()
			sessionID := req.Request.SessionID
			if streaming {
				return nil, d.startStream(httpResp, req.Model, sessionID, streamOutbound), nil
			}
			body, err := d.finishUnary(httpResp, req.Model, sessionID, outbound)
			if err != nil {
				_ = httpResp.Body.Close()
				return nil, nil, err
			}
			return &Result{Body: body}, nil, nil
		case outcomeRetry:
			lastErr = classifyErr
			metrics.RetriesTotal.Inc()
			continue
		case outcomeSurface:
			metrics.RequestsTotal.WithLabelValues("surfaced_error").Inc()
			return nil, nil, classifyErr
		}
	}

	metrics.RequestsTotal.WithLabelValues("exhausted").Inc()
	if lastErr == nil {
		lastErr = gatewayerr.New(gatewayerr.KindInternal, "retry loop exhausted with no recorded error")
	}
	return nil, nil, lastErr
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRetry
	outcomeSurface
)

// classify inspects httpResp's status and, for non-2xx, a peeked prefix
// of its body to apply spec §4.4's classification table. On retryable
// outcomes it updates the account's pool state and closes the body.
func (d *Dispatcher) classify(email string, httpResp *http.Response) (outcome, error) {
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return outcomeOK, nil
	}

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
	_ = httpResp.Body.Close()
	bodyText := string(body)

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || strings.Contains(bodyText, "UNAUTHENTICATED"):
		d.Pool.MarkInvalid(email, "auth failed")
		return outcomeRetry, gatewayerr.New(gatewayerr.KindUnauthorized, "upstream authentication failed")

	case httpResp.StatusCode == http.StatusTooManyRequests || strings.Contains(bodyText, "RESOURCE_EXHAUSTED"):
		cooldown := retryAfter(httpResp.Header, defaultRateLimitCooldown)
		resetAt := time.Now().Add(cooldown)
		d.Pool.MarkRateLimited(email, &resetAt)
		return outcomeRetry, &gatewayerr.Error{Kind: gatewayerr.KindRateLimited, Message: "upstream rate limited", RetryAfter: int(cooldown.Seconds())}

	case httpResp.StatusCode >= 500:
		log.Warnf("dispatcher: upstream 5xx from account %s: %d", email, httpResp.StatusCode)
		return outcomeRetry, gatewayerr.Newf(gatewayerr.KindUpstreamTransient, "upstream server error: %d", httpResp.StatusCode)

	default:
		return outcomeSurface, &gatewayerr.Error{Kind: gatewayerr.KindUpstreamClient, Message: bodyText, Upstream: body}
	}
}

func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// finishUnary reads the full body and, for thinking-capable models, the
// SSE stream the upstream always emits for them (spec §4.2.5), then
// renders it through outbound.
func (d *Dispatcher) finishUnary(httpResp *http.Response, model, sessionID string, outbound translator.OutboundTransform) ([]byte, error) {
	defer func() { _ = httpResp.Body.Close() }()

	var resp *native.Response
	var err error
	if translator.IsThinkingCapable(model) {
		resp, err = d.accumulateSSE(httpResp.Body)
	} else {
		var raw []byte
		raw, err = io.ReadAll(httpResp.Body)
		if err == nil {
			resp, err = native.UnwrapSSEPayload(raw)
		}
	}
	if err != nil {
		return nil, gatewayerr.Newf(gatewayerr.KindInternal, "failed to read upstream response: %v", err)
	}

	d.restoreToolNames(resp, sessionID, model)
	d.recordSignatures(resp)

	return outbound(resp, model)
}

// accumulateSSE consumes the upstream's SSE stream and merges every
// chunk's parts and finish reason into one consolidated response,
// because thinking models always reply via SSE even for a unary
// request (spec §4.2.5).
func (d *Dispatcher) accumulateSSE(body io.Reader) (*native.Response, error) {
	reader := upstream.NewSSEReader(body)
	merged := &native.Response{Candidates: []native.Candidate{{Content: native.ContentTurn{Role: "model"}}}}

	for {
		raw, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		chunk, err := native.UnwrapSSEPayload(raw)
		if err != nil {
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		merged.Candidates[0].Content.Parts = append(merged.Candidates[0].Content.Parts, cand.Content.Parts...)
		if cand.FinishReason != "" {
			merged.Candidates[0].FinishReason = cand.FinishReason
		}
		if chunk.UsageMetadata != nil {
			merged.UsageMetadata = chunk.UsageMetadata
		}
	}
	return merged, nil
}

// startStream launches a goroutine reading httpResp's SSE body and
// pushing translated client-format payloads onto a channel. Once a
// streaming call reaches this point the dispatcher has committed: it
// never retries mid-stream (spec §4.4).
func (d *Dispatcher) startStream(httpResp *http.Response, model, sessionID string, streamOutbound translator.StreamOutboundTransform) *StreamResult {
	events := make(chan StreamEvent, 8)
	done := make(chan struct{})

	go func() {
		defer close(events)
		reader := upstream.NewSSEReader(httpResp.Body)
		state := &translator.StreamState{}
		for {
			select {
			case <-done:
				return
			default:
			}

			raw, err := reader.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case events <- StreamEvent{Err: gatewayerr.Newf(gatewayerr.KindUpstreamTransient, "stream read error: %v", err)}:
				case <-done:
				}
				return
			}

			chunk, err := native.UnwrapSSEPayload(raw)
			if err != nil {
				continue
			}
			d.restoreToolNames(chunk, sessionID, model)
			d.recordSignatures(chunk)

			if streamOutbound == nil {
				continue
			}
			payloads, err := streamOutbound(state, chunk, model)
			if err != nil {
				select {
				case events <- StreamEvent{Err: gatewayerr.Newf(gatewayerr.KindInternal, "stream translation error: %v", err)}:
				case <-done:
				}
				return
			}
			for _, payload := range payloads {
				select {
				case events <- StreamEvent{Data: payload}:
				case <-done:
					return
				}
			}
		}
	}()

	closeOnce := func() {
		close(done)
		_ = httpResp.Body.Close()
	}
	return &StreamResult{Events: events, Close: closeOnce}
}

// applyToolSanitization sanitizes every function declaration name on
// the inbound request and records the sanitize->original mapping so
// RestoreToolNames can reverse it on the way out (spec §4.2.2).
func (d *Dispatcher) applyToolSanitization(req *native.Request) {
	if d.Mapper == nil {
		return
	}
	sessionID := req.Request.SessionID
	for ti := range req.Request.Tools {
		decls := req.Request.Tools[ti].FunctionDeclarations
		for fi := range decls {
			original := decls[fi].Name
			decls[fi].Name = d.Mapper.SanitizeAndRemember(sessionID, req.Model, original)
			if raw, err := json.Marshal(decls[fi].Parameters); err == nil {
				normalized := toolconv.NormalizeSchema(raw)
				var params any
				if err := json.Unmarshal(normalized, &params); err == nil {
					decls[fi].Parameters = params
				}
			}
		}
	}
}

// restoreToolNames rewrites every functionCall.name in resp back to the
// original name a client sent, undoing applyToolSanitization.
func (d *Dispatcher) restoreToolNames(resp *native.Response, sessionID, model string) {
	if d.Mapper == nil || resp == nil {
		return
	}
	for ci := range resp.Candidates {
		parts := resp.Candidates[ci].Content.Parts
		for pi := range parts {
			if fc := parts[pi].FunctionCall; fc != nil {
				fc.Name = d.Mapper.RestoreName(sessionID, model, fc.Name)
			}
		}
	}
}

// refillSignatures fills any tool-call part missing a thoughtSignature
// from the signature cache, falling back to the documented sentinel
// when the upstream requires the field but nothing is cached (spec
// §4.2.3).
func (d *Dispatcher) refillSignatures(req *native.Request) {
	if d.Sigs == nil {
		return
	}
	for ti := range req.Request.Contents {
		parts := req.Request.Contents[ti].Parts
		for pi := range parts {
			fc := parts[pi].FunctionCall
			if fc == nil || fc.ThoughtSignature != "" || fc.ID == "" {
				continue
			}
			if sig, ok := d.Sigs.Get(fc.ID); ok {
				fc.ThoughtSignature = sig
			} else if translator.IsThinkingCapable(req.Model) {
				fc.ThoughtSignature = cache.SkipThoughtSignatureSentinel
			}
		}
	}
}

// recordSignatures caches any sufficiently long thoughtSignature found
// on an outbound tool-call part, keyed by its tool-call id (spec
// §4.2.3).
func (d *Dispatcher) recordSignatures(resp *native.Response) {
	if d.Sigs == nil || resp == nil {
		return
	}
	for ci := range resp.Candidates {
		for _, part := range resp.Candidates[ci].Content.Parts {
			if fc := part.FunctionCall; fc != nil && fc.ThoughtSignature != "" {
				d.Sigs.Put(fc.ID, fc.ThoughtSignature)
			}
		}
	}
}
