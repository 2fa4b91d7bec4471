package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/dispatcher"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/gatewayerr"
)

// statusHeaders is the subset of a gatewayerr.Error the handlers need
// to surface a typed failure uniformly across every family.
type statusHeaders interface {
	error
	StatusCode() int
	Headers() http.Header
	JSON() []byte
}

// writeGatewayError renders err as the standard {"error": {...}} body
// with its taxonomy-mapped status and any headers (spec §7). Anything
// not already a *gatewayerr.Error is surfaced as a 500.
func writeGatewayError(c *gin.Context, err error) {
	var gwErr statusHeaders
	if !errors.As(err, &gwErr) {
		c.Data(http.StatusInternalServerError, "application/json", gatewayerr.New(gatewayerr.KindInternal, err.Error()).JSON())
		return
	}
	for key, values := range gwErr.Headers() {
		for _, v := range values {
			c.Header(key, v)
		}
	}
	c.Data(gwErr.StatusCode(), "application/json", gwErr.JSON())
}

// streamSSE drains a dispatcher stream result onto the gin response as
// Server-Sent Events, applying the headers spec §6 requires and the
// family-specific terminator (e.g. OpenAI's `data: [DONE]`).
func streamSSE(c *gin.Context, stream *dispatcher.StreamResult, terminator string) {
	streamFramed(c, stream, "text/event-stream", terminator, func(w io.Writer, payload string) {
		_, _ = io.WriteString(w, "data: "+payload+"\n\n")
	})
}

// streamNDJSON drains a dispatcher stream result as newline-delimited
// JSON, the wire shape Gemini's streamGenerateContent uses when the
// caller omits `?alt=sse` (spec §6).
func streamNDJSON(c *gin.Context, stream *dispatcher.StreamResult) {
	streamFramed(c, stream, "application/json", "", func(w io.Writer, payload string) {
		_, _ = io.WriteString(w, payload+"\n")
	})
}

// streamFramed is the shared driver behind streamSSE/streamNDJSON: it
// applies the headers spec §6 requires, drains events until the
// channel closes or the client disconnects, and renders each payload
// (or a terminal error frame) through writeFrame.
func streamFramed(c *gin.Context, stream *dispatcher.StreamResult, contentType, terminator string, writeFrame func(io.Writer, string)) {
	defer stream.Close()

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-stream.Events:
			if !ok {
				if terminator != "" {
					writeFrame(c.Writer, terminator)
					if canFlush {
						flusher.Flush()
					}
				}
				return
			}
			if event.Err != nil {
				var gwErr statusHeaders
				if errors.As(event.Err, &gwErr) {
					writeFrame(c.Writer, string(gwErr.JSON()))
				}
				if canFlush {
					flusher.Flush()
				}
				return
			}
			writeFrame(c.Writer, event.Data)
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
