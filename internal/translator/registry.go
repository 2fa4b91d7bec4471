package translator

import (
	"sync"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
)

// InboundTransform converts a client-format request body into the
// native Antigravity shape. sessionID is the already-derived session
// hash (spec §3); implementations set it on the returned request.
type InboundTransform func(raw []byte, sessionID string) (*native.Request, error)

// OutboundTransform converts a completed native Response into a
// client-format response body.
type OutboundTransform func(resp *native.Response, model string) ([]byte, error)

// StreamOutboundTransform converts one native Response chunk (already
// unwrapped from its SSE envelope) into zero or more client-format SSE
// `data:` payloads, tracking block-open/close state across calls in
// the StreamState the caller passes in.
type StreamOutboundTransform func(state *StreamState, resp *native.Response, model string) ([]string, error)

// StreamState carries the translator's running position across a
// single streaming response: which block kind (thought/text/tool) is
// currently open, and the running content-block index, for families
// that frame blocks explicitly.
type StreamState struct {
	OpenBlock      string // "", "thought", "text", "tool"
	ToolCallSeen   bool
	MessageStarted bool
	BlockIndex     int

	toolCallIndices map[string]int
}

// ToolCallIndex returns the stable position to report for callID
// within an OpenAI-style tool_calls stream, assigning the next free
// index the first time callID is seen so multi-tool streams can be
// reassembled by position.
func (s *StreamState) ToolCallIndex(callID string) int {
	if s.toolCallIndices == nil {
		s.toolCallIndices = make(map[string]int)
	}
	if idx, ok := s.toolCallIndices[callID]; ok {
		return idx
	}
	idx := len(s.toolCallIndices)
	s.toolCallIndices[callID] = idx
	return idx
}

// Registry maps each Family to its inbound/outbound transforms. Like
// the teacher's sdk/translator.Registry, sub-packages self-register
// via init() rather than being wired centrally.
type Registry struct {
	mu        sync.RWMutex
	inbound   map[Family]InboundTransform
	outbound  map[Family]OutboundTransform
	streaming map[Family]StreamOutboundTransform
}

// Default is the process-wide registry populated by each family
// sub-package's init().
var Default = NewRegistry()

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		inbound:   make(map[Family]InboundTransform),
		outbound:  make(map[Family]OutboundTransform),
		streaming: make(map[Family]StreamOutboundTransform),
	}
}

// Register stores the inbound/outbound/streaming transforms for a
// family. Called from each family sub-package's init().
func Register(family Family, inbound InboundTransform, outbound OutboundTransform, streaming StreamOutboundTransform) {
	Default.mu.Lock()
	defer Default.mu.Unlock()
	Default.inbound[family] = inbound
	Default.outbound[family] = outbound
	Default.streaming[family] = streaming
}

// Inbound returns the registered inbound transform for family, or
// false if none is registered.
func (r *Registry) Inbound(family Family) (InboundTransform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.inbound[family]
	return fn, ok
}

// Outbound returns the registered outbound transform for family.
func (r *Registry) Outbound(family Family) (OutboundTransform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.outbound[family]
	return fn, ok
}

// Streaming returns the registered streaming outbound transform for
// family.
func (r *Registry) Streaming(family Family) (StreamOutboundTransform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.streaming[family]
	return fn, ok
}
