// Package handler binds a stored mock definition to a live editable body:
// body edits feed the re-encoding pipeline and header edits feed its
// encoding refresh, so the materialized response always carries bytes that
// match the declared Content-Encoding.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"mockbody/internal/body"
	"mockbody/internal/logger"
	"mockbody/pkg/model"
	"mockbody/pkg/traffic"
)

type MockHandler struct {
	mu   sync.RWMutex
	def  model.HandlerDef
	body *body.EditableBody
	log  logger.Logger
}

type Options struct {
	// ThrottleInterval bounds body re-encoding; zero keeps the default.
	ThrottleInterval time.Duration
	Logger           logger.Logger
}

func New(def model.HandlerDef, opts Options) *MockHandler {
	if def.ID == "" {
		def.ID = model.HandlerID(uuid.NewString())
	}
	if def.Respond.Status == 0 {
		def.Respond.Status = http.StatusOK
	}
	if def.Respond.Headers == nil {
		def.Respond.Headers = make(map[string]string)
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}

	h := &MockHandler{def: def, log: l.With("handler", string(def.ID))}

	bodyOpts := []body.Option{body.WithLogger(h.log)}
	if opts.ThrottleInterval > 0 {
		bodyOpts = append(bodyOpts, body.WithInterval(opts.ThrottleInterval))
	}
	// With no declared encoding the stored bytes are already the wire
	// bytes, so seed them and skip the initial encode.
	if len(body.NormalizeEncodings(h.contentEncoding())) == 0 {
		bodyOpts = append(bodyOpts, body.WithEncoded(def.Respond.Body))
	}
	h.body = body.New(def.Respond.Body, h.contentEncoding, bodyOpts...)
	return h
}

// ID returns the handler's stable identifier.
func (h *MockHandler) ID() model.HandlerID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.def.ID
}

// Def returns a snapshot of the definition with the current decoded body.
func (h *MockHandler) Def() model.HandlerDef {
	h.mu.RLock()
	def := h.def
	def.Respond.Headers = make(map[string]string, len(h.def.Respond.Headers))
	for k, v := range h.def.Respond.Headers {
		def.Respond.Headers[k] = v
	}
	h.mu.RUnlock()

	def.Respond.Body = h.body.Decoded()
	return def
}

// SetBody replaces the decoded response body.
func (h *MockHandler) SetBody(p []byte) {
	h.mu.Lock()
	h.def.Respond.Body = p
	h.mu.Unlock()
	h.body.SetDecoded(p)
}

// DecodedBody returns the current decoded body bytes.
func (h *MockHandler) DecodedBody() []byte { return h.body.Decoded() }

// EncodedSize reports the byte length of the currently applied encoded
// body.
func (h *MockHandler) EncodedSize() int { return h.body.EncodedLength() }

// SetHeader sets a response header. Content-Encoding edits feed through to
// the body's re-encoding pipeline; the refresh itself decides whether the
// normalized encoding list actually changed.
func (h *MockHandler) SetHeader(name, value string) {
	h.mu.Lock()
	h.def.Respond.Headers[strings.ToLower(name)] = value
	h.mu.Unlock()
	h.body.RefreshEncoding()
}

// DelHeader removes a response header.
func (h *MockHandler) DelHeader(name string) {
	h.mu.Lock()
	delete(h.def.Respond.Headers, strings.ToLower(name))
	h.mu.Unlock()
	h.body.RefreshEncoding()
}

// ApplyJSONPatch sets a value at a JSON path in the decoded body and
// schedules re-encoding.
func (h *MockHandler) ApplyJSONPatch(path string, value any) error {
	out, err := sjson.Set(string(h.body.Decoded()), path, value)
	if err != nil {
		return fmt.Errorf("json patch %q: %w", path, err)
	}
	h.SetBody([]byte(out))
	return nil
}

// Materialize renders the mock response with the settled encoded body.
func (h *MockHandler) Materialize(ctx context.Context) (*traffic.Response, error) {
	encoded, err := h.body.Encoded().Wait(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	res := traffic.NewResponse()
	res.StatusCode = h.def.Respond.Status
	for k, v := range h.def.Respond.Headers {
		res.Headers.Set(k, v)
	}
	res.Body = encoded
	return res, nil
}

// Close releases the body's throttle timer.
func (h *MockHandler) Close() { h.body.Close() }

func (h *MockHandler) contentEncoding() any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.def.Respond.Headers {
		if strings.EqualFold(k, "content-encoding") {
			return v
		}
	}
	return nil
}
