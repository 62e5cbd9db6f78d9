package model

import "mockbody/pkg/traffic"

// ResolveResult is the outcome of matching a request description against a
// session's handlers.
type ResolveResult struct {
	Matched  bool              `json:"matched"`
	Handler  HandlerID         `json:"handler,omitempty"`
	Response *traffic.Response `json:"response,omitempty"`
}
