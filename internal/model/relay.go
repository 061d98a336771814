// Package model defines shared types for the proxy.
package model

import (
	"context"
)

// RelayRequest is one inbound relay transaction: fetch Target on the caller's behalf.
type RelayRequest struct {
	Ctx    context.Context
	Target string
}

// RelayResponse is the fully buffered upstream response.
// StatusCode is kept for logging and metrics only; the client always sees 200.
type RelayResponse struct {
	StatusCode int
	Body       []byte
}
