// Package model provides the model interface and provider clients.
package model

import "context"

// Model is a tool-capable chat model.
type Model interface {
	// Generate runs one inference call.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// IsAvailable checks if the model is configured and reachable.
	IsAvailable() bool

	// Name returns the model identifier.
	Name() string

	// Status returns the current status of the model.
	Status() *ModelStatus
}
