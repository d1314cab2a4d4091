package executor

import (
	"context"

	"github.com/paimy-ai/paimy/pkg/protocol"
)

type requesterKey struct{}

// WithRequester returns a context carrying the identity tools act for.
func WithRequester(ctx context.Context, r protocol.Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFrom returns the identity stored by WithRequester.
func RequesterFrom(ctx context.Context) protocol.Requester {
	r, _ := ctx.Value(requesterKey{}).(protocol.Requester)
	return r
}
