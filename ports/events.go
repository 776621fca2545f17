package ports

import "context"

// EventPublisher notifies other instances about session lifecycle
// changes. Publishing is best-effort everywhere: a failed publish is
// logged by the caller and never fails the request.
type EventPublisher interface {
	PublishRevoked(ctx context.Context, subject, origin, reason string) error
	PublishRenewed(ctx context.Context, subject, origin string) error
}
