package llm

import "context"

type attributionKey struct{}

// PurposeExchange labels requests made for a participant's conversation turn.
const PurposeExchange = "exchange"

// attribution is what the logging decorator records alongside a request.
type attribution struct {
	purpose   string
	sessionID string
}

func attributionFrom(ctx context.Context) attribution {
	a, _ := ctx.Value(attributionKey{}).(attribution)
	return a
}

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	a := attributionFrom(ctx)
	a.purpose = purpose
	return context.WithValue(ctx, attributionKey{}, a)
}

// WithSession attributes requests made under ctx to a study session.
func WithSession(ctx context.Context, sessionID string) context.Context {
	a := attributionFrom(ctx)
	a.sessionID = sessionID
	return context.WithValue(ctx, attributionKey{}, a)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if p := attributionFrom(ctx).purpose; p != "" {
		return p
	}
	return "unknown"
}

// SessionFrom returns the study session the request belongs to, or "".
func SessionFrom(ctx context.Context) string {
	return attributionFrom(ctx).sessionID
}
