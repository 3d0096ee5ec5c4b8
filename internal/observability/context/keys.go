package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	actorRoleKey contextKey = "observability_actor_role"
	actorIDKey   contextKey = "observability_actor_id"
	runIDKey     contextKey = "observability_run_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithActor(ctx context.Context, role, actorID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if role != "" {
		ctx = context.WithValue(ctx, actorRoleKey, role)
	}
	if actorID != "" {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	role, _ := ctx.Value(actorRoleKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return role, actorID
}

// WithRunID tags the context with the billing run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(runIDKey).(string)
	return value
}
