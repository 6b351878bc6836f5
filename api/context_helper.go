package api

import (
	"context"
	"time"

	"github.com/smart-grievance/grievance-api/lifecycle"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

type contextKey string

const actorContextKey contextKey = "actor"

// WithActor stores the authenticated actor on the request context
func WithActor(parent context.Context, actor lifecycle.Actor) context.Context {
	return context.WithValue(parent, actorContextKey, actor)
}

// ActorFromContext returns the authenticated actor stored by the auth middleware
func ActorFromContext(ctx context.Context) (lifecycle.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(lifecycle.Actor)
	return actor, ok
}
