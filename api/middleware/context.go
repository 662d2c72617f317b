package middleware

import "context"

type actorKey struct{}

// Actor is the authenticated caller attached by Auth.
type Actor struct {
	UserID string
	Role   string
}

// WithActor stores the caller on ctx for downstream middleware and handlers.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller and whether Auth ran for this request.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}

func RoleFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}
