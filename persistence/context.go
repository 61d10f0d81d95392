package persistence

import "context"

type actorKey struct{}
type systemKey struct{}

// WithActor records who performs the writes made with ctx. Create stamps
// CreatedBy and UpdatedBy, updates stamp UpdatedBy, on models that have them.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by [WithActor].
func ActorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}

// SystemContext returns a child of ctx on which tenant enforcement is skipped.
// It exists for migrations and other cross-tenant maintenance.
func SystemContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemKey{}, true)
}

func isSystem(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(systemKey{}).(bool)
	return v
}
