package identity

import "context"

// Roles recognized by the API surface.
const (
	RoleCustomer   = "customer"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// Actor identifies the authenticated caller of a request.
type Actor struct {
	ID    int64
	Name  string
	Email string
	Role  string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsTechnician() bool {
	return a.Role == RoleTechnician
}

func (a Actor) IsCustomer() bool {
	return a.Role == RoleCustomer
}

type actorKey struct{}

// WithActor annotates the context with the authenticated actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor attached to the context, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
