package middleware

import (
	"context"
	"net/http"

	"tutoring-platform/internal/models"
	"tutoring-platform/pkg/response"

	"github.com/google/uuid"
)

// Actor identifies who is calling a booking endpoint. This bounded context
// does not own user accounts or sessions; identity and role are established
// upstream (gateway/session service) and forwarded as trusted headers once
// the request reaches this service.
type Actor struct {
	ID   uuid.UUID
	Role models.CancelledByRole
}

func (a Actor) IsAdmin() bool { return a.Role == models.CancelledByAdmin }

type actorContextKey struct{}

// ActorMiddleware reads X-User-Id/X-User-Role off the request and injects
// an Actor into the request context, rejecting requests missing either.
// Mirrors the teacher's context-injection shape (middleware.GetUserFromContext)
// but sources identity from forwarded headers instead of a cookie-backed
// session store, since sessions belong to a different service here.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idHeader := r.Header.Get("X-User-Id")
		roleHeader := r.Header.Get("X-User-Role")
		if idHeader == "" || roleHeader == "" {
			response.Unauthorized(w, "authentication required")
			return
		}

		actorID, err := uuid.Parse(idHeader)
		if err != nil {
			response.Unauthorized(w, "authentication required")
			return
		}

		role := models.CancelledByRole(roleHeader)
		switch role {
		case models.CancelledByStudent, models.CancelledByTutor, models.CancelledByAdmin:
		default:
			response.Unauthorized(w, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey{}, Actor{ID: actorID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor returns the Actor injected by ActorMiddleware.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
