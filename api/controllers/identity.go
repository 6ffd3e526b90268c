package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/forkline/forkline-backend/api/middleware"
	"github.com/forkline/forkline-backend/internal/orders"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

// ownerFromRequest resolves the authenticated purchaser from the request
// context seeded by the auth middleware.
func ownerFromRequest(r *http.Request) (orders.Owner, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return orders.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return orders.Owner{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	email := middleware.UserEmailFromContext(r.Context())
	if email == "" {
		return orders.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing email claim")
	}
	return orders.Owner{ID: userID, Email: email}, nil
}
