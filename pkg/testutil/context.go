package testutil

import (
	"net/http"
	"time"

	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

// WithUserID simulates the auth middleware for an authenticated caller.
func WithUserID(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithAuth sets both the caller and its role claim.
func WithAuth(req *http.Request, userID id.UserID, role string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithRequestTime pins requestcontext.Now for the request.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
