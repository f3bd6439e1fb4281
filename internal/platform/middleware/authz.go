// Copyright (c) 2026 Registra. All rights reserved.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/registra/registra/internal/platform/apperr"
	"github.com/registra/registra/internal/platform/constants"
	"github.com/registra/registra/internal/platform/ctxutil"
	"github.com/registra/registra/internal/platform/respond"
	"github.com/registra/registra/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify access tokens.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the guard from the token codec
// implementation, allowing tests to inject codecs with distinct secrets.
type TokenVerifier interface {
	Verify(tokenString string) (*sec.AccessClaims, error)
}

// IdentityResolver re-resolves the current account state by ID.
//
// The authentication guard never trusts the email/role embedded in a token as
// current truth — only the ID is trusted as a lookup key. Implementations must
// return an UNAUTHORIZED [apperr.AppError] when the account no longer exists
// or has been deactivated.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accountID int64) (*sec.Identity, error)
}

// # Credential Extraction

// ExtractToken pulls a candidate access token out of an inbound request.
//
// # Precedence
//  1. 'Authorization: Bearer <token>' header, if syntactically well-formed.
//  2. The access_token cookie.
//
// The boolean result distinguishes "no credential presented" from an empty
// token: absence is rejected by the guard before the codec is ever invoked.
func ExtractToken(request *http.Request) (string, bool) {

	// 1. Bearer header wins when present and well-formed
	authHeader := request.Header.Get(constants.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], true
		}
	}

	// 2. Cookie channel for browser clients
	cookie, err := request.Cookie(constants.AccessTokenCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}

// # Authentication Guard

// Authenticate verifies the request credential and binds the resolved identity.
//
// # Flow
//  1. Extract the token (bearer header, then cookie). Absent → 401.
//  2. Verify signature and expiry via [TokenVerifier]. Malformed and expired
//     tokens are rejected with distinct messages.
//  3. Re-resolve the account from the store via [IdentityResolver]. A token
//     stays syntactically valid until expiry even if the account was
//     deactivated or deleted in the interim; this lookup closes that gap at
//     the cost of one store read per request.
//  4. Bind the normalized [*sec.Identity] into the request context.
//
// The guard is stateless across requests and never partially applies an
// effect: a rejected request produces no state mutation.
func Authenticate(verifier TokenVerifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			identity, err := resolveRequestIdentity(request, verifier, resolver)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// AuthenticateOptional runs the same pipeline as [Authenticate] but treats any
// failure as "proceed without identity".
//
// # Usage
//
// For endpoints that behave differently for authenticated vs. anonymous
// callers but never require authentication.
func AuthenticateOptional(verifier TokenVerifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			identity, err := resolveRequestIdentity(request, verifier, resolver)
			if err != nil {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// resolveRequestIdentity executes the per-request authentication state machine.
//
// Every terminal rejection is an UNAUTHORIZED [apperr.AppError]; the message
// distinguishes the failure stage for the client without leaking internals.
func resolveRequestIdentity(request *http.Request, verifier TokenVerifier, resolver IdentityResolver) (*sec.Identity, error) {

	// ── 1. Credential Extraction ──────────────────────────────────────────
	tokenString, present := ExtractToken(request)
	if !present {
		return nil, apperr.Unauthorized("Access token required")
	}

	// ── 2. Token Verification ─────────────────────────────────────────────
	claims, err := verifier.Verify(tokenString)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Token expired")
		}
		return nil, apperr.Unauthorized("Invalid token")
	}

	// ── 3. Account Re-Resolution ──────────────────────────────────────────
	identity, err := resolver.ResolveIdentity(request.Context(), claims.AccountID)
	if err != nil {
		if appError := apperr.As(err); appError != nil && appError.HTTPStatus == http.StatusUnauthorized {
			return nil, err
		}
		// Store failures and anything unclassified stay internal.
		return nil, apperr.Internal(err)
	}

	return identity, nil
}

// # Authorization Guard

// RequireRole blocks requests whose bound identity's role is not in the
// allowed set.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if a [*sec.Identity] exists in context. Missing → HTTP 401.
//  2. Check set membership of the identity's role. Outside the set → HTTP 403.
func RequireRole(allowed ...sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			identity := ctxutil.GetIdentity(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────
			if identity == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────
			if !identity.Role.In(allowed...) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// AdminOnly is the preset guard for administrative routes.
func AdminOnly() func(http.Handler) http.Handler {
	return RequireRole(sec.RoleAdmin)
}

// StaffOrAdmin is the preset guard for back-office routes.
func StaffOrAdmin() func(http.Handler) http.Handler {
	return RequireRole(sec.RoleStaff, sec.RoleAdmin)
}

// RequireSelfOrRole allows a request when the caller's own account ID matches
// the named URL parameter, OR when the caller's role is in the allowed set.
//
// # Usage
//
// For routes where a student may act on their own records but not others',
// while staff and admins retain full access:
//
//	r.With(middleware.RequireSelfOrRole("accountID", sec.RoleStaff, sec.RoleAdmin)).
//	    Get("/{accountID}", handler.getAccount)
func RequireSelfOrRole(urlParam string, allowed ...sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			identity := ctxutil.GetIdentity(request.Context())
			if identity == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// Ownership: the caller operating on their own resource is
			// admissible regardless of role.
			resourceID, err := strconv.ParseInt(chi.URLParam(request, urlParam), 10, 64)
			if err == nil && resourceID == identity.ID {
				next.ServeHTTP(writer, request)
				return
			}

			if !identity.Role.In(allowed...) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
