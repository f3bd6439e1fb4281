// Copyright (c) 2026 Registra. All rights reserved.

// HTTP delivery layer for the identity domain.
//
// # Architecture
//
// The handler acts as a thin mediation layer between the web and the domain
// service:
//   - Protocol: Standard RESTful JSON interface.
//   - Security: Handles JWT orchestration and access token cookie injection.
//   - Verification: Enforces strict input validation before passing to [Service].
//
// This layer is strictly responsible for transport concerns (status codes,
// headers, JSON).

package identity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/registra/registra/internal/platform/middleware"
	requestutil "github.com/registra/registra/internal/platform/request"
	"github.com/registra/registra/internal/platform/respond"
	"github.com/registra/registra/internal/platform/sec"
	"github.com/registra/registra/internal/platform/validate"
	"github.com/registra/registra/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements the identity HTTP endpoints.
//
// # Scope
//
// This handler manages the account lifecycle entry points (registration,
// login, password management) and the staff-facing account administration
// routes.
type Handler struct {
	identityService *Service
	tokenVerifier   middleware.TokenVerifier
	cookies         CookiePolicy
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, verifier middleware.TokenVerifier, cookies CookiePolicy) *Handler {
	return &Handler{
		identityService: service,
		tokenVerifier:   verifier,
		cookies:         cookies,
	}
}

// Routes returns a [chi.Router] with the authentication lifecycle routes.
//
// # Endpoints
//   - POST /register        : Creates a new account and signs it in.
//   - POST /login           : Authenticates and returns a JWT.
//   - POST /logout          : Clears the access token cookie.
//   - POST /forgot-password : Starts the password recovery flow.
//   - POST /reset-password  : Completes the password recovery flow.
//   - GET  /me              : Returns the authenticated identity.
//   - POST /change-password : Rotates the caller's own password.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/logout", handler.logout)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(protected chi.Router) {
		protected.Use(middleware.Authenticate(handler.tokenVerifier, handler.identityService))
		protected.Get("/me", handler.me)
		protected.Post("/change-password", handler.changePassword)
	})

	return router
}

// AccountRoutes returns a [chi.Router] with the account administration routes.
//
// # Endpoints
//   - GET   /                        : Lists accounts (staff, admin).
//   - GET   /{accountID}             : Fetches one account (self, staff, admin).
//   - POST  /{accountID}/password    : Overwrites a password (admin).
//   - PATCH /{accountID}/activate    : Re-enables an account (admin).
//   - PATCH /{accountID}/deactivate  : Disables an account (admin).
func (handler *Handler) AccountRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Authenticate(handler.tokenVerifier, handler.identityService))

	router.Group(func(staff chi.Router) {
		staff.Use(middleware.StaffOrAdmin())
		staff.Get("/", handler.listAccounts)
	})

	router.Group(func(selfOrStaff chi.Router) {
		selfOrStaff.Use(middleware.RequireSelfOrRole(FieldAccountID, sec.RoleStaff, sec.RoleAdmin))
		selfOrStaff.Get("/{accountID}", handler.getAccount)
	})

	router.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly())
		admin.Post("/{accountID}/password", handler.adminResetPassword)
		admin.Patch("/{accountID}/activate", handler.activate)
		admin.Patch("/{accountID}/deactivate", handler.deactivate)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type adminResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// validatePassword applies the shared password policy to one field.
func validatePassword(validator *validate.Validator, field, value string) {
	validator.Required(field, value).
		MinLen(field, value, PasswordMinLen).
		MaxLen(field, value, PasswordMaxLen)
}

// # Authentication Lifecycle

/*
Register handles the creation of a new account.

POST /api/v1/auth/register

Description: Validates input, checks for identity conflicts, persists a new
account, and signs the caller in immediately.

Request:
  - Body: registerRequest (Email, Password, Role?, FirstName, LastName)

Response:
  - 201: {user, token}: Created account plus access token
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		MaxLen(FieldEmail, input.Email, EmailMaxLen).
		MaxLen(FieldFirstName, input.FirstName, NameMaxLen).
		MaxLen(FieldLastName, input.LastName, NameMaxLen)
	validatePassword(validator, FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.identityService.Register(request.Context(), RegisterInput{
		Email:     input.Email,
		Password:  input.Password,
		Role:      input.Role,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.Write(writer, session.Token)
	respond.Created(writer, map[string]any{
		FieldUser:  session.Account,
		FieldToken: session.Token,
	})
}

/*
Login authenticates an account and issues an access token.

POST /api/v1/auth/login

Description: Verifies credentials, generates a JWT, and injects a secure
access token cookie into the response.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: {user, token}: Access token and account profile
  - 401: ErrUnauthorized: Invalid credentials or deactivated account
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.identityService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.Write(writer, session.Token)
	respond.OK(writer, map[string]any{
		FieldUser:  session.Account,
		FieldToken: session.Token,
	})
}

/*
Logout clears the access token cookie.

POST /api/v1/auth/logout

Description: Tokens are stateless, so logout is purely a client-side cookie
removal. Always succeeds, signed in or not.

Response:
  - 204: No Content: Cookie cleared
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	handler.cookies.Clear(writer)
	respond.NoContent(writer)
}

/*
Me returns the authenticated caller's identity.

GET /api/v1/auth/me

Response:
  - 200: sec.Identity: The current identity
  - 401: ErrUnauthorized: Missing or invalid token
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, identity)
}

// # Password Management

/*
ChangePassword rotates the caller's own password.

POST /api/v1/auth/change-password

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success message
  - 401: ErrUnauthorized: Wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword)
	validatePassword(validator, FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.identityService.ChangePassword(request.Context(), identity.ID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "Password changed successfully")
}

/*
ForgotPassword starts the password recovery flow.

POST /api/v1/auth/forgot-password

Description: Responds with the same message whether or not the email is
registered, so the endpoint cannot be used for enumeration.

Request:
  - Body: forgotPasswordRequest (Email)

Response:
  - 200: Generic acknowledgement
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if _, err := handler.identityService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "If the email is registered, a reset link has been sent")
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success message
  - 404: ErrNotFound: Unknown or expired token
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token)
	validatePassword(validator, FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.RedeemPasswordReset(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "Password has been reset")
}

// # Account Administration

/*
ListAccounts returns one page of accounts.

GET /api/v1/accounts

Response:
  - 200: Paginated []Account
  - 403: ErrForbidden: Caller is not staff or admin
*/
func (handler *Handler) listAccounts(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	accounts, total, err := handler.identityService.ListAccounts(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, accounts, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GetAccount fetches a single account.

GET /api/v1/accounts/{accountID}

Response:
  - 200: Account
  - 403: ErrForbidden: Caller is neither the subject nor staff/admin
  - 404: ErrNotFound: No such account
*/
func (handler *Handler) getAccount(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.IntParam(request, FieldAccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.identityService.GetAccount(request.Context(), accountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

/*
AdminResetPassword overwrites an account's password.

POST /api/v1/accounts/{accountID}/password

Request:
  - Body: adminResetPasswordRequest (NewPassword)

Response:
  - 200: Success message
  - 404: ErrNotFound: No such account
*/
func (handler *Handler) adminResetPassword(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.IntParam(request, FieldAccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input adminResetPasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validatePassword(validator, FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.ResetPassword(request.Context(), accountID, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, "Password has been reset")
}

/*
Activate re-enables a deactivated account. Idempotent.

PATCH /api/v1/accounts/{accountID}/activate

Response:
  - 200: Success message
  - 404: ErrNotFound: No such account
*/
func (handler *Handler) activate(writer http.ResponseWriter, request *http.Request) {
	handler.setActive(writer, request, true, "Account activated")
}

/*
Deactivate disables an account. Idempotent; the account loses access on its
very next request even if it still holds a valid token.

PATCH /api/v1/accounts/{accountID}/deactivate

Response:
  - 200: Success message
  - 404: ErrNotFound: No such account
*/
func (handler *Handler) deactivate(writer http.ResponseWriter, request *http.Request) {
	handler.setActive(writer, request, false, "Account deactivated")
}

// setActive is the shared implementation of activate and deactivate.
func (handler *Handler) setActive(writer http.ResponseWriter, request *http.Request, active bool, message string) {
	accountID, err := requestutil.IntParam(request, FieldAccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.SetActive(request.Context(), accountID, active); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer, message)
}
