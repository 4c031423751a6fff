// Package auth implements the credential lifecycle: registration, login,
// logout, the explicit refresh-rotation endpoint, and the request gates
// that resolve an access token to an identity.
package auth

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/respond"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/token"
)

// Handler serves the auth endpoints and gates.
type Handler struct {
	signer        *token.Signer
	sessions      session.Store
	users         store.UserStore
	logger        *slog.Logger
	secureCookies bool
}

// NewHandler wires the auth endpoints.
func NewHandler(signer *token.Signer, sessions session.Store, users store.UserStore, logger *slog.Logger, secureCookies bool) *Handler {
	return &Handler{
		signer:        signer,
		sessions:      sessions,
		users:         users,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, h.logger, err, "path", r.URL.Path)
}

type registerRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	IsAdmin  bool        `json:"isAdmin"`
	Role     models.Role `json:"role"`
}

func (req *registerRequest) validate() error {
	if len(req.Username) < 3 {
		return apperr.New(apperr.Validation, "username must be at least 3 characters long")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperr.New(apperr.Validation, "invalid email address")
	}
	if len(req.Password) < 6 {
		return apperr.New(apperr.Validation, "password must be at least 6 characters long")
	}
	switch req.Role {
	case "", models.RoleCustomer, models.RoleAdmin:
		return nil
	default:
		return apperr.New(apperr.Validation, "unknown role")
	}
}

// Register creates an account and logs it straight in with a fresh token
// pair.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.validate(); err != nil {
		h.respondErr(w, r, err)
		return
	}

	taken, err := h.users.ExistsByEmailOrUsername(r.Context(), req.Email, req.Username)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if taken {
		h.respondErr(w, r, apperr.New(apperr.Validation, "user with this email or username already exists"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Internal, "registration failed", err))
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hash),
		IsAdmin:  req.IsAdmin,
		Role:     role,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			err = apperr.Wrap(apperr.Validation, "user with this email or username already exists", err)
		}
		h.respondErr(w, r, err)
		return
	}

	pair, err := h.startSession(w, r, user)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.logger.Info("user registered", "userId", user.ID.Hex())
	respond.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user":    user,
		"tokens":  pair,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies the password credential and issues a fresh token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "invalid email or password"))
			return
		}
		h.respondErr(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "invalid email or password"))
		return
	}

	pair, err := h.startSession(w, r, user)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.logger.Info("user logged in", "userId", user.ID.Hex())
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user": map[string]string{
			"id":       user.ID.Hex(),
			"username": user.Username,
			"email":    user.Email,
		},
		"tokens": pair,
	})
}

// startSession issues a pair, records the refresh token as the identity's
// single session-store entry, and installs the cookie carriers.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) (token.Pair, error) {
	pair, err := h.signer.Issue(user.ID.Hex())
	if err != nil {
		return token.Pair{}, apperr.Wrap(apperr.Internal, "token issuance failed", err)
	}
	if err := h.sessions.Put(r.Context(), user.ID.Hex(), pair.RefreshToken, h.signer.RefreshTTL()); err != nil {
		return token.Pair{}, err
	}
	setAuthCookies(w, pair, h.signer.AccessTTL(), h.signer.RefreshTTL(), h.secureCookies)
	return pair, nil
}

// Logout deletes the session-store entry and clears both carriers. The
// refresh token is decoded without signature verification so logout
// succeeds even for an expired token; the carriers are cleared no matter
// what.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := bearerOrCookie(r, RefreshCookie); refreshToken != "" {
		if identityID, err := token.DecodeSubject(refreshToken); err == nil {
			if err := h.sessions.Delete(r.Context(), identityID); err != nil {
				clearAuthCookies(w, h.secureCookies)
				h.respondErr(w, r, err)
				return
			}
			h.logger.Info("user logged out", "userId", identityID)
		}
	}

	clearAuthCookies(w, h.secureCookies)
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the token pair. The presented refresh token must verify
// and match the session store byte for byte; a superseded token fails the
// match, which is how replay after rotation is detected.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := bearerOrCookie(r, RefreshCookie)
	if refreshToken == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	if refreshToken == "" {
		h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "no refresh token provided"))
		return
	}

	identityID, err := h.signer.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	stored, err := h.sessions.Get(r.Context(), identityID)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			err = apperr.Wrap(apperr.Unauthenticated, "invalid refresh token", err)
		}
		h.respondErr(w, r, err)
		return
	}
	if !hmac.Equal([]byte(stored), []byte(refreshToken)) {
		h.logger.Warn("refresh token mismatch, possible replay", "userId", identityID)
		h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "invalid refresh token"))
		return
	}

	pair, err := h.signer.Issue(identityID)
	if err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Internal, "token issuance failed", err))
		return
	}
	// Overwriting is the rotation: the presented token stops matching the
	// store and dies here.
	if err := h.sessions.Put(r.Context(), identityID, pair.RefreshToken, h.signer.RefreshTTL()); err != nil {
		h.respondErr(w, r, err)
		return
	}
	setAuthCookies(w, pair, h.signer.AccessTTL(), h.signer.RefreshTTL(), h.secureCookies)

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Token refreshed",
		"tokens":  pair,
	})
}

// Profile returns the identity attached by RequireAuth.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "no access token provided"))
		return
	}
	respond.JSON(w, http.StatusOK, user)
}
