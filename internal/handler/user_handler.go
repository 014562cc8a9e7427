package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/middleware"
	"github.com/riteshkumar/peer-transfers/internal/models"
	"github.com/riteshkumar/peer-transfers/internal/service"
	u "github.com/riteshkumar/peer-transfers/internal/utils"
)

// CookieOptions controls the session cookies set at login and refresh.
type CookieOptions struct {
	Secure     bool
	AccessTTL  int
	RefreshTTL int
}

type UserHandler struct {
	accountService service.AccountService
	authService    service.AuthService
	cookies        CookieOptions
	logger         *slog.Logger
}

func NewUserHandler(accountService service.AccountService, authService service.AuthService, cookies CookieOptions, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		accountService: accountService,
		authService:    authService,
		cookies:        cookies,
		logger:         logger,
	}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router, authn mux.MiddlewareFunc) {
	router.HandleFunc("/user/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/user/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/user/refresh-token", h.RefreshToken).Methods(http.MethodPost)
	router.Handle("/user/logout", authn(http.HandlerFunc(h.Logout))).Methods(http.MethodPost)
	router.Handle("/user/me", authn(http.HandlerFunc(h.Me))).Methods(http.MethodGet)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, h.logger, &req, "register") {
		return
	}

	account, err := h.accountService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "register")
		return
	}

	u.WriteJSON(w, http.StatusCreated, account)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, h.logger, &req, "login") {
		return
	}

	session, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "login")
		return
	}

	h.writeSession(w, session)
}

// RefreshToken reads the refresh token from its cookie, falling back to the
// request body.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req models.RefreshRequest
		if !decodeJSON(w, r, h.logger, &req, "refresh token") {
			return
		}
		token = req.RefreshToken
	}

	session, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err, "refresh token")
		return
	}

	h.writeSession(w, session)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	if err := h.authService.Logout(r.Context(), principal.UserID); err != nil {
		writeServiceError(w, h.logger, err, "logout")
		return
	}

	h.setCookie(w, middleware.AccessTokenCookie, "", -1)
	h.setCookie(w, middleware.RefreshTokenCookie, "", -1)
	u.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), principal.UserID)
	if err != nil {
		if errors.IsNotFound(err) {
			// The token outlived its account.
			u.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, errors.ErrInvalidToken.Error())
			return
		}
		writeServiceError(w, h.logger, err, "get current user")
		return
	}

	u.WriteJSON(w, http.StatusOK, account)
}

func (h *UserHandler) writeSession(w http.ResponseWriter, session *models.Session) {
	h.setCookie(w, middleware.AccessTokenCookie, session.AccessToken, h.cookies.AccessTTL)
	h.setCookie(w, middleware.RefreshTokenCookie, session.RefreshToken, h.cookies.RefreshTTL)
	u.WriteJSON(w, http.StatusOK, models.SessionResponse{
		User:        session.Account,
		AccessToken: session.AccessToken,
	})
}

func (h *UserHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
