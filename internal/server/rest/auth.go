package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
)

const tokenType = "bearer"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.setRefreshCookie(w, res.RefreshToken)
	writeJSON(w, http.StatusCreated, authResponse{AccessToken: res.AccessToken, TokenType: tokenType, User: res.User})
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.setRefreshCookie(w, res.RefreshToken)
	writeJSON(w, http.StatusOK, authResponse{AccessToken: res.AccessToken, TokenType: tokenType, User: res.User})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := a.auth.Refresh(r.Context(), refreshCookie(r))
	if err != nil {
		a.clearRefreshCookie(w)
		a.fail(w, r, err)
		return
	}

	a.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, authResponse{AccessToken: pair.AccessToken, TokenType: tokenType})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context(), refreshCookie(r)); err != nil {
		a.fail(w, r, err)
		return
	}

	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	if err := a.auth.LogoutAll(r.Context(), claims.UserID); err != nil {
		a.fail(w, r, err)
		return
	}

	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	user, err := a.auth.Me(r.Context(), claims.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) sessions(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	tokens, err := a.auth.Sessions(r.Context(), claims.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, sessionResponse{ID: t.ID.String(), CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt})
	}
	writeJSON(w, http.StatusOK, out)
}
