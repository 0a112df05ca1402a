package rest

import (
	"net/http"

	"github.com/dmitrijs2005/taskmanager/internal/common"
)

type userStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	page, err := a.admin.ListUsers(r.Context(), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	user, err := a.admin.GetUser(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) setUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var req userStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.IsActive == nil {
		a.fail(w, r, common.ErrValidation)
		return
	}

	claims, _ := claimsFrom(r.Context())
	user, err := a.admin.SetUserStatus(r.Context(), claims.UserID, id, *req.IsActive)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
