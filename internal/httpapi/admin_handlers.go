package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/permission"
)

type statusUpdateRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
	AdminNote       string `json:"adminNote"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type bulkUpdateRequest struct {
	RequestIDs      []string `json:"requestIds"`
	Status          string   `json:"status"`
	RejectionReason string   `json:"rejectionReason"`
	AdminNote       string   `json:"adminNote"`
}

type userStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

const defaultUserPageSize = 20

func reviewer(r *http.Request) permission.Reviewer {
	admin, _ := auth.AdminFromContext(r.Context())
	return permission.Reviewer{ID: admin.ID, Username: admin.Username}
}

func (a *API) listPermissionRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page "+err.Error())
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), permission.DefaultPageSize, permission.MaxPageSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	filter := permission.Filter{
		Status:   permission.Status(strings.TrimSpace(q.Get("status"))),
		Role:     auth.Role(strings.TrimSpace(q.Get("role"))),
		Priority: permission.Priority(strings.TrimSpace(q.Get("priority"))),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	result, err := a.engine.ListForAdmin(r.Context(), filter, page, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", result)
}

func (a *API) getPermissionRequest(w http.ResponseWriter, r *http.Request) {
	req, err := a.engine.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", req)
}

func (a *API) setPermissionRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")
	updated, err := a.engine.SetStatus(r.Context(), id, reviewer(r), body.Status, body.RejectionReason, body.AdminNote)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "permission.status", map[string]any{
		"request_id": id,
		"status":     updated.Status,
		"user_id":    updated.UserID,
	})
	writeSuccess(w, http.StatusOK, "Permission request "+string(updated.Status)+" successfully", updated)
}

func (a *API) addPermissionRequestNote(w http.ResponseWriter, r *http.Request) {
	var body noteRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")
	updated, err := a.engine.AddNote(r.Context(), id, reviewer(r), body.Note)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "permission.note", map[string]any{"request_id": id})
	writeSuccess(w, http.StatusOK, "Admin note added successfully", updated)
}

func (a *API) bulkUpdatePermissionRequests(w http.ResponseWriter, r *http.Request) {
	var body bulkUpdateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.engine.BulkSetStatus(r.Context(), body.RequestIDs, reviewer(r), body.Status, body.RejectionReason, body.AdminNote)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "permission.bulk_status", map[string]any{
		"request_ids": body.RequestIDs,
		"status":      body.Status,
		"modified":    result.ModifiedCount,
	})
	writeSuccess(w, http.StatusOK,
		strconv.Itoa(result.ModifiedCount)+" permission requests updated successfully", result)
}

func (a *API) permissionRequestStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.Stats(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}

type userPage struct {
	Users      []auth.AccountView `json:"users"`
	Pagination struct {
		CurrentPage int  `json:"currentPage"`
		TotalPages  int  `json:"totalPages"`
		TotalUsers  int  `json:"totalUsers"`
		HasNext     bool `json:"hasNext"`
		HasPrev     bool `json:"hasPrev"`
	} `json:"pagination"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page "+err.Error())
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), defaultUserPageSize, permission.MaxPageSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	filter := auth.AccountFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		role, ok := auth.ParseRole(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "Invalid role")
			return
		}
		filter.Role = role
	}
	if raw := strings.TrimSpace(q.Get("isActive")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "isActive must be true or false")
			return
		}
		filter.Active = &active
	}

	users, total, err := a.auth.ListAccounts(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	var out userPage
	out.Users = users
	out.Pagination.CurrentPage = page
	out.Pagination.TotalPages = (total + limit - 1) / limit
	out.Pagination.TotalUsers = total
	out.Pagination.HasNext = page < out.Pagination.TotalPages
	out.Pagination.HasPrev = page > 1
	writeSuccess(w, http.StatusOK, "", out)
}

func (a *API) setUserStatus(w http.ResponseWriter, r *http.Request) {
	var body userStatusRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if body.IsActive == nil {
		writeError(w, r, http.StatusBadRequest, "isActive is required")
		return
	}
	id := r.PathValue("id")
	view, err := a.auth.SetAccountActive(r.Context(), id, *body.IsActive)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "admin.user.status", map[string]any{"account_id": id, "active": *body.IsActive})
	writeSuccess(w, http.StatusOK, "User status updated successfully", view)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.auth.DeleteAccount(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "admin.user.delete", map[string]any{"account_id": id})
	writeSuccess(w, http.StatusOK, "User deleted successfully", nil)
}
