package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/permission"
)

// permissionRequestBody accepts the role details either nested under
// requestDetails or flat at the top level of the body.
type permissionRequestBody struct {
	RequestType    string                `json:"requestType"`
	RequestDetails json.RawMessage       `json:"requestDetails"`
	Documents      []permission.Document `json:"documents"`
	Priority       string                `json:"priority"`
	IsUrgent       *bool                 `json:"isUrgent"`
}

type submittedRequest struct {
	RequestID   string            `json:"requestId"`
	Status      permission.Status `json:"status"`
	SubmittedAt time.Time         `json:"submittedAt"`
}

func parsePermissionBody(raw json.RawMessage, role auth.Role) (permissionRequestBody, permission.Details, error) {
	var body permissionRequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return body, nil, err
	}
	src := body.RequestDetails
	if len(src) == 0 || string(src) == "null" {
		src = raw
	}
	details, err := permission.DecodeDetails(role, src)
	if err != nil {
		return body, nil, err
	}
	return body, details, nil
}

func requester(r *http.Request) permission.Requester {
	acc, _ := auth.AccountFromContext(r.Context())
	return permission.Requester{ID: acc.ID, Email: acc.Email}
}

func (a *API) submitPermissionRequest(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := permission.ParseRole(string(role))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		raw, err := readJSONObject(w, r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		body, details, err := parsePermissionBody(raw, target)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		who := requester(r)
		sub := permission.Submission{
			RequestType: body.RequestType,
			Details:     details,
			Documents:   body.Documents,
			Priority:    body.Priority,
		}
		if body.IsUrgent != nil {
			sub.IsUrgent = *body.IsUrgent
		}
		req, err := a.engine.Submit(r.Context(), who, target, sub)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		a.record(r.Context(), "permission.submit", map[string]any{
			"request_id": req.ID,
			"role":       target,
		})
		writeSuccess(w, http.StatusCreated, "Permission request submitted successfully", submittedRequest{
			RequestID:   req.ID,
			Status:      req.Status,
			SubmittedAt: req.CreatedAt,
		})
	}
}

func (a *API) listOwnPermissionRequests(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		list, err := a.engine.ListOwn(r.Context(), who.ID, role)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		if list == nil {
			list = []permission.Request{}
		}
		writeSuccess(w, http.StatusOK, "", list)
	}
}

func (a *API) getOwnPermissionRequest(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		req, err := a.engine.GetOwn(r.Context(), r.PathValue("id"), who.ID, role)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, "", req)
	}
}

func (a *API) updatePermissionRequest(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := permission.ParseRole(string(role))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		raw, err := readJSONObject(w, r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		body, details, err := parsePermissionBody(raw, target)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		who := requester(r)
		id := r.PathValue("id")
		updated, err := a.engine.Update(r.Context(), id, who.ID, target, permission.Patch{
			Details:   details,
			Documents: body.Documents,
			Priority:  body.Priority,
			IsUrgent:  body.IsUrgent,
		})
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		a.record(r.Context(), "permission.update", map[string]any{"request_id": id})
		writeSuccess(w, http.StatusOK, "Permission request updated successfully", updated)
	}
}

func (a *API) cancelPermissionRequest(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		id := r.PathValue("id")
		if err := a.engine.Cancel(r.Context(), id, who.ID, role); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		a.record(r.Context(), "permission.cancel", map[string]any{"request_id": id})
		writeSuccess(w, http.StatusOK, "Permission request cancelled successfully", nil)
	}
}
