package httpapi

import (
	"net/http"
	"strings"

	"mamacare.app/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.Register(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "auth.register", map[string]any{
		"account_id": session.Account.ID,
		"role":       session.Account.Role,
	})
	writeSuccess(w, http.StatusCreated, "User registered successfully", session)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.record(r.Context(), "auth.login.failed", map[string]any{
			"email":  strings.ToLower(strings.TrimSpace(req.Email)),
			"reason": err.Error(),
		})
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "auth.login", map[string]any{"account_id": session.Account.ID})
	writeSuccess(w, http.StatusOK, "Login successful", session)
}

// logout is a stateless acknowledgement; tokens expire on their own.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Logged out", nil)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	writeSuccess(w, http.StatusOK, "", acc.View())
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	var patch auth.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.auth.UpdateProfile(r.Context(), acc.ID, patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated successfully", view)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.ChangePassword(r.Context(), acc.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "auth.password.changed", map[string]any{"account_id": acc.ID})
	writeSuccess(w, http.StatusOK, "Password updated successfully", session)
}

func (a *API) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		a.record(r.Context(), "admin.login.failed", map[string]any{
			"email":  strings.ToLower(strings.TrimSpace(req.Email)),
			"reason": err.Error(),
		})
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "admin.login", map[string]any{"admin_id": session.Admin.ID})
	writeSuccess(w, http.StatusOK, "Admin login successful", session)
}

func (a *API) registerAdmin(w http.ResponseWriter, r *http.Request) {
	var req auth.NewAdmin
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.auth.CreateAdmin(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "admin.create", map[string]any{
		"admin_id": view.ID,
		"role":     view.Role,
	})
	writeSuccess(w, http.StatusCreated, "Admin registered successfully", view)
}

func (a *API) adminMe(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.AdminFromContext(r.Context())
	writeSuccess(w, http.StatusOK, "", admin.View())
}

func (a *API) changeAdminPassword(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.AdminFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangeAdminPassword(r.Context(), admin.ID, req.CurrentPassword, req.NewPassword); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "admin.password.changed", map[string]any{"admin_id": admin.ID})
	writeSuccess(w, http.StatusOK, "Password updated successfully", nil)
}
