package httpapi

import (
	"net/http"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/care"
)

type sendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type markReadRequest struct {
	SenderID string `json:"senderId"`
}

func callerID(r *http.Request) string {
	acc, _ := auth.AccountFromContext(r.Context())
	return acc.ID
}

func (a *API) listAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := a.care.Appointments(r.Context(), callerID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", list)
}

func (a *API) createAppointment(w http.ResponseWriter, r *http.Request) {
	var in care.AppointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := a.care.CreateAppointment(r.Context(), callerID(r), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", appt)
}

func (a *API) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var patch care.AppointmentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := a.care.UpdateAppointment(r.Context(), callerID(r), r.PathValue("id"), patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", appt)
}

func (a *API) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := a.care.DeleteAppointment(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Appointment deleted", nil)
}

func (a *API) conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.care.Conversation(r.Context(), callerID(r), r.PathValue("otherUserId"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", msgs)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := a.care.SendMessage(r.Context(), callerID(r), req.RecipientID, req.Content, req.MessageType)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", msg)
}

func (a *API) markMessagesRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	n, err := a.care.MarkRead(r.Context(), callerID(r), req.SenderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]int{"markedCount": n})
}
