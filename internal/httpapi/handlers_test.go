package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/care"
	"mamacare.app/internal/permission"
	"mamacare.app/internal/relay"
	"mamacare.app/internal/store/memory"
	"mamacare.app/internal/validation"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	auth   *auth.Service
	engine *permission.Engine
	hub    *relay.Hub
}

type envelopeBody[T any] struct {
	Status    string                  `json:"status"`
	Message   string                  `json:"message"`
	Data      T                       `json:"data"`
	Errors    []validation.FieldError `json:"errors"`
	RequestID string                  `json:"requestId"`
}

// requestView mirrors permission.Request with the role-specific details left
// as a plain map.
type requestView struct {
	ID         string            `json:"id"`
	Status     permission.Status `json:"status"`
	UserEmail  string            `json:"userEmail"`
	Details    map[string]any    `json:"requestDetails"`
	AdminNotes []permission.Note `json:"adminNotes"`
}

type pageView struct {
	Requests   []requestView         `json:"requests"`
	Pagination permission.Pagination `json:"pagination"`
}

type sessionData struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user"`
	Admin map[string]any `json:"admin"`
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	data := memory.New()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	authSvc, err := auth.NewService(data, data, tokens, auth.WithHasher(auth.NewHasher(bcrypt.MinCost)))
	require.NoError(t, err)

	hub := relay.NewHub(nil)
	engine := permission.NewEngine(data, data, permission.WithRelay(hub))
	careSvc := care.NewService(data, data, care.WithRelay(hub))

	api := New(Deps{
		Auth:    authSvc,
		Engine:  engine,
		Care:    careSvc,
		Hub:     hub,
		Version: "test",
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		auth:    authSvc,
		engine:  engine,
		hub:     hub,
	}
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) registerAccount(email, role string) string {
	c.t.Helper()
	resp := c.post("/api/auth/register", map[string]any{
		"firstName": "Test",
		"lastName":  "User",
		"email":     email,
		"password":  "secret1",
		"role":      role,
	}, nil)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	body := decode[envelopeBody[sessionData]](c.t, resp)
	require.NotEmpty(c.t, body.Data.Token)
	return body.Data.Token
}

func (c *apiClient) adminToken() string {
	c.t.Helper()
	_, err := c.auth.CreateAdmin(context.Background(), auth.NewAdmin{
		Username: "root",
		Email:    "root@mamacare.test",
		Password: "adminpass",
		Role:     string(auth.AdminRoleSuper),
	})
	require.NoError(c.t, err)
	resp := c.post("/api/admin/login", map[string]any{"email": "root@mamacare.test", "password": "adminpass"}, nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	body := decode[envelopeBody[sessionData]](c.t, resp)
	require.NotEmpty(c.t, body.Data.Token)
	require.Equal(c.t, "root", body.Data.Admin["username"])
	return body.Data.Token
}

func (c *apiClient) submitDoctor(token, specialization string) string {
	c.t.Helper()
	resp := c.post("/api/doctor/permission-request", map[string]any{
		"specialization": specialization,
		"licenseNumber":  "MD-1",
		"reason":         "I run a prenatal clinic",
	}, bearerHeader(token))
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	body := decode[envelopeBody[submittedRequest]](c.t, resp)
	require.Equal(c.t, permission.StatusPending, body.Data.Status)
	require.NotEmpty(c.t, body.Data.RequestID)
	return body.Data.RequestID
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(r.Body).Decode(&v))
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)
	api.registerAccount("a@x.com", "doctor")

	resp := api.post("/api/auth/login", map[string]any{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[envelopeBody[sessionData]](t, resp)
	require.Equal(t, "success", login.Status)
	require.NotEmpty(t, login.Data.Token)
	require.Equal(t, "doctor", login.Data.User["role"])
	require.NotContains(t, login.Data.User, "password")
	require.NotContains(t, login.Data.User, "passwordHash")

	resp = api.post("/api/auth/login", map[string]any{"email": "a@x.com", "password": "wrong-password"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	failed := decode[envelopeBody[any]](t, resp)
	require.Equal(t, "error", failed.Status)
	require.NotEmpty(t, failed.RequestID)

	resp = api.get("/api/auth/me", nil, bearerHeader(login.Data.Token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[envelopeBody[map[string]any]](t, resp)
	require.Equal(t, "a@x.com", me.Data["email"])
	require.Equal(t, false, me.Data["isApproved"])
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/api/auth/register", map[string]any{"email": "not-an-email", "password": "123"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[envelopeBody[any]](t, resp)
	require.Equal(t, "Validation failed", body.Message)
	fields := map[string]bool{}
	for _, fe := range body.Errors {
		fields[fe.Field] = true
	}
	require.True(t, fields["email"])
	require.True(t, fields["password"])
	require.True(t, fields["firstName"])

	api.registerAccount("dup@x.com", "mom")
	resp = api.post("/api/auth/register", map[string]any{
		"firstName": "Other", "lastName": "User", "email": "DUP@x.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode[envelopeBody[any]](t, resp)
	require.Equal(t, "User with this email already exists", body.Message)
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	api := newTestAPI(t)
	api.registerAccount("lock@x.com", "mom")

	for i := 0; i < 5; i++ {
		resp := api.post("/api/auth/login", map[string]any{"email": "lock@x.com", "password": "nope-nope"}, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
	resp := api.post("/api/auth/login", map[string]any{"email": "lock@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	resp.Body.Close()
}

func TestPermissionWorkflow(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.registerAccount("doc@x.com", "doctor")
	admin := api.adminToken()

	id := api.submitDoctor(doctor, "Cardiology")

	resp := api.post("/api/doctor/permission-request", map[string]any{"specialization": "Oncology"}, bearerHeader(doctor))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	dup := decode[envelopeBody[any]](t, resp)
	require.Equal(t, "You already have a pending permission request for this role", dup.Message)

	resp = api.get("/api/admin/permission-request/"+id, nil, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[envelopeBody[map[string]any]](t, resp)
	details := got.Data["requestDetails"].(map[string]any)
	require.Equal(t, "Cardiology", details["specialization"])
	require.Equal(t, "MD-1", details["licenseNumber"])
	require.Equal(t, "doc@x.com", got.Data["userEmail"])

	resp = api.put("/api/admin/permission-request/"+id+"/status", map[string]any{
		"status":    "approved",
		"adminNote": "license verified",
	}, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decode[envelopeBody[map[string]any]](t, resp)
	require.Equal(t, "approved", approved.Data["status"])
	require.Len(t, approved.Data["adminNotes"], 1)
	api.engine.Wait()

	resp = api.get("/api/auth/me", nil, bearerHeader(doctor))
	me := decode[envelopeBody[map[string]any]](t, resp)
	require.Equal(t, true, me.Data["isApproved"])

	second := api.submitDoctor(doctor, "Cardiology")
	require.NotEqual(t, id, second)

	resp = api.get("/api/doctor/permission-requests", nil, bearerHeader(doctor))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	own := decode[envelopeBody[[]requestView]](t, resp)
	require.Len(t, own.Data, 2)
	statuses := map[string]permission.Status{}
	for _, r := range own.Data {
		statuses[r.ID] = r.Status
	}
	require.Equal(t, permission.StatusApproved, statuses[id])
	require.Equal(t, permission.StatusPending, statuses[second])
}

func TestNestedRequestDetailsAndUpdate(t *testing.T) {
	api := newTestAPI(t)
	midwife := api.registerAccount("mw@x.com", "midwife")

	resp := api.post("/api/midwife/permission-request", map[string]any{
		"requestDetails": map[string]any{"certificationNumber": "CM-77", "clinic": "Harbor"},
		"priority":       "high",
		"isUrgent":       true,
		"documents":      []map[string]any{{"name": "cert.pdf", "url": "https://files.example/cert.pdf"}},
	}, bearerHeader(midwife))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[envelopeBody[submittedRequest]](t, resp).Data.RequestID

	resp = api.put("/api/midwife/permission-request/"+id, map[string]any{"clinic": "Lakeside"}, bearerHeader(midwife))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[envelopeBody[map[string]any]](t, resp)
	details := updated.Data["requestDetails"].(map[string]any)
	require.Equal(t, "CM-77", details["certificationNumber"])
	require.Equal(t, "Lakeside", details["clinic"])
	require.Equal(t, "high", updated.Data["priority"])
	require.Equal(t, true, updated.Data["isUrgent"])
	require.Len(t, updated.Data["documents"], 1)

	resp = api.get("/api/midwife/permission-request/"+id, nil, bearerHeader(midwife))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.get("/api/doctor/permission-request/"+id, nil, bearerHeader(midwife))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelRequiresPending(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.registerAccount("cancel@x.com", "doctor")
	admin := api.adminToken()

	id := api.submitDoctor(doctor, "Pediatrics")
	resp := api.put("/api/admin/permission-request/"+id+"/status", map[string]any{"status": "under_review"}, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/api/doctor/permission-request/"+id, nil, bearerHeader(doctor))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = api.get("/api/doctor/permission-request/"+id, nil, bearerHeader(doctor))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	other := api.registerAccount("cancel2@x.com", "doctor")
	id2 := api.submitDoctor(other, "Pediatrics")
	resp = api.do(http.MethodDelete, "/api/doctor/permission-request/"+id2, nil, bearerHeader(other))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = api.get("/api/doctor/permission-request/"+id2, nil, bearerHeader(other))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestBulkUpdateThenFilter(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminToken()

	var ids []string
	for _, email := range []string{"b1@x.com", "b2@x.com", "b3@x.com"} {
		ids = append(ids, api.submitDoctor(api.registerAccount(email, "doctor"), "Obstetrics"))
	}
	api.submitDoctor(api.registerAccount("b4@x.com", "doctor"), "Obstetrics")

	resp := api.put("/api/admin/permission-requests/bulk-update", map[string]any{
		"requestIds": ids,
		"status":     "under_review",
	}, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bulk := decode[envelopeBody[permission.BulkResult]](t, resp)
	require.Equal(t, 3, bulk.Data.ModifiedCount)
	require.Equal(t, 3, bulk.Data.RequestedCount)

	resp = api.get("/api/admin/permission-requests", url.Values{"status": []string{"under_review"}}, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[envelopeBody[pageView]](t, resp)
	require.Equal(t, 3, page.Data.Pagination.TotalRequests)
	got := map[string]bool{}
	for _, r := range page.Data.Requests {
		require.Equal(t, permission.StatusUnderReview, r.Status)
		got[r.ID] = true
	}
	for _, id := range ids {
		require.True(t, got[id], "missing %s", id)
	}

	resp = api.get("/api/admin/permission-requests/stats", nil, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[envelopeBody[permission.Stats]](t, resp)
	require.Equal(t, 4, stats.Data.Total)
	require.Equal(t, 3, stats.Data.ByStatus[permission.StatusUnderReview])
	require.Equal(t, 1, stats.Data.ByStatus[permission.StatusPending])

	resp = api.put("/api/admin/permission-requests/bulk-update", map[string]any{
		"requestIds": []string{},
		"status":     "approved",
	}, bearerHeader(admin))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminNotesAreAppended(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminToken()
	id := api.submitDoctor(api.registerAccount("n@x.com", "doctor"), "Cardiology")

	for i := 0; i < 2; i++ {
		resp := api.post("/api/admin/permission-request/"+id+"/notes", map[string]any{"note": "call back"}, bearerHeader(admin))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
	resp := api.get("/api/admin/permission-request/"+id, nil, bearerHeader(admin))
	got := decode[envelopeBody[requestView]](t, resp)
	require.Len(t, got.Data.AdminNotes, 2)
	require.Equal(t, "root", got.Data.AdminNotes[0].AdminUsername)

	resp = api.post("/api/admin/permission-request/"+id+"/notes", map[string]any{"note": "  "}, bearerHeader(admin))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	blank := decode[envelopeBody[any]](t, resp)
	require.Equal(t, "Validation failed", blank.Message)
	require.Len(t, blank.Errors, 1)
	require.Equal(t, "note", blank.Errors[0].Field)
}

func TestInvalidPriorityIsAFieldError(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.registerAccount("prio@x.com", "doctor")

	resp := api.post("/api/doctor/permission-request", map[string]any{
		"specialization": "Cardiology",
		"priority":       "whenever",
	}, bearerHeader(doctor))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[envelopeBody[any]](t, resp)
	require.Equal(t, "Validation failed", body.Message)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "priority", body.Errors[0].Field)

	id := api.submitDoctor(doctor, "Cardiology")
	resp = api.put("/api/doctor/permission-request/"+id, map[string]any{"priority": "asap"}, bearerHeader(doctor))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode[envelopeBody[any]](t, resp)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "priority", body.Errors[0].Field)
}

func TestAuthBoundaries(t *testing.T) {
	api := newTestAPI(t)
	user := api.registerAccount("u@x.com", "mom")
	admin := api.adminToken()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/auth/me", "not-a-jwt", http.StatusUnauthorized},
		{"admin token on user route", http.MethodGet, "/api/auth/me", admin, http.StatusUnauthorized},
		{"user token on admin route", http.MethodGet, "/api/admin/permission-requests", user, http.StatusForbidden},
		{"admin token on admin route", http.MethodGet, "/api/admin/me", admin, http.StatusOK},
		{"mom is not a reviewable role", http.MethodPost, "/api/mom/permission-request", user, http.StatusBadRequest},
		{"unknown role", http.MethodPost, "/api/nurse/permission-request", user, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.token != "" {
				headers = bearerHeader(tc.token)
			}
			var body any
			if tc.method == http.MethodPost {
				body = map[string]any{"specialization": "x"}
			}
			resp := api.do(tc.method, tc.path, body, headers)
			defer resp.Body.Close()
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAdminUserManagement(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminToken()
	user := api.registerAccount("managed@x.com", "mom")

	resp := api.get("/api/admin/users", url.Values{"search": []string{"managed"}}, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[envelopeBody[userPage]](t, resp)
	require.Len(t, list.Data.Users, 1)
	id := list.Data.Users[0].ID

	resp = api.put("/api/admin/users/"+id+"/status", map[string]any{"isActive": false}, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.get("/api/auth/me", nil, bearerHeader(user))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/api/admin/users/"+id, nil, bearerHeader(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/api/admin/users/"+id, nil, bearerHeader(admin))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAppointmentsAndMessages(t *testing.T) {
	api := newTestAPI(t)
	mom := api.registerAccount("mom@x.com", "mom")
	doctor := api.registerAccount("dr@x.com", "doctor")

	resp := api.get("/api/auth/me", nil, bearerHeader(doctor))
	doctorID := decode[envelopeBody[map[string]any]](t, resp).Data["id"].(string)

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	resp = api.post("/api/appointments", map[string]any{
		"doctorId":  doctorID,
		"startTime": start,
		"endTime":   start.Add(30 * time.Minute),
		"reason":    "checkup",
	}, bearerHeader(mom))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[envelopeBody[care.Appointment]](t, resp).Data
	require.Equal(t, "online", appt.Location)

	resp = api.get("/api/appointments", nil, bearerHeader(doctor))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[envelopeBody[[]care.Appointment]](t, resp)
	require.Len(t, list.Data, 1)

	resp = api.put("/api/appointments/"+appt.ID, map[string]any{"status": "completed"}, bearerHeader(doctor))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.post("/api/messages/send", map[string]any{"recipientId": doctorID, "content": "hello"}, bearerHeader(mom))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decode[envelopeBody[care.Message]](t, resp).Data

	resp = api.get("/api/messages/"+msg.SenderID, nil, bearerHeader(doctor))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := decode[envelopeBody[[]care.Message]](t, resp)
	require.Len(t, conv.Data, 1)

	resp = api.post("/api/messages/read", map[string]any{"senderId": msg.SenderID}, bearerHeader(doctor))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	read := decode[envelopeBody[map[string]int]](t, resp)
	require.Equal(t, 1, read.Data["markedCount"])

	resp = api.do(http.MethodDelete, "/api/appointments/"+appt.ID, nil, bearerHeader(mom))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestNotificationStream(t *testing.T) {
	api := newTestAPI(t)
	mom := api.registerAccount("s1@x.com", "mom")
	doctor := api.registerAccount("s2@x.com", "doctor")

	resp := api.get("/api/auth/me", nil, bearerHeader(doctor))
	doctorID := decode[envelopeBody[map[string]any]](t, resp).Data["id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		api.baseURL+"/api/notifications/stream?token="+url.QueryEscape(doctor), nil)
	require.NoError(t, err)
	stream, err := api.client.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	require.True(t, strings.HasPrefix(stream.Header.Get("Content-Type"), "text/event-stream"))

	reader := bufio.NewReader(stream.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": stream started\n", line)
	require.Equal(t, 1, api.hub.Subscribers(relay.UserRoom(doctorID)))

	resp = api.post("/api/messages/send", map[string]any{"recipientId": doctorID, "content": "ping"}, bearerHeader(mom))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	require.Equal(t, care.EventNewMessage, eventLine)
	var evt relay.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &evt))
	require.Equal(t, relay.UserRoom(doctorID), evt.Room)
	require.Contains(t, string(evt.Payload), "ping")
}

func TestStreamRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)
	resp := api.get("/api/notifications/stream", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "test", health["version"])

	resp = api.get("/readyz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.get("/api/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	notFound := decode[envelopeBody[any]](t, resp)
	require.Equal(t, "error", notFound.Status)
}
