package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/ids"
	"mamacare.app/internal/obs"
	"mamacare.app/internal/relay"
	"mamacare.app/internal/store"
	"mamacare.app/internal/validation"
)

const (
	EventSubmitted = "permission_request_submitted"
	EventUpdated   = "permission_request_updated"

	DefaultPageSize = 10
	MaxPageSize     = 100

	recentWindow      = 7 * 24 * time.Hour
	sideEffectTimeout = 10 * time.Second
)

// Requester identifies the account submitting or editing a request.
type Requester struct {
	ID    string
	Email string
}

// Reviewer identifies the administrator acting on a request.
type Reviewer struct {
	ID       string
	Username string
}

// Submission is a new request.
type Submission struct {
	RequestType string
	Details     Details
	Documents   []Document
	Priority    string
	IsUrgent    bool
}

// Patch is a sparse requester edit. Zero values leave fields unchanged;
// a non-nil Documents replaces the whole list.
type Patch struct {
	Details   Details
	Documents []Document
	Priority  string
	IsUrgent  *bool
}

// Engine runs the permission request review workflow.
type Engine struct {
	store    Store
	approver AccountApprover
	relay    relay.Publisher
	logger   *zap.Logger
	now      func() time.Time

	sideEffects sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithRelay sets where workflow events are published.
func WithRelay(p relay.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.relay = p
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine wires the workflow to its store and to the identity store that
// receives the approval flag.
func NewEngine(s Store, approver AccountApprover, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		approver: approver,
		relay:    relay.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit files a new request. A requester holds at most one pending or
// under-review request per role.
func (e *Engine) Submit(ctx context.Context, who Requester, role auth.Role, in Submission) (Request, error) {
	if !role.Elevated() {
		return Request{}, ErrInvalidRole
	}
	now := e.now().UTC()
	req := Request{
		ID:          ids.New(),
		UserID:      who.ID,
		UserEmail:   who.Email,
		UserRole:    role,
		RequestType: TypePermission,
		Status:      StatusPending,
		Details:     in.Details,
		Documents:   stampDocuments(in.Documents, now),
		AdminNotes:  []Note{},
		Priority:    PriorityMedium,
		IsUrgent:    in.IsUrgent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Details == nil {
		req.Details, _ = NewDetails(role)
	}

	var errs validation.Errors
	if in.RequestType != "" {
		t, ok := ParseRequestType(in.RequestType)
		if !ok {
			errs.Add("requestType", "requestType must be one of permission_request, verification_request, access_request")
		}
		req.RequestType = t
	}
	if in.Priority != "" {
		p, ok := ParsePriority(in.Priority)
		if !ok {
			errs.Add("priority", "priority must be one of low, medium, high, urgent")
		}
		req.Priority = p
	}
	if req.Details.Role() != role {
		errs.Add("requestDetails", "requestDetails do not match role "+string(role))
	} else {
		req.Details.validate(&errs)
	}
	validateDocuments(&errs, req.Documents)
	if err := errs.Err(); err != nil {
		return Request{}, err
	}

	if _, err := e.store.InFlightRequest(ctx, who.ID, role); err == nil {
		return Request{}, ErrDuplicateInFlight
	} else if !errors.Is(err, store.ErrNotFound) {
		return Request{}, fmt.Errorf("check in-flight request: %w", err)
	}
	if err := e.store.CreateRequest(ctx, &req); err != nil {
		if store.IsConflictOn(err, store.ConstraintInFlightRequest) {
			return Request{}, ErrDuplicateInFlight
		}
		return Request{}, fmt.Errorf("create request: %w", err)
	}

	obs.PermissionTransition(string(StatusPending), 1)
	e.relay.Publish(ctx, relay.AdminRoom, EventSubmitted, req)
	e.logger.Info("permission request submitted",
		zap.String("request_id", req.ID), zap.String("user_id", who.ID), zap.String("role", string(role)))
	return req, nil
}

// GetOwn returns a request owned by the requester in role.
func (e *Engine) GetOwn(ctx context.Context, id, requesterID string, role auth.Role) (Request, error) {
	if !role.Elevated() {
		return Request{}, ErrInvalidRole
	}
	req, err := e.load(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.UserID != requesterID || req.UserRole != role {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// ListOwn lists the requester's requests in role, newest first.
func (e *Engine) ListOwn(ctx context.Context, requesterID string, role auth.Role) ([]Request, error) {
	if !role.Elevated() {
		return nil, ErrInvalidRole
	}
	return e.store.RequestsByUser(ctx, requesterID, role)
}

// Update applies a sparse edit to a pending request.
func (e *Engine) Update(ctx context.Context, id, requesterID string, role auth.Role, patch Patch) (Request, error) {
	req, err := e.GetOwn(ctx, id, requesterID, role)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidState
	}

	var errs validation.Errors
	if patch.Details != nil {
		if patch.Details.Role() != role {
			errs.Add("requestDetails", "requestDetails do not match role "+string(role))
		} else {
			req.Details.merge(patch.Details)
		}
	}
	req.Details.validate(&errs)
	now := e.now().UTC()
	if patch.Documents != nil {
		req.Documents = stampDocuments(patch.Documents, now)
		validateDocuments(&errs, req.Documents)
	}
	if patch.Priority != "" {
		p, ok := ParsePriority(patch.Priority)
		if !ok {
			errs.Add("priority", "priority must be one of low, medium, high, urgent")
		}
		req.Priority = p
	}
	if patch.IsUrgent != nil {
		req.IsUrgent = *patch.IsUrgent
	}
	if err := errs.Err(); err != nil {
		return Request{}, err
	}

	req.UpdatedAt = now
	if err := e.store.ReplaceRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("update request: %w", err)
	}
	return req, nil
}

// Cancel hard-deletes a pending request. No record of it is kept.
func (e *Engine) Cancel(ctx context.Context, id, requesterID string, role auth.Role) error {
	req, err := e.GetOwn(ctx, id, requesterID, role)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrInvalidState
	}
	if err := e.store.DeleteRequest(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// GetByID returns any request for administrators.
func (e *Engine) GetByID(ctx context.Context, id string) (Request, error) {
	return e.load(ctx, id)
}

// ListForAdmin pages through requests. page starts at 1; limit defaults to 10
// and is capped at 100.
func (e *Engine) ListForAdmin(ctx context.Context, filter Filter, page, limit int) (Page, error) {
	var errs validation.Errors
	if filter.Status != "" {
		if _, ok := ParseStatus(string(filter.Status)); !ok {
			errs.Add("status", "unknown status")
		}
	}
	if filter.Role != "" && !filter.Role.Elevated() {
		errs.Add("role", "role must be doctor, midwife or service_provider")
	}
	if filter.Priority != "" {
		if _, ok := ParsePriority(string(filter.Priority)); !ok {
			errs.Add("priority", "unknown priority")
		}
	}
	if err := errs.Err(); err != nil {
		return Page{}, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	list, total, err := e.store.ListRequests(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return Page{}, err
	}
	if list == nil {
		list = []Request{}
	}
	totalPages := (total + limit - 1) / limit
	return Page{
		Requests: list,
		Pagination: Pagination{
			CurrentPage:   page,
			TotalPages:    totalPages,
			TotalRequests: total,
			HasNext:       page < totalPages,
			HasPrev:       page > 1,
		},
	}, nil
}

// SetStatus moves a single request. Approved and rejected requests cannot be
// moved again through this path; only BulkSetStatus overrides them.
func (e *Engine) SetStatus(ctx context.Context, id string, by Reviewer, newStatus, rejectionReason, note string) (Request, error) {
	status, ok := ParseStatus(newStatus)
	if !ok {
		return Request{}, ErrInvalidStatus
	}
	current, err := e.load(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status.Terminal() && current.Status != status {
		return Request{}, ErrInvalidState
	}

	now := e.now().UTC()
	change := e.statusChange(status, by, rejectionReason, now)
	if n := strings.TrimSpace(note); n != "" {
		change.Note = &Note{AdminID: by.ID, AdminUsername: by.Username, Note: n, Timestamp: now}
	}
	updated, err := e.store.SetRequestStatus(ctx, id, change)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Request{}, ErrNotFound
		}
		if store.IsConflictOn(err, store.ConstraintInFlightRequest) {
			return Request{}, ErrDuplicateInFlight
		}
		return Request{}, fmt.Errorf("set status: %w", err)
	}

	obs.PermissionTransition(string(status), 1)
	e.relay.Publish(ctx, relay.UserRoom(updated.UserID), EventUpdated, updated)
	if status == StatusApproved {
		e.approveAccount(ctx, updated.ID, updated.UserID)
	}
	e.logger.Info("permission request status changed",
		zap.String("request_id", id), zap.String("from", string(current.Status)),
		zap.String("to", string(status)), zap.String("admin_id", by.ID))
	return updated, nil
}

// AddNote appends an admin note without touching the status.
func (e *Engine) AddNote(ctx context.Context, id string, by Reviewer, text string) (Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{}, validation.Errors{{Field: "note", Message: "note is required"}}
	}
	now := e.now().UTC()
	updated, err := e.store.AppendRequestNote(ctx, id, Note{
		AdminID: by.ID, AdminUsername: by.Username, Note: text, Timestamp: now,
	}, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("append note: %w", err)
	}
	e.relay.Publish(ctx, relay.UserRoom(updated.UserID), EventUpdated, updated)
	return updated, nil
}

// BulkSetStatus overwrites the status of every listed request regardless of
// its current status. If the new status would leave an account with two
// in-flight requests for one role, nothing is written and ErrDuplicateInFlight
// is returned. The optional note is appended per id after the status write;
// the two steps are not atomic and a failure between them is logged.
func (e *Engine) BulkSetStatus(ctx context.Context, requestIDs []string, by Reviewer, newStatus, rejectionReason, note string) (BulkResult, error) {
	if len(requestIDs) == 0 {
		return BulkResult{}, ErrNoIDs
	}
	status, ok := ParseStatus(newStatus)
	if !ok {
		return BulkResult{}, ErrInvalidStatus
	}
	now := e.now().UTC()
	change := e.statusChange(status, by, rejectionReason, now)
	modified, err := e.store.BulkSetRequestStatus(ctx, requestIDs, change)
	if err != nil {
		if store.IsConflictOn(err, store.ConstraintInFlightRequest) {
			return BulkResult{}, ErrDuplicateInFlight
		}
		return BulkResult{}, fmt.Errorf("bulk set status: %w", err)
	}
	obs.PermissionTransition(string(status), modified)

	note = strings.TrimSpace(note)
	for _, id := range requestIDs {
		req, err := e.store.Request(ctx, id)
		if note != "" && err == nil {
			req, err = e.store.AppendRequestNote(ctx, id, Note{
				AdminID: by.ID, AdminUsername: by.Username, Note: note, Timestamp: now,
			}, now)
		}
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				e.logger.Warn("bulk status follow-up failed",
					zap.String("request_id", id), zap.String("status", string(status)), zap.Error(err))
			}
			continue
		}
		e.relay.Publish(ctx, relay.UserRoom(req.UserID), EventUpdated, req)
		if status == StatusApproved {
			e.approveAccount(ctx, req.ID, req.UserID)
		}
	}

	e.logger.Info("permission requests bulk updated",
		zap.Int("requested", len(requestIDs)), zap.Int("modified", modified),
		zap.String("to", string(status)), zap.String("admin_id", by.ID))
	return BulkResult{ModifiedCount: modified, RequestedCount: len(requestIDs)}, nil
}

// Stats aggregates requests for the admin dashboard. Every status, role and
// priority appears in the result, with zero when absent.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	stats, err := e.store.RequestStats(ctx, e.now().UTC().Add(-recentWindow))
	if err != nil {
		return Stats{}, err
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[Status]int{}
	}
	if stats.ByRole == nil {
		stats.ByRole = map[auth.Role]int{}
	}
	if stats.ByPriority == nil {
		stats.ByPriority = map[Priority]int{}
	}
	for _, s := range Statuses {
		if _, ok := stats.ByStatus[s]; !ok {
			stats.ByStatus[s] = 0
		}
	}
	for _, r := range []auth.Role{auth.RoleDoctor, auth.RoleMidwife, auth.RoleServiceProvider} {
		if _, ok := stats.ByRole[r]; !ok {
			stats.ByRole[r] = 0
		}
	}
	for _, p := range Priorities {
		if _, ok := stats.ByPriority[p]; !ok {
			stats.ByPriority[p] = 0
		}
	}
	return stats, nil
}

// Wait blocks until in-flight approval side effects have finished.
func (e *Engine) Wait() {
	e.sideEffects.Wait()
}

// approveAccount sets the requester's approval flag. This is the one write
// allowed to lag behind a successful review: it runs asynchronously after the
// status change is stored, and a failure is logged without undoing the review.
func (e *Engine) approveAccount(ctx context.Context, requestID, userID string) {
	if e.approver == nil {
		return
	}
	e.sideEffects.Add(1)
	go func() {
		defer e.sideEffects.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		defer cancel()
		if err := e.approver.SetApproved(ctx, userID, true, e.now().UTC()); err != nil {
			e.logger.Warn("account approval after review failed",
				zap.String("request_id", requestID), zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

func (e *Engine) statusChange(status Status, by Reviewer, rejectionReason string, now time.Time) StatusChange {
	change := StatusChange{
		Status:     status,
		ReviewedBy: Review{AdminID: by.ID, AdminUsername: by.Username, ReviewedAt: now},
	}
	switch reason := strings.TrimSpace(rejectionReason); {
	case status != StatusRejected:
		empty := ""
		change.RejectionReason = &empty
	case reason != "":
		change.RejectionReason = &reason
	}
	return change
}

func (e *Engine) load(ctx context.Context, id string) (Request, error) {
	req, err := e.store.Request(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

func stampDocuments(docs []Document, now time.Time) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		d.Name = strings.TrimSpace(d.Name)
		d.URL = strings.TrimSpace(d.URL)
		if d.UploadedAt.IsZero() {
			d.UploadedAt = now
		}
		out = append(out, d)
	}
	return out
}

func validateDocuments(errs *validation.Errors, docs []Document) {
	for i, d := range docs {
		if d.Name == "" || d.URL == "" {
			errs.Add(fmt.Sprintf("documents[%d]", i), "document name and url are required")
		}
	}
}
