package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/permission"
)

const requestColumns = `id, user_id, user_email, user_role, request_type, status, request_details, documents,
	admin_notes, reviewed_by, review_date, rejection_reason, priority, is_urgent, created_at, updated_at`

const inFlightPredicate = `status in ('pending', 'under_review')`

func scanRequest(row rowScanner) (permission.Request, error) {
	var (
		r                                      permission.Request
		role, reqType, status, priority        string
		details, documents, notes, reviewedRaw []byte
		reviewDate                             sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.UserEmail, &role, &reqType, &status, &details, &documents,
		&notes, &reviewedRaw, &reviewDate, &r.RejectionReason, &priority, &r.IsUrgent, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return permission.Request{}, classify(err)
	}
	r.UserRole = auth.Role(role)
	r.RequestType = permission.RequestType(reqType)
	r.Status = permission.Status(status)
	r.Priority = permission.Priority(priority)
	r.ReviewDate = timePtr(reviewDate)

	d, err := permission.DecodeDetails(r.UserRole, details)
	if err != nil {
		return permission.Request{}, err
	}
	r.Details = d
	r.Documents = []permission.Document{}
	if err := decodeJSON(documents, &r.Documents); err != nil {
		return permission.Request{}, fmt.Errorf("decode documents: %w", err)
	}
	r.AdminNotes = []permission.Note{}
	if err := decodeJSON(notes, &r.AdminNotes); err != nil {
		return permission.Request{}, fmt.Errorf("decode admin notes: %w", err)
	}
	if len(reviewedRaw) > 0 && string(reviewedRaw) != "null" {
		r.ReviewedBy = &permission.Review{}
		if err := decodeJSON(reviewedRaw, r.ReviewedBy); err != nil {
			return permission.Request{}, fmt.Errorf("decode reviewer: %w", err)
		}
	}
	return r, nil
}

func scanRequests(rows *sql.Rows) ([]permission.Request, error) {
	defer rows.Close()
	out := []permission.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) CreateRequest(ctx context.Context, r *permission.Request) error {
	details, err := jsonArg(r.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	documents, err := jsonArg(nonNil(r.Documents))
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	notes, err := jsonArg(nonNil(r.AdminNotes))
	if err != nil {
		return fmt.Errorf("marshal admin notes: %w", err)
	}
	var reviewed any
	if r.ReviewedBy != nil {
		if reviewed, err = jsonArg(r.ReviewedBy); err != nil {
			return fmt.Errorf("marshal reviewer: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		insert into permission_requests (`+requestColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, r.ID, r.UserID, r.UserEmail, string(r.UserRole), string(r.RequestType), string(r.Status), details, documents,
		notes, reviewed, nullTime(r.ReviewDate), r.RejectionReason, string(r.Priority), r.IsUrgent, r.CreatedAt, r.UpdatedAt)
	return classify(err)
}

func (s *Store) Request(ctx context.Context, id string) (permission.Request, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `select `+requestColumns+` from permission_requests where id = $1`, id))
}

func (s *Store) InFlightRequest(ctx context.Context, userID string, role auth.Role) (permission.Request, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `
		select `+requestColumns+` from permission_requests
		where user_id = $1 and user_role = $2 and `+inFlightPredicate+`
		limit 1
	`, userID, string(role)))
}

func (s *Store) RequestsByUser(ctx context.Context, userID string, role auth.Role) ([]permission.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+requestColumns+` from permission_requests
		where user_id = $1 and user_role = $2
		order by created_at desc, id desc
	`, userID, string(role))
	if err != nil {
		return nil, classify(err)
	}
	return scanRequests(rows)
}

func (s *Store) ListRequests(ctx context.Context, f permission.Filter, offset, limit int) ([]permission.Request, int, error) {
	var w whereBuilder
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.Role != "" {
		w.add("user_role = $%d", string(f.Role))
	}
	if f.Priority != "" {
		w.add("priority = $%d", string(f.Priority))
	}
	if f.Search != "" {
		w.add("user_email ilike $%d", likePattern(f.Search))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from permission_requests`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}
	args := append(w.args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s from permission_requests%s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, requestColumns, w.String(), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, classify(err)
	}
	list, err := scanRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) ReplaceRequest(ctx context.Context, r permission.Request) error {
	details, err := jsonArg(r.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	documents, err := jsonArg(nonNil(r.Documents))
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	return expectOne(s.db.ExecContext(ctx, `
		update permission_requests
		set request_details = $2, documents = $3, priority = $4, is_urgent = $5, updated_at = $6
		where id = $1
	`, r.ID, details, documents, string(r.Priority), r.IsUrgent, r.UpdatedAt))
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	return expectOne(s.db.ExecContext(ctx, `delete from permission_requests where id = $1`, id))
}

// statusSet is the shared SET clause of single and bulk status writes.
// $1 status, $2 reviewer, $3 review time, $4 rejection reason (null keeps), $5 notes to append (null keeps).
const statusSet = `
	status = $1,
	reviewed_by = $2,
	review_date = case when $1 = 'pending' then review_date else $3 end,
	rejection_reason = coalesce($4, rejection_reason),
	admin_notes = case when $5::jsonb is null then admin_notes else admin_notes || $5::jsonb end,
	updated_at = $3`

func statusArgs(change permission.StatusChange) ([]any, error) {
	reviewed, err := jsonArg(change.ReviewedBy)
	if err != nil {
		return nil, fmt.Errorf("marshal reviewer: %w", err)
	}
	var reason sql.NullString
	if change.RejectionReason != nil {
		reason = sql.NullString{String: *change.RejectionReason, Valid: true}
	}
	var note any
	if change.Note != nil {
		if note, err = jsonArg([]permission.Note{*change.Note}); err != nil {
			return nil, fmt.Errorf("marshal note: %w", err)
		}
	}
	return []any{string(change.Status), reviewed, change.ReviewedBy.ReviewedAt, reason, note}, nil
}

func (s *Store) SetRequestStatus(ctx context.Context, id string, change permission.StatusChange) (permission.Request, error) {
	args, err := statusArgs(change)
	if err != nil {
		return permission.Request{}, err
	}
	args = append(args, id)
	return scanRequest(s.db.QueryRowContext(ctx, `
		update permission_requests set `+statusSet+`
		where id = $6
		returning `+requestColumns, args...))
}

func (s *Store) BulkSetRequestStatus(ctx context.Context, ids []string, change permission.StatusChange) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args, err := statusArgs(change)
	if err != nil {
		return 0, err
	}
	first := len(args) + 1
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx, `
		update permission_requests set `+statusSet+`
		where id in (`+placeholders(first, len(ids))+`)
	`, args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) AppendRequestNote(ctx context.Context, id string, note permission.Note, at time.Time) (permission.Request, error) {
	notes, err := jsonArg([]permission.Note{note})
	if err != nil {
		return permission.Request{}, fmt.Errorf("marshal note: %w", err)
	}
	return scanRequest(s.db.QueryRowContext(ctx, `
		update permission_requests
		set admin_notes = admin_notes || $2::jsonb, updated_at = $3
		where id = $1
		returning `+requestColumns, id, notes, at))
}

func (s *Store) RequestStats(ctx context.Context, recentSince time.Time) (permission.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		select status, user_role, priority,
			count(*),
			count(*) filter (where is_urgent),
			count(*) filter (where created_at >= $1)
		from permission_requests
		group by status, user_role, priority
	`, recentSince)
	if err != nil {
		return permission.Stats{}, classify(err)
	}
	defer rows.Close()

	stats := permission.Stats{
		ByStatus:   map[permission.Status]int{},
		ByRole:     map[auth.Role]int{},
		ByPriority: map[permission.Priority]int{},
	}
	for rows.Next() {
		var (
			status, role, priority string
			total, urgent, recent  int
		)
		if err := rows.Scan(&status, &role, &priority, &total, &urgent, &recent); err != nil {
			return permission.Stats{}, classify(err)
		}
		stats.ByStatus[permission.Status(status)] += total
		stats.ByRole[auth.Role(role)] += total
		stats.ByPriority[permission.Priority(priority)] += total
		stats.Total += total
		stats.Urgent += urgent
		stats.Recent += recent
	}
	if err := rows.Err(); err != nil {
		return permission.Stats{}, classify(err)
	}
	return stats, nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
