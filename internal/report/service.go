package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-barrierfree/internal/db"
	"backend-barrierfree/internal/observability"
	"backend-barrierfree/internal/proximity"
	"backend-barrierfree/internal/shared/geo"
	"backend-barrierfree/internal/shared/validate"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound      = errors.New("report not found")
	ErrForbidden     = errors.New("not allowed to modify this report")
	ErrNotEditable   = errors.New("approved reports can no longer be edited")
	ErrNotPending    = errors.New("report has already been reviewed")
	ErrInvalidStatus = errors.New("invalid status")
	ErrNoIDs         = errors.New("ids required")
	ErrTooManyIDs    = errors.New("at most 100 ids per request")
)

const (
	defaultListLimit = 500
	MaxListLimit     = 1000
	maxBulkIDs       = 100
)

const reportColumns = `id, user_id, location_name, ST_Y(location::geometry), ST_X(location::geometry),
		       category, accessibility_level, COALESCE(details,''), photo_urls, status,
		       created_at, reviewed_at, reviewed_by`

type Service struct {
	db        db.Querier
	log       logrus.FieldLogger
	notifiers []Notifier
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, n) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(q db.Querier, opts ...Option) *Service {
	s := &Service{db: q, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.UserID, &r.LocationName, &r.Lat, &r.Lng,
		&r.Category, &r.AccessibilityLevel, &r.Details, &r.PhotoURLs, &r.Status,
		&r.CreatedAt, &r.ReviewedAt, &r.ReviewedBy)
	if r.PhotoURLs == nil {
		r.PhotoURLs = []string{}
	}
	return r, err
}

func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (Report, error) {
	req.LocationName = strings.TrimSpace(req.LocationName)
	if err := validate.Struct(req); err != nil {
		return Report{}, err
	}
	r := Report{
		ID:                 uuid.NewString(),
		UserID:             userID,
		LocationName:       req.LocationName,
		Lat:                req.Lat,
		Lng:                req.Lng,
		Category:           req.Category,
		AccessibilityLevel: req.AccessibilityLevel,
		Details:            strings.TrimSpace(req.Details),
		PhotoURLs:          req.PhotoURLs,
		Status:             StatusPending,
	}
	if r.PhotoURLs == nil {
		r.PhotoURLs = []string{}
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO barrier_reports (id, user_id, location_name, location, category, accessibility_level, details, photo_urls, status)
		VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, $6,$7, NULLIF($8,''), $9, $10)
		RETURNING created_at
	`, r.ID, r.UserID, r.LocationName, r.Lng, r.Lat, r.Category, r.AccessibilityLevel, r.Details, r.PhotoURLs, r.Status)
	if err := row.Scan(&r.CreatedAt); err != nil {
		return Report{}, err
	}

	observability.ReportsSubmitted.Inc()
	s.emit(ctx, EventSubmitted, r)
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (Report, error) {
	r, err := scanReport(s.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM barrier_reports WHERE id=$1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	return r, nil
}

// ListApproved returns approved reports, optionally restricted to a bounding
// box or to a radius around a point.
func (s *Service) ListApproved(ctx context.Context, f ListFilter) ([]Report, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "status = 'approved'")
	if f.Bounds != nil {
		args = append(args, f.Bounds.MinLng, f.Bounds.MinLat, f.Bounds.MaxLng, f.Bounds.MaxLat)
		where = append(where, fmt.Sprintf("ST_Intersects(location, ST_MakeEnvelope($%d,$%d,$%d,$%d, 4326)::geography)",
			len(args)-3, len(args)-2, len(args)-1, len(args)))
	}
	if f.Near != nil {
		args = append(args, f.Near.Lng, f.Near.Lat, f.RadiusM)
		where = append(where, fmt.Sprintf("ST_DWithin(location, ST_SetSRID(ST_MakePoint($%d,$%d), 4326)::geography, $%d)",
			len(args)-2, len(args)-1, len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + reportColumns + ` FROM barrier_reports WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	return s.queryReports(ctx, query, args...)
}

// BarriersWithin loads every approved report inside b for route scoring.
// There is no row limit: a dropped barrier would score as safe road.
func (s *Service) BarriersWithin(ctx context.Context, b geo.Bounds) ([]proximity.Barrier, error) {
	reports, err := s.queryReports(ctx, `SELECT `+reportColumns+` FROM barrier_reports
		WHERE status = 'approved' AND ST_Intersects(location, ST_MakeEnvelope($1,$2,$3,$4, 4326)::geography)`,
		b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
	if err != nil {
		return nil, err
	}
	barriers := make([]proximity.Barrier, 0, len(reports))
	for _, r := range reports {
		barrier, err := r.Barrier()
		if err != nil {
			s.log.WithError(err).WithField("report_id", r.ID).Warn("skipping report with unknown accessibility level")
			continue
		}
		barriers = append(barriers, barrier)
	}
	return barriers, nil
}

// ApprovedPage walks approved reports in id order, starting after afterID.
// An empty afterID starts from the beginning.
func (s *Service) ApprovedPage(ctx context.Context, afterID string, limit int) ([]Report, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.queryReports(ctx, `SELECT `+reportColumns+` FROM barrier_reports
		WHERE status = 'approved' AND id::text > $1
		ORDER BY id::text LIMIT $2`, afterID, limit)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Report, error) {
	return s.queryReports(ctx, `SELECT `+reportColumns+` FROM barrier_reports WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'approved'),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'rejected')
		FROM barrier_reports WHERE user_id=$1
	`, userID).Scan(&st.Total, &st.Approved, &st.Pending, &st.Rejected)
	return st, err
}

// SearchApproved is a plain text match over approved reports, used when no
// search cluster is configured. With near set the nearest matches come first.
func (s *Service) SearchApproved(ctx context.Context, q string, near *geo.Point, limit int) ([]Report, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = 20
	}
	where := []string{"status = 'approved'"}
	var args []any
	if q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(location_name ILIKE $%d OR details ILIKE $%d)", len(args), len(args)))
	}
	order := "created_at DESC"
	if near != nil {
		args = append(args, near.Lng, near.Lat)
		order = fmt.Sprintf("location <-> ST_SetSRID(ST_MakePoint($%d,$%d), 4326)::geography", len(args)-1, len(args))
	}
	args = append(args, limit)

	query := `SELECT ` + reportColumns + ` FROM barrier_reports WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d", order, len(args))
	return s.queryReports(ctx, query, args...)
}

// Edit lets the owner change a pending or rejected report. The report goes
// back to pending and loses its review stamp.
func (s *Service) Edit(ctx context.Context, userID, id string, req EditRequest) (Report, error) {
	if err := validate.Struct(req); err != nil {
		return Report{}, err
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if r.UserID != userID {
		return Report{}, ErrForbidden
	}
	if r.Status == StatusApproved {
		return Report{}, ErrNotEditable
	}

	if req.Category != "" {
		r.Category = req.Category
	}
	if req.AccessibilityLevel != "" {
		r.AccessibilityLevel = req.AccessibilityLevel
	}
	if req.Details != nil {
		r.Details = strings.TrimSpace(*req.Details)
	}
	if req.PhotoURLs != nil {
		r.PhotoURLs = req.PhotoURLs
	}
	r.Status = StatusPending
	r.ReviewedAt = nil
	r.ReviewedBy = nil

	tag, err := s.db.Exec(ctx, `
		UPDATE barrier_reports
		SET category=$2, accessibility_level=$3, details=NULLIF($4,''), photo_urls=$5,
		    status='pending', reviewed_at=NULL, reviewed_by=NULL
		WHERE id=$1 AND user_id=$6 AND status <> 'approved'
	`, r.ID, r.Category, r.AccessibilityLevel, r.Details, r.PhotoURLs, userID)
	if err != nil {
		return Report{}, err
	}
	if tag.RowsAffected() == 0 {
		// approved between the read and the write
		return Report{}, ErrNotEditable
	}

	s.emit(ctx, EventUpdated, r)
	return r, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string, isAdmin bool) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != userID && !isAdmin {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM barrier_reports WHERE id=$1`, id); err != nil {
		return err
	}
	s.emit(ctx, EventDeleted, r)
	return nil
}

func (s *Service) AdminList(ctx context.Context, f AdminFilter) ([]Report, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		if !validStatus(f.Status) {
			return nil, ErrInvalidStatus
		}
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Level != "" {
		args = append(args, f.Level)
		where = append(where, fmt.Sprintf("accessibility_level = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(location_name ILIKE $%d OR category ILIKE $%d OR details ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + reportColumns + ` FROM barrier_reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	return s.queryReports(ctx, query, args...)
}

const reviewSQL = `
		UPDATE barrier_reports
		SET status=$2, reviewed_at=now(), reviewed_by=$3
		WHERE id=$1 AND status='pending'
		RETURNING ` + reportColumns

// Review moves a pending report to approved or rejected.
func (s *Service) Review(ctx context.Context, adminID, id, status string) (Report, error) {
	if status != StatusApproved && status != StatusRejected {
		return Report{}, ErrInvalidStatus
	}
	r, err := scanReport(s.db.QueryRow(ctx, reviewSQL, id, status, adminID))
	if err != nil {
		if !db.IsNoRows(err) {
			return Report{}, err
		}
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return Report{}, getErr
		}
		return Report{}, ErrNotPending
	}

	observability.ReportsReviewed.WithLabelValues(status).Inc()
	s.emit(ctx, EventReviewed, r)
	return r, nil
}

// BulkReview applies one decision to many reports in a single transaction.
// Reports that are missing or no longer pending are reported back, not failed.
func (s *Service) BulkReview(ctx context.Context, adminID string, ids []string, status string) ([]ReviewOutcome, error) {
	if status != StatusApproved && status != StatusRejected {
		return nil, ErrInvalidStatus
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}
	if len(ids) > maxBulkIDs {
		return nil, ErrTooManyIDs
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ReviewOutcome, 0, len(ids))
	var reviewed []Report
	for _, id := range ids {
		r, err := scanReport(tx.QueryRow(ctx, reviewSQL, id, status, adminID))
		if err != nil {
			if db.IsNoRows(err) {
				outcomes = append(outcomes, ReviewOutcome{ID: id, Reason: "not found or already reviewed"})
				continue
			}
			_ = tx.Rollback(ctx)
			return nil, err
		}
		reviewed = append(reviewed, r)
		outcomes = append(outcomes, ReviewOutcome{ID: id, Updated: true})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for _, r := range reviewed {
		observability.ReportsReviewed.WithLabelValues(status).Inc()
		s.emit(ctx, EventReviewed, r)
	}
	return outcomes, nil
}

func (s *Service) queryReports(ctx context.Context, query string, args ...any) ([]Report, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Service) emit(ctx context.Context, typ EventType, r Report) {
	if len(s.notifiers) == 0 {
		return
	}
	ev := Event{Type: typ, ReportID: r.ID, Status: r.Status, At: time.Now().UTC(), Report: r}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"report_id": r.ID, "event": typ}).Warn("report notifier failed")
		}
	}
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
