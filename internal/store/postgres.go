package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/store/migrations"
)

const (
	pgConnectTimeout = 10 * time.Second
	pgQueryTimeout   = 10 * time.Second
)

const entryColumns = `id, type, document, name, location, lat, lon, date_lost, date_found,
	owner_id, owner_email, status, contact, details, created_at, updated_at, status_updated_at`

const (
	upsertEntrySQL = `INSERT INTO entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE SET
		document = EXCLUDED.document,
		name = EXCLUDED.name,
		location = EXCLUDED.location,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		date_lost = EXCLUDED.date_lost,
		date_found = EXCLUDED.date_found,
		owner_email = EXCLUDED.owner_email,
		status = EXCLUDED.status,
		contact = EXCLUDED.contact,
		details = EXCLUDED.details,
		updated_at = EXCLUDED.updated_at,
		status_updated_at = EXCLUDED.status_updated_at
	WHERE entries.type = EXCLUDED.type`

	getEntrySQL     = `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`
	deleteEntrySQL  = `DELETE FROM entries WHERE id = $1`
	updateStatusSQL = `UPDATE entries SET status = $2, status_updated_at = $3, updated_at = $3 WHERE id = $1`
	statsSQL        = `SELECT type, status, count(*) FROM entries GROUP BY type, status`

	reviewColumns   = `lost_id, found_id, status, note, reviewed_by, reviewed_at, contact_initiated, last_contact_at`
	upsertReviewSQL = `INSERT INTO match_reviews (` + reviewColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (lost_id, found_id) DO UPDATE SET
		status = EXCLUDED.status,
		note = EXCLUDED.note,
		reviewed_by = EXCLUDED.reviewed_by,
		reviewed_at = EXCLUDED.reviewed_at,
		contact_initiated = EXCLUDED.contact_initiated,
		last_contact_at = EXCLUDED.last_contact_at`
	getReviewSQL    = `SELECT ` + reviewColumns + ` FROM match_reviews WHERE lost_id = $1 AND found_id = $2`
	listReviewsSQL  = `SELECT ` + reviewColumns + ` FROM match_reviews ORDER BY lost_id, found_id`
	deleteReviewSQL = `DELETE FROM match_reviews WHERE lost_id = $1 AND found_id = $2`
)

// PostgresStore implements Store on PostgreSQL through database/sql and the
// pgx driver.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore opens a connection pool and verifies it with a ping.
func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pgConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verifying postgres connection: %w", err)
	}

	logger.Info("connected to postgres")
	return NewPostgresStoreFromDB(db, logger), nil
}

// NewPostgresStoreFromDB wraps an existing pool.
func NewPostgresStoreFromDB(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// EnsureSchema applies the embedded goose migrations.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, p.db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	p.logger.Info("schema is up to date")
	return nil
}

// Upsert inserts or updates an entry. Owner and creation time are kept
// from the first insert; an update that would change the type is ignored.
func (p *PostgresStore) Upsert(ctx context.Context, e models.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	var lat, lon sql.NullFloat64
	if e.Geo != nil {
		lat = sql.NullFloat64{Float64: e.Geo.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: e.Geo.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, upsertEntrySQL,
		e.ID, string(e.Type), e.Document, e.Name, e.Location, lat, lon, e.DateLost, e.DateFound,
		e.OwnerID, e.OwnerEmail, string(e.Status), e.Contact, e.Details,
		e.CreatedAt, e.UpdatedAt, nullTime(e.StatusUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", e.ID, err)
	}
	return nil
}

// Get retrieves a single entry by ID.
func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	e, err := scanEntry(p.db.QueryRowContext(ctx, getEntrySQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry %s: %w", id, err)
	}
	return &e, nil
}

// Delete removes an entry by ID.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	res, err := p.db.ExecContext(ctx, deleteEntrySQL, id)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	return expectOneRow(res, "entry "+id)
}

// List returns entries matching filters ordered by ID.
func (p *PostgresStore) List(ctx context.Context, filters *Filters, limit uint64, cursor string) ([]models.Entry, string, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	query, args := buildListQuery(filters, limit, cursor)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("listing entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scanning entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterating entries: %w", err)
	}

	var next string
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// buildListQuery renders the filtered SELECT. It asks for one row more than
// limit so the caller can tell whether another page exists.
func buildListQuery(f *Filters, limit uint64, cursor string) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f != nil {
		if f.Type != nil {
			where = append(where, "type = "+arg(string(*f.Type)))
		}
		if f.Status != nil {
			where = append(where, "status = "+arg(string(*f.Status)))
		}
		if f.OwnerID != nil {
			where = append(where, "owner_id = "+arg(*f.OwnerID))
		}
		if f.Query != "" {
			q := arg(strings.ToLower(f.Query))
			where = append(where, fmt.Sprintf(
				"(strpos(lower(document), %[1]s) > 0 OR strpos(lower(name), %[1]s) > 0 OR strpos(lower(location), %[1]s) > 0)", q))
		}
	}
	if cursor != "" {
		where = append(where, "id > "+arg(cursor))
	}

	var b strings.Builder
	b.WriteString("SELECT " + entryColumns + " FROM entries")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY id")
	if limit > 0 {
		b.WriteString(" LIMIT " + arg(limit+1))
	}
	return b.String(), args
}

// UpdateStatus sets the status of an entry.
func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.EntryStatus, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	res, err := p.db.ExecContext(ctx, updateStatusSQL, id, string(status), at)
	if err != nil {
		return fmt.Errorf("updating status of entry %s: %w", id, err)
	}
	return expectOneRow(res, "entry "+id)
}

// Stats returns counts by type and status.
func (p *PostgresStore) Stats(ctx context.Context) (*models.EntryStats, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, statsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &models.EntryStats{
		ByType:   make(map[string]int64),
		ByStatus: make(map[string]int64),
	}
	for rows.Next() {
		var typ, status string
		var n int64
		if err := rows.Scan(&typ, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats.TotalEntries += n
		stats.ByType[typ] += n
		stats.ByStatus[status] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats: %w", err)
	}
	return stats, nil
}

// SaveReview inserts or replaces a review.
func (p *PostgresStore) SaveReview(ctx context.Context, r models.Review) error {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, upsertReviewSQL,
		r.LostID, r.FoundID, string(r.Status), r.Note, r.ReviewedBy,
		nullTime(r.ReviewedAt), r.ContactInitiated, nullTime(r.LastContactAt),
	)
	if err != nil {
		return fmt.Errorf("saving review %s: %w", r.Key(), err)
	}
	return nil
}

// GetReview retrieves the review of a (lost, found) pair.
func (p *PostgresStore) GetReview(ctx context.Context, lostID, foundID string) (*models.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	r, err := scanReview(p.db.QueryRowContext(ctx, getReviewSQL, lostID, foundID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review %s: %w", models.MatchID(lostID, foundID), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting review %s: %w", models.MatchID(lostID, foundID), err)
	}
	return &r, nil
}

// ListReviews returns all reviews.
func (p *PostgresStore) ListReviews(ctx context.Context) ([]models.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, listReviewsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}
	return out, nil
}

// DeleteReview removes a review.
func (p *PostgresStore) DeleteReview(ctx context.Context, lostID, foundID string) error {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	res, err := p.db.ExecContext(ctx, deleteReviewSQL, lostID, foundID)
	if err != nil {
		return fmt.Errorf("deleting review %s: %w", models.MatchID(lostID, foundID), err)
	}
	return expectOneRow(res, "review "+models.MatchID(lostID, foundID))
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.Entry, error) {
	var (
		e             models.Entry
		typ, status   string
		lat, lon      sql.NullFloat64
		statusUpdated sql.NullTime
	)
	err := row.Scan(
		&e.ID, &typ, &e.Document, &e.Name, &e.Location, &lat, &lon, &e.DateLost, &e.DateFound,
		&e.OwnerID, &e.OwnerEmail, &status, &e.Contact, &e.Details,
		&e.CreatedAt, &e.UpdatedAt, &statusUpdated,
	)
	if err != nil {
		return models.Entry{}, err
	}
	e.Type = models.EntryType(typ)
	e.Status = models.EntryStatus(status)
	if lat.Valid && lon.Valid {
		e.Geo = &models.Geo{Lat: lat.Float64, Lon: lon.Float64}
	}
	if statusUpdated.Valid {
		e.StatusUpdatedAt = statusUpdated.Time
	}
	return e, nil
}

func scanReview(row rowScanner) (models.Review, error) {
	var (
		r                     models.Review
		status                string
		reviewedAt, contactAt sql.NullTime
	)
	err := row.Scan(&r.LostID, &r.FoundID, &status, &r.Note, &r.ReviewedBy, &reviewedAt, &r.ContactInitiated, &contactAt)
	if err != nil {
		return models.Review{}, err
	}
	r.Status = models.MatchStatus(status)
	if reviewedAt.Valid {
		r.ReviewedAt = reviewedAt.Time
	}
	if contactAt.Valid {
		r.LastContactAt = contactAt.Time
	}
	return r, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
