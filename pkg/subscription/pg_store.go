package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps records in the subscriptions table created by Migrations.
type PostgresStore struct {
	db       DB
	defaults Defaults
}

func NewPostgresStore(db DB, defaults Defaults) *PostgresStore {
	if db == nil {
		panic("subscription: postgres DB is required")
	}
	return &PostgresStore{db: db, defaults: defaults}
}

const recordColumns = `user_id, gateway_customer_id, gateway_subscription_id, tier, status,
	current_period_start, current_period_end, trial_used, canceled_at, email, created_at, updated_at`

// The insert branch receives Defaults merged with the patch; the update branch
// only touches columns listed in $11, so concurrent writers of disjoint fields
// never overwrite each other. trial_used can only be raised.
const upsertSQL = `
INSERT INTO subscriptions AS s (
	user_id, gateway_customer_id, gateway_subscription_id, tier, status,
	current_period_start, current_period_end, trial_used, canceled_at, email
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id) DO UPDATE SET
	gateway_customer_id = CASE WHEN 'gateway_customer_id' = ANY($11::text[]) THEN EXCLUDED.gateway_customer_id ELSE s.gateway_customer_id END,
	gateway_subscription_id = CASE WHEN 'gateway_subscription_id' = ANY($11::text[]) THEN EXCLUDED.gateway_subscription_id ELSE s.gateway_subscription_id END,
	tier = CASE WHEN 'tier' = ANY($11::text[]) THEN EXCLUDED.tier ELSE s.tier END,
	status = CASE WHEN 'status' = ANY($11::text[]) THEN EXCLUDED.status ELSE s.status END,
	current_period_start = CASE WHEN 'current_period_start' = ANY($11::text[]) THEN EXCLUDED.current_period_start ELSE s.current_period_start END,
	current_period_end = CASE WHEN 'current_period_end' = ANY($11::text[]) THEN EXCLUDED.current_period_end ELSE s.current_period_end END,
	trial_used = s.trial_used OR EXCLUDED.trial_used,
	canceled_at = CASE WHEN 'canceled_at' = ANY($11::text[]) THEN EXCLUDED.canceled_at ELSE s.canceled_at END,
	email = CASE WHEN 'email' = ANY($11::text[]) THEN EXCLUDED.email ELSE s.email END,
	updated_at = now()
RETURNING ` + recordColumns

const insertIfAbsentSQL = `
INSERT INTO subscriptions (
	user_id, gateway_customer_id, gateway_subscription_id, tier, status,
	current_period_start, current_period_end, trial_used, canceled_at, email
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id) DO NOTHING
RETURNING ` + recordColumns

func (s *PostgresStore) Get(ctx context.Context, userID int64) (*Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, s.wrap("get", err)
	}
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, userID int64, p Patch) (*Record, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	args := s.insertArgs(userID, p)
	cols := p.columns()
	rec, err := scanRecord(s.db.QueryRow(ctx, upsertSQL, append(args, cols)...))
	if err != nil {
		return nil, s.wrap("upsert", err)
	}
	return rec, nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, userID int64, p Patch) (*Record, bool, error) {
	if err := validUserID(userID); err != nil {
		return nil, false, err
	}
	rec, err := scanRecord(s.db.QueryRow(ctx, insertIfAbsentSQL, s.insertArgs(userID, p)...))
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := s.Get(ctx, userID)
		return existing, false, err
	default:
		return nil, false, s.wrap("create", err)
	}
}

func (s *PostgresStore) FindByCustomerID(ctx context.Context, customerID string) (int64, error) {
	return s.findUser(ctx, "gateway_customer_id", customerID)
}

func (s *PostgresStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (int64, error) {
	return s.findUser(ctx, "gateway_subscription_id", subscriptionID)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (int64, error) {
	return s.findUser(ctx, "email", email)
}

// column is always one of the constant names above, never user input.
func (s *PostgresStore) findUser(ctx context.Context, column, id string) (int64, error) {
	if id == "" {
		return 0, ErrRecordNotFound
	}
	var userID int64
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM subscriptions WHERE `+column+` = $1 ORDER BY updated_at DESC, user_id DESC LIMIT 1`,
		id,
	).Scan(&userID)
	if err != nil {
		return 0, s.wrap("find by "+column, err)
	}
	return userID, nil
}

func (s *PostgresStore) ResetTrial(ctx context.Context, userID int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE subscriptions SET trial_used = FALSE, updated_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return s.wrap("reset trial", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return s.wrap("delete", err)
	}
	return nil
}

func (s *PostgresStore) insertArgs(userID int64, p Patch) []any {
	row := s.defaults.record(userID)
	p.applyTo(&row)
	return []any{
		row.UserID,
		row.CustomerID,
		nullString(row.SubscriptionID),
		row.Tier,
		string(row.Status),
		row.CurrentPeriodStart,
		row.CurrentPeriodEnd,
		row.TrialUsed,
		row.CanceledAt,
		row.Email,
	}
}

func (s *PostgresStore) wrap(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRecordNotFound
	}
	return fmt.Errorf("postgres store %s: %w", op, err)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec            Record
		subscriptionID *string
		status         string
	)
	err := row.Scan(
		&rec.UserID,
		&rec.CustomerID,
		&subscriptionID,
		&rec.Tier,
		&status,
		&rec.CurrentPeriodStart,
		&rec.CurrentPeriodEnd,
		&rec.TrialUsed,
		&rec.CanceledAt,
		&rec.Email,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if subscriptionID != nil {
		rec.SubscriptionID = *subscriptionID
	}
	rec.Status = Status(status)
	rec.CurrentPeriodStart = utc(rec.CurrentPeriodStart)
	rec.CurrentPeriodEnd = utc(rec.CurrentPeriodEnd)
	rec.CanceledAt = utc(rec.CanceledAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
