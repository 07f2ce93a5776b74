package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hmmrfll/owl-ai-backend/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "owl_ai"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "owl_ai"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user types.User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (user_id, chat_id, first_name, last_name, username, language_code)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
  chat_id = EXCLUDED.chat_id,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  username = EXCLUDED.username,
  language_code = EXCLUDED.language_code,
  updated_at = NOW();
`, user.UserID, user.ChatID, strings.TrimSpace(user.FirstName), strings.TrimSpace(user.LastName), strings.TrimSpace(user.Username), strings.TrimSpace(user.LanguageCode))
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var u types.User
	err := s.pool.QueryRow(ctx, `
SELECT user_id, chat_id, first_name, last_name, username, language_code, joined_at, updated_at
FROM users
WHERE user_id = $1
`, userID).Scan(&u.UserID, &u.ChatID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &u.JoinedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Activate deactivates any current active row and inserts the new one as a
// single statement. Together with the partial unique index on
// (user_id) WHERE is_active this keeps "exactly one active row" true under
// concurrent activations; the surviving row is whichever call committed last.
func (s *PostgresStore) Activate(ctx context.Context, userID int64, tariffName string, details types.PaymentDetails) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	endDate := now.AddDate(0, 1, 0)

	var sub types.Subscription
	err := s.pool.QueryRow(ctx, `
WITH deactivated AS (
  UPDATE subscriptions
  SET is_active = FALSE
  WHERE user_id = $1 AND is_active = TRUE
)
INSERT INTO subscriptions
  (user_id, tariff_name, start_date, end_date, is_active, payment_id, payment_method, payment_amount)
VALUES
  ($1, $2, $3, $4, TRUE, $5, $6, $7)
RETURNING id, user_id, tariff_name, start_date, end_date, is_active,
  COALESCE(payment_id, ''), COALESCE(payment_method, ''), COALESCE(payment_amount, 0)
`, userID, strings.TrimSpace(tariffName), now, endDate, details.PaymentID, string(details.Method), details.Amount).
		Scan(&sub.ID, &sub.UserID, &sub.TariffName, &sub.StartDate, &sub.EndDate, &sub.IsActive, &sub.PaymentID, (*string)(&sub.PaymentMethod), &sub.PaymentAmount)
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}
	return &sub, nil
}

// GetActive returns (nil, nil) when the user has no unexpired active row.
// An expired row the sweeper has not yet flipped is filtered out here.
func (s *PostgresStore) GetActive(ctx context.Context, userID int64) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var sub types.Subscription
	err := s.pool.QueryRow(ctx, `
SELECT id, user_id, tariff_name, start_date, end_date, is_active,
  COALESCE(payment_id, ''), COALESCE(payment_method, ''), COALESCE(payment_amount, 0)
FROM subscriptions
WHERE user_id = $1 AND is_active = TRUE AND end_date > NOW()
ORDER BY start_date DESC
LIMIT 1
`, userID).Scan(&sub.ID, &sub.UserID, &sub.TariffName, &sub.StartDate, &sub.EndDate, &sub.IsActive, &sub.PaymentID, (*string)(&sub.PaymentMethod), &sub.PaymentAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) ExpireOverdue(ctx context.Context) ([]types.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
UPDATE subscriptions
SET is_active = FALSE
WHERE end_date < NOW() AND is_active = TRUE
RETURNING id, user_id, tariff_name, start_date, end_date, is_active,
  COALESCE(payment_id, ''), COALESCE(payment_method, ''), COALESCE(payment_amount, 0)
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []types.Subscription
	for rows.Next() {
		var sub types.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.TariffName, &sub.StartDate, &sub.EndDate, &sub.IsActive, &sub.PaymentID, (*string)(&sub.PaymentMethod), &sub.PaymentAmount); err != nil {
			return nil, err
		}
		expired = append(expired, sub)
	}
	return expired, rows.Err()
}

// usageColumn whitelists the counter column per resource kind; SQL is never
// built from caller input directly.
func usageColumn(kind types.ResourceKind) (string, error) {
	switch kind {
	case types.ResourcePhoto:
		return "photos_used", nil
	case types.ResourceDocument:
		return "documents_used", nil
	case types.ResourceAIRequest:
		return "ai_requests", nil
	default:
		return "", fmt.Errorf("unknown resource kind: %q", kind)
	}
}

func (s *PostgresStore) RecordUsage(ctx context.Context, userID int64, kind types.ResourceKind, amount int) error {
	column, err := usageColumn(kind)
	if err != nil {
		return err
	}
	if amount <= 0 {
		amount = 1
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	today := time.Now().UTC().Format("2006-01-02")
	_, err = tx.Exec(ctx, `
INSERT INTO usage_stats (user_id, usage_date)
VALUES ($1, $2)
ON CONFLICT (user_id, usage_date) DO NOTHING
`, userID, today)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
UPDATE usage_stats
SET %s = %s + $1
WHERE user_id = $2 AND usage_date = $3
`, column, column), amount, userID, today)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) MonthlyUsage(ctx context.Context, userID int64) (types.MonthlyUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var usage types.MonthlyUsage
	err := s.pool.QueryRow(ctx, `
SELECT
  COALESCE(SUM(photos_used), 0),
  COALESCE(SUM(documents_used), 0),
  COALESCE(SUM(ai_requests), 0)
FROM usage_stats
WHERE user_id = $1
  AND usage_date >= date_trunc('month', CURRENT_DATE)
`, userID).Scan(&usage.Photos, &usage.Documents, &usage.AIRequests)
	if err != nil {
		return types.MonthlyUsage{}, err
	}
	return usage, nil
}

// SeedTariffs copies the static catalog into tariff_limits. Existing rows
// are left untouched, so the call is idempotent across restarts.
func (s *PostgresStore) SeedTariffs(ctx context.Context, defs []types.TariffDefinition) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, def := range defs {
		features, err := json.Marshal(def.Features)
		if err != nil {
			return err
		}
		_, err = s.pool.Exec(ctx, `
INSERT INTO tariff_limits
  (tariff_name, monthly_photos, monthly_documents, monthly_ai_requests, is_priority_support, other_features)
VALUES
  ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tariff_name) DO NOTHING
`, def.Name, def.MonthlyPhotos, def.MonthlyDocs, def.MonthlyAI, def.PrioritySupport, features)
		if err != nil {
			return fmt.Errorf("seed tariff %q: %w", def.Name, err)
		}
	}
	return nil
}
