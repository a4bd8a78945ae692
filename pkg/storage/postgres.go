package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage/migrations"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// PostgresStore implements Store on PostgreSQL through database/sql and the
// pgx stdlib driver. Verification values are persisted as decimal text.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already opened database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens dsn with the pgx driver, checks connectivity and applies
// the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return NewPostgresStore(db), nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// CreateIdentity inserts the identity unless the user ID is already taken.
// ON CONFLICT keeps the check and the insert in one statement.
func (s *PostgresStore) CreateIdentity(ctx context.Context, userID string, verificationValue *big.Int) error {
	query :=
		`INSERT INTO identities (user_id, verification_value, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, userID, verificationValue.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return zkerr.ErrAlreadyRegistered
	}

	return nil
}

// GetIdentity loads one identity.
func (s *PostgresStore) GetIdentity(ctx context.Context, userID string) (*Identity, error) {
	query :=
		`SELECT user_id, verification_value, created_at FROM identities
		 WHERE user_id = $1`

	row := s.db.QueryRowContext(ctx, query, userID)
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, zkerr.ErrUnknownUser
		}
		return nil, err
	}

	return identity, nil
}

// ListIdentities returns every identity ordered by registration time.
func (s *PostgresStore) ListIdentities(ctx context.Context) ([]Identity, error) {
	query :=
		`SELECT user_id, verification_value, created_at FROM identities
		 ORDER BY created_at, user_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identities, nil
}

// PutSession upserts the user's single session row.
func (s *PostgresStore) PutSession(ctx context.Context, session *Session) error {
	query :=
		`INSERT INTO sessions (user_id, token_id, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET token_id = EXCLUDED.token_id,
		     issued_at = EXCLUDED.issued_at,
		     expires_at = EXCLUDED.expires_at`

	_, err := s.db.ExecContext(ctx, query, session.UserID, session.TokenID, session.IssuedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// GetSession loads the user's session.
func (s *PostgresStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	query :=
		`SELECT user_id, token_id, issued_at, expires_at FROM sessions
		 WHERE user_id = $1`

	session := &Session{}
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&session.UserID, &session.TokenID, &session.IssuedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, zkerr.ErrNoActiveSession
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return session, nil
}

// DeleteSession removes the user's session.
func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	n, err := s.exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return zkerr.ErrNoActiveSession
	}
	return nil
}

// DeleteSessionToken removes the user's session only while it carries tokenID.
func (s *PostgresStore) DeleteSessionToken(ctx context.Context, userID, tokenID string) (bool, error) {
	n, err := s.exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND token_id = $2`, userID, tokenID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CleanupExpiredSessions deletes every session with expires_at <= now.
func (s *PostgresStore) CleanupExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Stats counts identities and sessions.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	query :=
		`SELECT (SELECT count(*) FROM identities), (SELECT count(*) FROM sessions)`

	var stats Stats
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Identities, &stats.Sessions); err != nil {
		return Stats{}, fmt.Errorf("db error: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*Identity, error) {
	var (
		identity Identity
		value    string
	)

	if err := row.Scan(&identity.UserID, &value, &identity.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt verification value for %q", identity.UserID)
	}
	identity.VerificationValue = v

	return &identity, nil
}
