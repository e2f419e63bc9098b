package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

const uniqueViolation = "23505"

const accountColumns = `id, name, name_lower, salt, password_hash, session_token, state, created_at, updated_at`

// PostgresAccountRepository implements account persistence on PostgreSQL.
type PostgresAccountRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAccountRepository creates a PostgresAccountRepository.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{DB: db}
}

// CreateAccount inserts acc. A duplicate name_lower is reported as
// errs.ErrConflict.
func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, acc models.Account) error {
	state, err := json.Marshal(acc.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, acc.ID, acc.Name, acc.NameLower, acc.PasswordSalt, acc.PasswordHash, acc.SessionToken, state, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errs.ErrConflict
		}
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

// GetAccountByName finds an account by case-insensitive name.
func (r *PostgresAccountRepository) GetAccountByName(ctx context.Context, name string) (models.Account, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name_lower = $1`, strings.ToLower(name))
	return scanAccount(row)
}

// GetAccountByToken finds the account holding token as its session.
func (r *PostgresAccountRepository) GetAccountByToken(ctx context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, errs.ErrNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE session_token = $1`, token)
	return scanAccount(row)
}

// SetSessionToken replaces the session token of account id.
func (r *PostgresAccountRepository) SetSessionToken(ctx context.Context, id, token string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET session_token = $2, updated_at = $3 WHERE id = $1
	`, id, token, at)
	if err != nil {
		return fmt.Errorf("SetSessionToken: %w", err)
	}
	return expectOneRow(res)
}

// SaveState replaces the stored state of account id.
func (r *PostgresAccountRepository) SaveState(ctx context.Context, id string, state game.PlayerState, at time.Time) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET state = $2, updated_at = $3 WHERE id = $1
	`, id, data, at)
	if err != nil {
		return fmt.Errorf("SaveState: %w", err)
	}
	return expectOneRow(res)
}

// ExpireSessions clears the tokens of accounts untouched since cutoff.
func (r *PostgresAccountRepository) ExpireSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET session_token = '' WHERE session_token <> '' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ExpireSessions: %w", err)
	}
	return res.RowsAffected()
}

func scanAccount(row *sql.Row) (models.Account, error) {
	var (
		acc   models.Account
		state []byte
	)
	err := row.Scan(&acc.ID, &acc.Name, &acc.NameLower, &acc.PasswordSalt, &acc.PasswordHash,
		&acc.SessionToken, &state, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, errs.ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("scan account: %w", err)
	}
	// PlayerState decodes leniently, so a drifted document still loads.
	_ = json.Unmarshal(state, &acc.State)
	return acc, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PostgresLeaderboardRepository implements leaderboard persistence on
// PostgreSQL.
type PostgresLeaderboardRepository struct {
	DB   *sql.DB
	Size int
}

// NewPostgresLeaderboardRepository creates a repository capping the board
// at size rows.
func NewPostgresLeaderboardRepository(db *sql.DB, size int) *PostgresLeaderboardRepository {
	return &PostgresLeaderboardRepository{DB: db, Size: size}
}

// ListLeaderboard returns the board ordered by aura.
func (r *PostgresLeaderboardRepository) ListLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT name, aura, rebirths, updated_at, account_id FROM leaderboard ORDER BY aura DESC LIMIT $1
	`, r.Size)
	if err != nil {
		return nil, fmt.Errorf("ListLeaderboard: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// UpdateLeaderboard applies fn to the board inside a transaction holding an
// exclusive table lock, then rewrites the table with the result.
func (r *PostgresLeaderboardRepository) UpdateLeaderboard(ctx context.Context, fn func([]models.LeaderboardEntry) []models.LeaderboardEntry) ([]models.LeaderboardEntry, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE leaderboard IN EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock leaderboard: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT name, aura, rebirths, updated_at, account_id FROM leaderboard ORDER BY aura DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	entries, err := scanEntries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	entries = leaderboard.Normalize(fn(entries), r.Size)

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard`); err != nil {
		return nil, fmt.Errorf("clear leaderboard: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO leaderboard (name, aura, rebirths, updated_at, account_id)
			VALUES ($1, $2, $3, $4, $5)
		`, e.Name, e.Aura, e.Rebirths, e.UpdatedAt, e.AccountID); err != nil {
			return nil, fmt.Errorf("insert leaderboard: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return entries, nil
}

func scanEntries(rows *sql.Rows) ([]models.LeaderboardEntry, error) {
	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Aura, &e.Rebirths, &e.UpdatedAt, &e.AccountID); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}
