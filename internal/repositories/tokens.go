package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/ibx/internal/ibroadcast"
)

// DefaultProfile is the profile used when none is named on the command line.
const DefaultProfile = "default"

// TokenRepository persists OAuth token sets, one row per profile.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save upserts the token set for a profile. Called after every login and
// every refresh, so it must be safe to run repeatedly.
func (r *TokenRepository) Save(profile string, ts ibroadcast.TokenSet) error {
	if profile == "" {
		profile = DefaultProfile
	}

	query := `
		INSERT INTO token_sets (profile, access_token, refresh_token, scope, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	var expiresAt any
	if !ts.ExpiresAt.IsZero() {
		expiresAt = ts.ExpiresAt
	}

	// Scope is stored space-separated, matching the OAuth wire format.
	_, err := r.db.Exec(query, profile, ts.AccessToken, ts.RefreshToken, strings.Join(ts.Scope, " "), expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save tokens for profile %s: %w", profile, err)
	}

	return nil
}

// Load retrieves the token set for a profile.
func (r *TokenRepository) Load(profile string) (ibroadcast.TokenSet, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	query := `
		SELECT access_token, refresh_token, scope, expires_at
		FROM token_sets
		WHERE profile = ?
	`

	var (
		ts        ibroadcast.TokenSet
		scope     string
		expiresAt sql.NullTime
	)

	err := r.db.QueryRow(query, profile).Scan(&ts.AccessToken, &ts.RefreshToken, &scope, &expiresAt)
	if err == sql.ErrNoRows {
		return ibroadcast.TokenSet{}, fmt.Errorf("no tokens for profile %s", profile)
	}
	if err != nil {
		return ibroadcast.TokenSet{}, fmt.Errorf("failed to query tokens: %w", err)
	}

	if scope != "" {
		ts.Scope = strings.Fields(scope)
	}
	if expiresAt.Valid {
		ts.ExpiresAt = expiresAt.Time
	}

	return ts, nil
}

// Delete removes the token set for a profile.
func (r *TokenRepository) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	result, err := r.db.Exec("DELETE FROM token_sets WHERE profile = ?", profile)
	if err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no tokens for profile %s", profile)
	}

	return nil
}

// Profiles lists all profiles that have saved tokens, newest first.
func (r *TokenRepository) Profiles() ([]string, error) {
	rows, err := r.db.Query("SELECT profile FROM token_sets ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []string
	for rows.Next() {
		var profile string
		if err := rows.Scan(&profile); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return profiles, nil
}
