package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/rollcall/pkg/pg"
)

// pgDB is satisfied by *pgxpool.Pool and pgx.Tx.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pgColumns maps a purpose to its token, expiry and attempts columns.
var pgColumns = map[Purpose][3]string{
	PurposePasswordReset:     {"reset_token", "reset_expires_at", ""},
	PurposeEmailVerification: {"verify_token", "verify_expires_at", ""},
	PurposeOTP:               {"otp_code", "otp_expires_at", "otp_attempts"},
}

const pgSelectColumns = `id::text, username, COALESCE(email, ''), full_name, secret_hash, role,
	is_active, is_email_verified, COALESCE(pending_email, ''),
	reset_token, reset_expires_at, verify_token, verify_expires_at,
	COALESCE(verified_token, ''), otp_code, otp_expires_at, otp_attempts,
	last_login_at, created_at, updated_at`

// PostgresStore is a Repository over the credentials and login_attempts
// tables created by Migrations.
type PostgresStore struct {
	db  pgDB
	now func() time.Time
}

var _ Repository = (*PostgresStore)(nil)

func NewPostgresStore(db pgDB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Record, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "id = $1", id)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Record, error) {
	return s.findOne(ctx, "username = $1", username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Record, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "lower(email) = lower($1)", email)
}

func (s *PostgresStore) FindByTokenFingerprint(ctx context.Context, purpose Purpose, fingerprint string) (*Record, error) {
	if fingerprint == "" {
		return nil, ErrNotFound
	}
	if purpose == PurposeEmailVerified {
		return s.findOne(ctx, "verified_token = $1", fingerprint)
	}
	cols, ok := pgColumns[purpose]
	if !ok {
		return nil, ErrInvalidRecord
	}
	return s.findOne(ctx, cols[0]+" = $1", fingerprint)
}

func (s *PostgresStore) UsernameTakenExcludingID(ctx context.Context, username, id string) (bool, error) {
	return s.exists(ctx, "username = $1", username, id)
}

func (s *PostgresStore) EmailTakenExcludingID(ctx context.Context, email, id string) (bool, error) {
	if email == "" {
		return false, nil
	}
	return s.exists(ctx, "lower(email) = lower($1)", email, id)
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	if err := validateNew(rec); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if uuid.Validate(rec.ID) != nil {
		return ErrInvalidRecord
	}

	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO credentials (
			id, username, email, full_name, secret_hash, role,
			is_active, is_email_verified, pending_email, created_at, updated_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		rec.ID, rec.Username, rec.Email, rec.FullName, rec.SecretHash, string(rec.Role),
		rec.IsActive, rec.IsEmailVerified, rec.PendingEmail, rec.CreatedAt, rec.UpdatedAt,
	)
	return translatePgErr(err)
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id string, upd Update) error {
	if err := upd.validate(); err != nil {
		return err
	}
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}

	sets, args := pgUpdate(upd, s.now().UTC(), 1)
	args = append(args, id)
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf("UPDATE credentials SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return translatePgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ConsumeToken(ctx context.Context, claim Claim, upd Update) (*Record, error) {
	if err := claim.validate(); err != nil {
		return nil, err
	}
	if err := upd.validate(); err != nil {
		return nil, err
	}
	if claim.RecordID != "" && uuid.Validate(claim.RecordID) != nil {
		return nil, ErrTokenNotFound
	}

	upd.Clear = append(upd.Clear[:len(upd.Clear):len(upd.Clear)], claim.Purpose)
	sets, args := pgUpdate(upd, s.now().UTC(), 1)
	where, args := pgClaimWhere(claim, args)

	query := fmt.Sprintf("UPDATE credentials SET %s WHERE %s RETURNING %s",
		strings.Join(sets, ", "), where, pgSelectColumns)

	rec, err := scanRecord(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if rec.LoginHistory, err = s.history(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) IncrementOTPAttempts(ctx context.Context, id, fingerprint string) error {
	if uuid.Validate(id) != nil {
		return ErrTokenNotFound
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE credentials SET otp_attempts = otp_attempts + 1, updated_at = $3
		 WHERE id = $1 AND otp_code = $2`,
		id, fingerprint, s.now().UTC(),
	)
	if err != nil {
		return translatePgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *PostgresStore) AppendLogin(ctx context.Context, id string, attempt LoginAttempt, limit int) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		// Row lock serializes concurrent appends for the same record.
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM credentials WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO login_attempts (credential_id, attempted_at, ip_address, user_agent, success)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, attempt.At, attempt.IPAddress, attempt.UserAgent, attempt.Success,
		); err != nil {
			return err
		}

		if limit > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM login_attempts
				 WHERE credential_id = $1 AND id NOT IN (
					SELECT id FROM login_attempts WHERE credential_id = $1 ORDER BY id DESC LIMIT $2
				 )`,
				id, limit,
			); err != nil {
				return err
			}
		}

		if attempt.Success {
			_, err := tx.Exec(ctx,
				`UPDATE credentials SET last_login_at = $2, updated_at = $3 WHERE id = $1`,
				id, attempt.At, s.now().UTC(),
			)
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE credentials SET updated_at = $2 WHERE id = $1`, id, s.now().UTC())
		return err
	})
	return translatePgErr(err)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, args ...any) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM credentials WHERE %s LIMIT 1", pgSelectColumns, where),
		args...,
	))
	if err != nil {
		return nil, err
	}
	if rec.LoginHistory, err = s.history(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) exists(ctx context.Context, where, value, excludeID string) (bool, error) {
	query := "SELECT EXISTS (SELECT 1 FROM credentials WHERE " + where
	args := []any{value}
	if excludeID != "" && uuid.Validate(excludeID) == nil {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += ")"

	var found bool
	if err := s.db.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, translatePgErr(err)
	}
	return found, nil
}

func (s *PostgresStore) history(ctx context.Context, id string) ([]LoginAttempt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT attempted_at, ip_address, user_agent, success
		 FROM login_attempts WHERE credential_id = $1 ORDER BY id ASC`,
		id,
	)
	if err != nil {
		return nil, translatePgErr(err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LoginAttempt, error) {
		var a LoginAttempt
		err := row.Scan(&a.At, &a.IPAddress, &a.UserAgent, &a.Success)
		return a, err
	})
	if err != nil {
		return nil, translatePgErr(err)
	}
	return attempts, nil
}

// pgUpdate renders upd as SET clauses. Placeholders start at $first.
func pgUpdate(upd Update, now time.Time, first int) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	bind := func(col, expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = "+expr, col, first+len(args)-1))
	}

	if upd.SecretHash != nil {
		bind("secret_hash", "$%d", *upd.SecretHash)
	}
	if upd.Email != nil {
		bind("email", "NULLIF($%d, '')", *upd.Email)
	}
	if upd.PendingEmail != nil && !upd.PromotePendingEmail {
		bind("pending_email", "NULLIF($%d, '')", *upd.PendingEmail)
	}
	if upd.PromotePendingEmail {
		sets = append(sets, "email = pending_email", "pending_email = NULL")
	}
	if upd.IsEmailVerified != nil {
		bind("is_email_verified", "$%d", *upd.IsEmailVerified)
	}
	if upd.IsActive != nil {
		bind("is_active", "$%d", *upd.IsActive)
	}
	if upd.VerifiedFingerprint != nil {
		bind("verified_token", "NULLIF($%d, '')", *upd.VerifiedFingerprint)
	}

	issued := map[string]bool{}
	if upd.Issue != nil {
		cols := pgColumns[upd.Issue.Purpose]
		bind(cols[0], "$%d", upd.Issue.Grant.Fingerprint)
		bind(cols[1], "$%d", upd.Issue.Grant.ExpiresAt.UTC())
		if cols[2] != "" {
			sets = append(sets, cols[2]+" = 0")
		}
		issued[cols[0]] = true
	}
	for _, p := range upd.Clear {
		cols := pgColumns[p]
		if issued[cols[0]] {
			continue
		}
		issued[cols[0]] = true
		sets = append(sets, cols[0]+" = NULL", cols[1]+" = NULL")
		if cols[2] != "" {
			sets = append(sets, cols[2]+" = 0")
		}
	}

	bind("updated_at", "$%d", now)
	return sets, args
}

// pgClaimWhere renders the conditional part of ConsumeToken, appending its
// arguments after args.
func pgClaimWhere(c Claim, args []any) (string, []any) {
	cols := pgColumns[c.Purpose]
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds := []string{
		cols[0] + " = " + next(c.Fingerprint),
		cols[1] + " > " + next(c.Now.UTC()),
	}
	if c.RecordID != "" {
		conds = append(conds, "id = "+next(c.RecordID))
	}
	if c.MaxAttempts > 0 && cols[2] != "" {
		conds = append(conds, cols[2]+" < "+next(c.MaxAttempts))
	}
	if c.Unverified {
		conds = append(conds, "is_email_verified = FALSE")
	}
	return strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r                          Record
		role                       string
		resetTok, verifyTok, otp   *string
		resetExp, verifyExp, otpEx *time.Time
	)
	err := row.Scan(
		&r.ID, &r.Username, &r.Email, &r.FullName, &r.SecretHash, &role,
		&r.IsActive, &r.IsEmailVerified, &r.PendingEmail,
		&resetTok, &resetExp, &verifyTok, &verifyExp,
		&r.VerifiedFingerprint, &otp, &otpEx, &r.OTPAttempts,
		&r.LastLoginAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, translatePgErr(err)
	}
	r.Role = Role(role)
	r.PasswordReset = pgGrant(resetTok, resetExp)
	r.EmailVerification = pgGrant(verifyTok, verifyExp)
	r.OTP = pgGrant(otp, otpEx)
	return &r, nil
}

func pgGrant(tok *string, exp *time.Time) *Grant {
	if tok == nil || exp == nil {
		return nil
	}
	return &Grant{Fingerprint: *tok, ExpiresAt: *exp}
}

func translatePgErr(err error) error {
	switch {
	case err == nil:
		return nil
	case pg.IsNotFoundError(err):
		return ErrNotFound
	case pg.IsDuplicateKeyError(err):
		return ErrDuplicateIdentity
	default:
		return errors.Join(ErrStorage, err)
	}
}
