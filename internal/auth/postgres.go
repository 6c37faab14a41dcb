package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"atelier.dev/internal/ids"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore         { return &userStore{db: s.db} }
func (s *PGStore) UserTypes(context.Context) UserTypeStore { return &userTypeStore{db: s.db} }
func (s *PGStore) OAuth(context.Context) OAuthStore        { return &oauthStore{db: s.db} }
func (s *PGStore) Attempts(context.Context) AttemptStore   { return &attemptStore{db: s.db} }
func (s *PGStore) Sessions(context.Context) SessionStore   { return &sessionStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `user_id, user_name, first_name, last_name, email, phone_number,
	profile_picture, password, user_type_id, email_verified, phone_verified,
	admin_approved, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u          User
		password   sql.NullString
		userTypeID sql.NullInt64
		picture    sql.NullString
		updatedAt  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.UserName, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber,
		&picture, &password, &userTypeID, &u.EmailVerified, &u.PhoneVerified,
		&u.AdminApproved, &u.IsActive, &u.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.ProfilePicture = picture.String
	if password.Valid {
		u.PasswordHash = &password.String
	}
	if userTypeID.Valid {
		u.UserTypeID = &userTypeID.Int64
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where user_id=$1 and deleted_at is null`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1) and deleted_at is null`, email)
	return scanUser(row)
}

func (s *userStore) FindByPhone(ctx context.Context, phone string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where phone_number=$1 and deleted_at is null`, phone)
	return scanUser(row)
}

func (s *userStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `update users set last_login_at=$2, updated_at=$2 where user_id=$1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// User type store ----------------------------------------------------------
type userTypeStore struct{ db *sql.DB }

func (s *userTypeStore) Find(ctx context.Context, id int64) (*UserType, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_type_id, type_name, coalesce(description, ''), is_active
		   from user_types where user_type_id=$1 and deleted_at is null`, id)
	var ut UserType
	if err := row.Scan(&ut.ID, &ut.TypeName, &ut.Description, &ut.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ut, nil
}

// OAuth store --------------------------------------------------------------
type oauthStore struct{ db *sql.DB }

func (s *oauthStore) ProvidersForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct provider from oauth_metadata where user_id=$1 and deleted_at is null order by provider`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Attempt store ------------------------------------------------------------
type attemptStore struct{ db *sql.DB }

const attemptColumns = `attempt_id, user_id, attempt_count, is_locked, lockout_until,
	last_attempt_at, coalesce(ip_address, ''), coalesce(user_agent, ''), created_at, updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*LoginAttempt, error) {
	var (
		a     LoginAttempt
		until sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.AttemptCount, &a.IsLocked, &until,
		&a.LastAttemptAt, &a.IPAddress, &a.UserAgent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if until.Valid {
		t := until.Time
		a.LockoutUntil = &t
	}
	return &a, nil
}

func (s *attemptStore) Find(ctx context.Context, userID string) (*LoginAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+attemptColumns+` from login_attempts where user_id=$1`, userID)
	return scanAttempt(row)
}

// IncrementFailure upserts the counter in one statement so concurrent failures never
// lose an increment. An expired lock restarts the count.
func (s *attemptStore) IncrementFailure(ctx context.Context, userID string, at time.Time, client ClientInfo) (*LoginAttempt, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into login_attempts(attempt_id, user_id, attempt_count, is_locked, last_attempt_at,
			ip_address, user_agent, created_at, updated_at)
		values($1, $2, 1, false, $3, $4, $5, $3, $3)
		on conflict (user_id) do update set
			attempt_count = case
				when login_attempts.is_locked and login_attempts.lockout_until < excluded.last_attempt_at then 1
				else login_attempts.attempt_count + 1
			end,
			is_locked = case
				when login_attempts.is_locked and login_attempts.lockout_until < excluded.last_attempt_at then false
				else login_attempts.is_locked
			end,
			lockout_until = case
				when login_attempts.is_locked and login_attempts.lockout_until < excluded.last_attempt_at then null
				else login_attempts.lockout_until
			end,
			last_attempt_at = excluded.last_attempt_at,
			ip_address = excluded.ip_address,
			user_agent = excluded.user_agent,
			updated_at = excluded.updated_at
		returning `+attemptColumns,
		ids.NewAt(at), userID, at, client.IPAddress, client.UserAgent,
	)
	rec, err := scanAttempt(row)
	if err != nil {
		return nil, fmt.Errorf("increment login attempts: %w", err)
	}
	return rec, nil
}

func (s *attemptStore) Lock(ctx context.Context, userID string, until, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update login_attempts set is_locked=true, lockout_until=$2, updated_at=$3 where user_id=$1`,
		userID, until, at)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *attemptStore) Reset(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update login_attempts set attempt_count=0, is_locked=false, lockout_until=null, updated_at=$2
		  where user_id=$1`, userID, at)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

// Session store ------------------------------------------------------------
type sessionStore struct{ db *sql.DB }

const sessionColumns = `session_id, user_id, refresh_token_hash, is_active, expires_at,
	coalesce(user_agent, ''), coalesce(ip_address, ''), created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.IsActive, &sess.ExpiresAt,
		&sess.UserAgent, &sess.IPAddress, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into login_sessions(session_id, user_id, refresh_token_hash, is_active, expires_at,
			user_agent, ip_address, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.UserID, sess.TokenHash, sess.IsActive, sess.ExpiresAt,
		sess.UserAgent, sess.IPAddress, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		switch pgErrorCode(err) {
		case pgErrUniqueViolation:
			return ErrConflict
		case pgErrForeignKeyViolation:
			return ErrNotFound
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sessionStore) FindActiveByTokenHash(ctx context.Context, hash string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from login_sessions
		  where refresh_token_hash=$1 and is_active=true limit 1`, hash)
	return scanSession(row)
}

func (s *sessionStore) IsValid(ctx context.Context, userID, hash string, now time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from login_sessions
		  where refresh_token_hash=$1 and user_id=$2 and is_active=true and expires_at > $3)`,
		hash, userID, now).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *sessionStore) Deactivate(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`update login_sessions set is_active=false, updated_at=now() where session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sessionStore) DeactivateAll(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update login_sessions set is_active=false, updated_at=now() where user_id=$1 and is_active=true`, userID)
	if err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}
	return nil
}

func (s *sessionStore) ListActive(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+sessionColumns+` from login_sessions
		  where user_id=$1 and is_active=true and expires_at > $2
		  order by created_at desc, session_id desc`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *sess)
	}
	return res, rows.Err()
}

func (s *sessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from login_sessions where expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
