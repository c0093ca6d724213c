package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/pkg/platform/sentinel"
)

// Postgres persists members and the history ledger in PostgreSQL. The store
// is pure I/O; transition rules and side-effect computation belong to the
// service.
//
// The unique bureau-role invariant is enforced by the storage engine twice
// over: UpdateClaimingRole's NOT EXISTS predicate makes the claim a single
// conditional mutation, and the partial unique index on the four unique
// statuses rejects any write that would seat a second holder, closing the
// write-skew window between two concurrent claims for different members.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const memberColumns = `id, email, first_name, last_name, phone, discord_handle, telegram_handle,
	student_id, enrollment_number, track, status, notes, created_at, updated_at, approved_at, expires_at`

func (s *Postgres) FindByID(ctx context.Context, id int64) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find member by id: %w", err)
	}
	return m, nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`
	m, err := scanMember(s.db.QueryRowContext(ctx, query, member.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find member by email: %w", err)
	}
	return m, nil
}

func (s *Postgres) Insert(ctx context.Context, m *member.Member) error {
	query := `
		INSERT INTO members (email, first_name, last_name, phone, discord_handle, telegram_handle,
			student_id, enrollment_number, track, status, notes, created_at, updated_at, approved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		m.Email, m.FirstName, m.LastName, m.Phone, m.DiscordHandle, m.TelegramHandle,
		m.StudentID, m.EnrollmentNumber, m.Track, m.Status, m.Notes,
		m.CreatedAt, m.UpdatedAt, m.ApprovedAt, m.ExpiresAt,
	).Scan(&m.ID)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, m *member.Member) error {
	query := `
		UPDATE members SET email = $2, first_name = $3, last_name = $4, phone = $5,
			discord_handle = $6, telegram_handle = $7, student_id = $8, enrollment_number = $9,
			track = $10, status = $11, notes = $12, updated_at = $13, approved_at = $14, expires_at = $15
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		m.ID, m.Email, m.FirstName, m.LastName, m.Phone, m.DiscordHandle, m.TelegramHandle,
		m.StudentID, m.EnrollmentNumber, m.Track, m.Status, m.Notes,
		m.UpdatedAt, m.ApprovedAt, m.ExpiresAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update member: %w", err)
	}
	return requireOneRow(res, sentinel.ErrNotFound)
}

// UpdateClaimingRole applies the update only if no other member currently
// holds m.Status. The predicate excludes the member's own row, so keeping an
// already-held role is a no-op success, never a conflict.
func (s *Postgres) UpdateClaimingRole(ctx context.Context, m *member.Member) error {
	query := `
		UPDATE members SET email = $2, first_name = $3, last_name = $4, phone = $5,
			discord_handle = $6, telegram_handle = $7, student_id = $8, enrollment_number = $9,
			track = $10, status = $11, notes = $12, updated_at = $13, approved_at = $14, expires_at = $15
		WHERE id = $1
		AND NOT EXISTS (SELECT 1 FROM members other WHERE other.status = $11 AND other.id <> $1)
	`
	res, err := s.db.ExecContext(ctx, query,
		m.ID, m.Email, m.FirstName, m.LastName, m.Phone, m.DiscordHandle, m.TelegramHandle,
		m.StudentID, m.EnrollmentNumber, m.Track, m.Status, m.Notes,
		m.UpdatedAt, m.ApprovedAt, m.ExpiresAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update member claiming role: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member claiming role: %w", err)
	}
	if rows == 1 {
		return nil
	}
	// Zero rows: either the member vanished or the seat is taken. A plain
	// read settles it; the caller only needs the answer for its error
	// message, so this read is allowed to race.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
		return fmt.Errorf("update member claiming role: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *Postgres) HolderOf(ctx context.Context, role member.Status) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE status = $1 LIMIT 1`
	m, err := scanMember(s.db.QueryRowContext(ctx, query, role))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role holder: %w", err)
	}
	return m, nil
}

func (s *Postgres) UniqueRoleHolders(ctx context.Context) (map[member.Status]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE status IN ('president', 'vice_president', 'secretary', 'treasurer')`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load unique role holders: %w", err)
	}
	defer rows.Close()

	holders := make(map[member.Status]*member.Member)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("load unique role holders: %w", err)
		}
		holders[m.Status] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load unique role holders: %w", err)
	}
	return holders, nil
}

func (s *Postgres) List(ctx context.Context) ([]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[member.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM members GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count members by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[member.Status]int)
	for rows.Next() {
		var status member.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("count members by status: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count members by status: %w", err)
	}
	return counts, nil
}

func (s *Postgres) AppendHistory(ctx context.Context, entry *member.HistoryEntry) error {
	query := `
		INSERT INTO member_history (id, member_id, prior_status, new_status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var prior *string
	if entry.PriorStatus != nil {
		p := string(*entry.PriorStatus)
		prior = &p
	}
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.MemberID, prior, entry.NewStatus, entry.Reason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Postgres) HistoryByMember(ctx context.Context, memberID int64) ([]*member.HistoryEntry, error) {
	query := `
		SELECT id, member_id, prior_status, new_status, reason, created_at
		FROM member_history WHERE member_id = $1 ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("history by member: %w", err)
	}
	defer rows.Close()

	var out []*member.HistoryEntry
	for rows.Next() {
		var e member.HistoryEntry
		var prior sql.NullString
		if err := rows.Scan(&e.ID, &e.MemberID, &prior, &e.NewStatus, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history by member: %w", err)
		}
		if prior.Valid {
			p := member.Status(prior.String)
			e.PriorStatus = &p
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history by member: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*member.Member, error) {
	var m member.Member
	var approvedAt, expiresAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.Phone, &m.DiscordHandle, &m.TelegramHandle,
		&m.StudentID, &m.EnrollmentNumber, &m.Track, &m.Status, &m.Notes,
		&m.CreatedAt, &m.UpdatedAt, &approvedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		m.ApprovedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		m.ExpiresAt = &t
	}
	return &m, nil
}

func requireOneRow(res sql.Result, missing error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}

// mapUniqueViolation translates Postgres unique violations into sentinels the
// service understands, keyed by constraint: the email unique constraint maps
// to ErrAlreadyUsed, the partial bureau-role index to ErrConflict.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if pgErr.ConstraintName == "members_unique_bureau_role" {
		return sentinel.ErrConflict
	}
	return sentinel.ErrAlreadyUsed
}
