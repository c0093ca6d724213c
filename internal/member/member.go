package member

import (
	"time"

	"github.com/google/uuid"
)

// Member is a person with an application or membership record.
//
// Invariants:
//   - Email is unique across all members, stored lowercase and trimmed
//   - Status is always a member of the closed enumeration
//   - CreatedAt is immutable after construction; UpdatedAt is touched on
//     every mutation
//   - ApprovedAt/ExpiresAt are set on transition into the active-like set
//     from outside it and are never cleared by unrelated field edits
type Member struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Phone            string     `json:"phone,omitempty"`
	DiscordHandle    string     `json:"discord_handle,omitempty"`
	TelegramHandle   string     `json:"telegram_handle,omitempty"`
	StudentID        string     `json:"student_id,omitempty"`
	EnrollmentNumber string     `json:"enrollment_number,omitempty"`
	Track            string     `json:"track"`
	Status           Status     `json:"status"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// TrackOther is the sentinel enrollment track assigned when an import row
// carries none.
const TrackOther = "Other"

// FullName returns the display name used in conflict messages and audit logs.
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// HasContact reports whether at least one contact channel is populated.
func (m *Member) HasContact() bool {
	return m.Phone != "" || m.DiscordHandle != "" || m.TelegramHandle != ""
}

// CountsAsActive is the predicate behind the public "active members"
// statistic. Whether honorary presidents count has flip-flopped over the
// project's lifetime; the default here is that they do (ActiveLike includes
// them). Callers wanting the other interpretation pass their own predicate to
// Service.Stats rather than editing this one.
func (m *Member) CountsAsActive() bool {
	return m.Status.ActiveLike()
}

// Approve records the transition into the active-like set: approval now,
// expiry at the end of the academic year. Callers must invoke this exactly
// once per transition, never on edits that keep the status active-like.
func (m *Member) Approve(now time.Time) {
	approved := now
	expires := MembershipExpiry(now)
	m.ApprovedAt = &approved
	m.ExpiresAt = &expires
}

// HistoryEntry is an immutable, append-only record of one status transition.
// PriorStatus is nil for the entry written at initial creation.
type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	MemberID    int64     `json:"member_id"`
	PriorStatus *Status   `json:"prior_status"`
	NewStatus   Status    `json:"new_status"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewHistoryEntry builds a ledger entry for a transition of memberID from
// prior (nil at creation) to next.
func NewHistoryEntry(memberID int64, prior *Status, next Status, reason string, now time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:          uuid.New(),
		MemberID:    memberID,
		PriorStatus: prior,
		NewStatus:   next,
		Reason:      reason,
		CreatedAt:   now,
	}
}

// Patch carries a partial member update. Nil fields are left untouched;
// present fields overwrite the stored value after per-field normalization.
type Patch struct {
	FirstName        *string `json:"first_name,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	DiscordHandle    *string `json:"discord_handle,omitempty"`
	TelegramHandle   *string `json:"telegram_handle,omitempty"`
	StudentID        *string `json:"student_id,omitempty"`
	EnrollmentNumber *string `json:"enrollment_number,omitempty"`
	Track            *string `json:"track,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	Status           *string `json:"status,omitempty"`
	Reason           *string `json:"reason,omitempty"`
}

// Empty reports whether the patch carries no recognized field at all. Reason
// alone does not make a patch: it only annotates a status change.
func (p Patch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Phone == nil && p.DiscordHandle == nil && p.TelegramHandle == nil &&
		p.StudentID == nil && p.EnrollmentNumber == nil && p.Track == nil &&
		p.Notes == nil && p.Status == nil
}

// Application is the raw payload of a public membership application, before
// validation and normalization.
type Application struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DiscordHandle    string `json:"discord_handle"`
	TelegramHandle   string `json:"telegram_handle"`
	StudentID        string `json:"student_id"`
	EnrollmentNumber string `json:"enrollment_number"`
	Track            string `json:"track"`
}
