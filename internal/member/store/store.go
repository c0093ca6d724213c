// Package store persists members, the transition history ledger, and the
// unique bureau-role invariant. Stores are interface-driven so domain logic
// tests run against the in-memory implementation while deployments use
// PostgreSQL.
package store

import (
	"context"

	"github.com/info-evry/astro-join/internal/member"
)

// Store is the persistence contract consumed by the member service.
//
// UpdateClaimingRole is the uniqueness primitive: it applies the whole member
// update only if no other row currently holds m.Status, evaluated atomically
// by the storage engine, and returns sentinel.ErrConflict otherwise. The
// predicate always excludes the row being updated by its own identity, so
// self-reassignment is a plain success. Callers must not substitute a
// read-then-write sequence: that has a race window between the check and the
// write under concurrent requests.
type Store interface {
	FindByID(ctx context.Context, id int64) (*member.Member, error)
	FindByEmail(ctx context.Context, email string) (*member.Member, error)
	// Insert assigns m.ID. Returns sentinel.ErrAlreadyUsed when the email is
	// taken.
	Insert(ctx context.Context, m *member.Member) error
	Update(ctx context.Context, m *member.Member) error
	UpdateClaimingRole(ctx context.Context, m *member.Member) error
	// HolderOf returns the current holder of a unique bureau role, or
	// sentinel.ErrNotFound when the seat is empty. Only used to build error
	// messages after a conflict, so it is allowed to race.
	HolderOf(ctx context.Context, role member.Status) (*member.Member, error)
	// UniqueRoleHolders snapshots all four unique seats in one call.
	UniqueRoleHolders(ctx context.Context) (map[member.Status]*member.Member, error)
	List(ctx context.Context) ([]*member.Member, error)
	CountByStatus(ctx context.Context) (map[member.Status]int, error)

	// History ledger: append-only, never updated or deleted.
	AppendHistory(ctx context.Context, entry *member.HistoryEntry) error
	HistoryByMember(ctx context.Context, memberID int64) ([]*member.HistoryEntry, error)
}
