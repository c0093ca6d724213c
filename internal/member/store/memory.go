package store

import (
	"context"
	"sort"
	"sync"

	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded Store for unit tests and dev mode. The mutex
// spans every check-and-write, so the uniqueness contract holds under
// concurrent use exactly as the SQL predicate does in PostgreSQL.
type InMemory struct {
	mu      sync.Mutex
	nextID  int64
	members map[int64]*member.Member
	history []*member.HistoryEntry
}

func NewInMemory() *InMemory {
	return &InMemory{
		nextID:  1,
		members: make(map[int64]*member.Member),
	}
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyMember(m), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findByEmailLocked(member.NormalizeEmail(email))
	if m == nil {
		return nil, sentinel.ErrNotFound
	}
	return copyMember(m), nil
}

func (s *InMemory) Insert(_ context.Context, m *member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmailLocked(m.Email) != nil {
		return sentinel.ErrAlreadyUsed
	}
	if m.Status.UniqueBureau() {
		for _, other := range s.members {
			if other.Status == m.Status {
				return sentinel.ErrConflict
			}
		}
	}
	m.ID = s.nextID
	s.nextID++
	s.members[m.ID] = copyMember(m)
	return nil
}

func (s *InMemory) Update(_ context.Context, m *member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if other := s.findByEmailLocked(m.Email); other != nil && other.ID != m.ID {
		return sentinel.ErrAlreadyUsed
	}
	if m.Status.UniqueBureau() {
		for _, other := range s.members {
			if other.ID != m.ID && other.Status == m.Status {
				return sentinel.ErrConflict
			}
		}
	}
	s.members[m.ID] = copyMember(m)
	return nil
}

func (s *InMemory) UpdateClaimingRole(_ context.Context, m *member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, other := range s.members {
		if other.ID != m.ID && other.Status == m.Status {
			return sentinel.ErrConflict
		}
	}
	s.members[m.ID] = copyMember(m)
	return nil
}

func (s *InMemory) HolderOf(_ context.Context, role member.Status) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Status == role {
			return copyMember(m), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) UniqueRoleHolders(_ context.Context) (map[member.Status]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holders := make(map[member.Status]*member.Member)
	for _, m := range s.members {
		if m.Status.UniqueBureau() {
			holders[m.Status] = copyMember(m)
		}
	}
	return holders, nil
}

func (s *InMemory) List(_ context.Context) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*member.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, copyMember(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[member.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[member.Status]int)
	for _, m := range s.members {
		counts[m.Status]++
	}
	return counts, nil
}

func (s *InMemory) AppendHistory(_ context.Context, entry *member.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	if entry.PriorStatus != nil {
		prior := *entry.PriorStatus
		e.PriorStatus = &prior
	}
	s.history = append(s.history, &e)
	return nil
}

func (s *InMemory) HistoryByMember(_ context.Context, memberID int64) ([]*member.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*member.HistoryEntry
	for _, e := range s.history {
		if e.MemberID == memberID {
			entry := *e
			out = append(out, &entry)
		}
	}
	return out, nil
}

func (s *InMemory) findByEmailLocked(email string) *member.Member {
	for _, m := range s.members {
		if m.Email == email {
			return m
		}
	}
	return nil
}

func copyMember(m *member.Member) *member.Member {
	c := *m
	if m.ApprovedAt != nil {
		t := *m.ApprovedAt
		c.ApprovedAt = &t
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
