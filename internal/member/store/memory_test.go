package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newMember(email string, status member.Status) *member.Member {
	now := time.Now()
	return &member.Member{
		Email:     email,
		FirstName: "Jean",
		LastName:  "Dupont",
		Track:     "L3",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *MemoryStoreSuite) seed(email string, status member.Status) *member.Member {
	m := s.newMember(email, status)
	s.Require().NoError(s.store.Insert(s.ctx, m))
	return m
}

func (s *MemoryStoreSuite) TestInsertAndLookups() {
	s.Run("insert assigns an id and is findable both ways", func() {
		m := s.seed("jean@example.com", member.StatusPending)
		s.NotZero(m.ID)

		byID, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal(m.Email, byID.Email)

		byEmail, err := s.store.FindByEmail(s.ctx, "JEAN@example.com")
		s.Require().NoError(err)
		s.Equal(m.ID, byEmail.ID)
	})

	s.Run("unknown lookups return ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, 9999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "nobody@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate email is rejected", func() {
		s.seed("dup@example.com", member.StatusPending)
		err := s.store.Insert(s.ctx, s.newMember("dup@example.com", member.StatusPending))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("returned members are copies", func() {
		m := s.seed("copy@example.com", member.StatusPending)
		found, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		found.FirstName = "Mutated"

		again, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal("Jean", again.FirstName)
	})
}

func (s *MemoryStoreSuite) TestRoleClaims() {
	s.Run("claiming a free seat succeeds", func() {
		m := s.seed("pres@example.com", member.StatusActive)
		m.Status = member.StatusPresident
		s.Require().NoError(s.store.UpdateClaimingRole(s.ctx, m))

		holder, err := s.store.HolderOf(s.ctx, member.StatusPresident)
		s.Require().NoError(err)
		s.Equal(m.ID, holder.ID)
	})

	s.Run("claiming a taken seat conflicts", func() {
		s.seed("sec1@example.com", member.StatusSecretary)
		other := s.seed("sec2@example.com", member.StatusActive)
		other.Status = member.StatusSecretary
		s.Require().ErrorIs(s.store.UpdateClaimingRole(s.ctx, other), sentinel.ErrConflict)
	})

	s.Run("self-reassignment is a no-op success", func() {
		m := s.seed("tres@example.com", member.StatusTreasurer)
		m.FirstName = "Marie"
		s.Require().NoError(s.store.UpdateClaimingRole(s.ctx, m))

		found, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal("Marie", found.FirstName)
		s.Equal(member.StatusTreasurer, found.Status)
	})

	s.Run("claiming for an unknown member is not found", func() {
		ghost := s.newMember("ghost@example.com", member.StatusPresident)
		ghost.ID = 4242
		s.Require().ErrorIs(s.store.UpdateClaimingRole(s.ctx, ghost), sentinel.ErrNotFound)
	})

	s.Run("holders snapshot covers only unique seats", func() {
		s.seed("vp@example.com", member.StatusVicePresident)
		s.seed("hp@example.com", member.StatusHonoraryPresident)

		holders, err := s.store.UniqueRoleHolders(s.ctx)
		s.Require().NoError(err)
		s.Contains(holders, member.StatusVicePresident)
		s.NotContains(holders, member.StatusHonoraryPresident)
	})
}

// TestInsertSeatGuard verifies the insert path enforces the same one-holder
// rule the partial unique index does in PostgreSQL, so a fresh row can never
// seat a second president.
func (s *MemoryStoreSuite) TestInsertSeatGuard() {
	s.Run("inserting a second holder for a seat conflicts", func() {
		s.seed("ins1@example.com", member.StatusPresident)
		err := s.store.Insert(s.ctx, s.newMember("ins2@example.com", member.StatusPresident))
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		counts, err := s.store.CountByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, counts[member.StatusPresident])
	})

	s.Run("inserting several honorary presidents is fine", func() {
		s.seed("hp3@example.com", member.StatusHonoraryPresident)
		s.seed("hp4@example.com", member.StatusHonoraryPresident)
	})

	s.Run("plain update cannot sneak into a taken seat", func() {
		m := s.seed("sneak@example.com", member.StatusActive)
		m.Status = member.StatusPresident
		s.Require().ErrorIs(s.store.Update(s.ctx, m), sentinel.ErrConflict)
	})
}

// TestConcurrentRoleClaim verifies the store-level atomicity of the claim:
// many goroutines racing for the same seat yield exactly one winner.
func (s *MemoryStoreSuite) TestConcurrentRoleClaim() {
	const contenders = 32
	ids := make([]int64, contenders)
	for i := range ids {
		m := s.seed(string(rune('a'+i%26))+string(rune('0'+i/26))+"@example.com", member.StatusActive)
		ids[i] = m.ID
	}

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m, err := s.store.FindByID(s.ctx, id)
			if err != nil {
				s.T().Errorf("find %d: %v", id, err)
				return
			}
			m.Status = member.StatusPresident
			switch err := s.store.UpdateClaimingRole(s.ctx, m); {
			case err == nil:
				successes.Add(1)
			default:
				conflicts.Add(1)
			}
		}(id)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one claim should win")
	s.Equal(int32(contenders-1), conflicts.Load())
}

func (s *MemoryStoreSuite) TestHistoryLedger() {
	m := s.seed("hist@example.com", member.StatusPending)
	prior := member.StatusPending
	now := time.Now()

	s.Require().NoError(s.store.AppendHistory(s.ctx, member.NewHistoryEntry(m.ID, nil, member.StatusPending, "Application submitted", now)))
	s.Require().NoError(s.store.AppendHistory(s.ctx, member.NewHistoryEntry(m.ID, &prior, member.StatusActive, "Approved", now.Add(time.Minute))))

	entries, err := s.store.HistoryByMember(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Nil(entries[0].PriorStatus)
	s.Equal(member.StatusPending, entries[0].NewStatus)
	s.Require().NotNil(entries[1].PriorStatus)
	s.Equal(member.StatusPending, *entries[1].PriorStatus)
	s.Equal(member.StatusActive, entries[1].NewStatus)

	other, err := s.store.HistoryByMember(s.ctx, 9999)
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *MemoryStoreSuite) TestCountByStatus() {
	s.seed("a1@example.com", member.StatusActive)
	s.seed("a2@example.com", member.StatusActive)
	s.seed("p1@example.com", member.StatusPending)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[member.StatusActive])
	s.Equal(1, counts[member.StatusPending])
	s.Zero(counts[member.StatusTreasurer])
}
