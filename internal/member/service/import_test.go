package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/internal/member/store"
	"github.com/info-evry/astro-join/pkg/domainerrors"
	"github.com/info-evry/astro-join/pkg/requestcontext"
)

type ImportSuite struct {
	suite.Suite
	store *store.InMemory
	svc   *Service
	now   time.Time
	ctx   context.Context
}

func (s *ImportSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.svc = New(s.store, stubSettings{open: true}, discardLogger(), nil)
	s.now = time.Date(2026, time.February, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestImportSuite(t *testing.T) {
	suite.Run(t, new(ImportSuite))
}

func (s *ImportSuite) mustImport(raw string) *ImportResult {
	result, err := s.svc.ImportCSV(s.ctx, raw)
	s.Require().NoError(err)
	return result
}

func (s *ImportSuite) findByEmail(email string) *member.Member {
	m, err := s.store.FindByEmail(s.ctx, email)
	s.Require().NoError(err)
	return m
}

func (s *ImportSuite) TestDelimiterSniffing() {
	s.Run("comma", func() {
		result := s.mustImport("first_name,last_name,email\nJean,Dupont,jean@example.com\n")
		s.Equal(1, result.Imported)
		s.Empty(result.Errors)
	})

	s.Run("semicolon", func() {
		result := s.mustImport("first_name;last_name;email\nAnne;Morel;anne@example.com\n")
		s.Equal(1, result.Imported)
		s.Equal("Anne", s.findByEmail("anne@example.com").FirstName)
	})

	s.Run("tab", func() {
		result := s.mustImport("first_name\tlast_name\temail\nLuc\tBernard\tluc@example.com\n")
		s.Equal(1, result.Imported)
	})

	s.Run("comma wins ties", func() {
		// Three of each in the header: the tie goes to the comma, so the
		// semicolons stay inside the last, unrecognized cell.
		result := s.mustImport("prenom,nom,email,a;b;c;d\nJean,Dupont,tie@example.com,x\n")
		s.Equal(1, result.Imported)
	})
}

func (s *ImportSuite) TestHeaderMapping() {
	s.Run("accented french headers", func() {
		raw := "Prénom;Nom;E-mail;Téléphone;Filière;Statut\n" +
			"Chloé;Lefèvre;chloe@example.com;0612345678;M1;Membre actif\n"
		result := s.mustImport(raw)
		s.Equal(1, result.Imported)

		m := s.findByEmail("chloe@example.com")
		s.Equal("Chloé", m.FirstName)
		s.Equal("0612345678", m.Phone)
		s.Equal("M1", m.Track)
		s.Equal(member.StatusActive, m.Status)
	})

	s.Run("bom and casing are tolerated", func() {
		raw := "\uFEFFPRENOM,NOM,Courriel\nJean,Dupont,bom@example.com\n"
		result := s.mustImport(raw)
		s.Equal(1, result.Imported)
	})

	s.Run("unknown columns are ignored", func() {
		raw := "prenom,nom,email,cotisation payée\nJean,Dupont,extra@example.com,oui\n"
		result := s.mustImport(raw)
		s.Equal(1, result.Imported)
		s.Empty(result.Errors)
	})

	s.Run("missing required column fails the whole import", func() {
		_, err := s.svc.ImportCSV(s.ctx, "prenom,nom\nJean,Dupont\n")
		s.Require().True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
		s.Contains(err.Error(), "email")
	})

	s.Run("header only is rejected", func() {
		_, err := s.svc.ImportCSV(s.ctx, "prenom,nom,email\n")
		s.Require().True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})

	s.Run("empty input is rejected", func() {
		_, err := s.svc.ImportCSV(s.ctx, "")
		s.Require().True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})
}

func (s *ImportSuite) TestStatusLabels() {
	raw := "prenom,nom,email,statut\n" +
		"A,Un,u1@example.com,Trésorier\n" +
		"B,Deux,u2@example.com,Membre d'honneur\n" +
		"C,Trois,u3@example.com,\n" +
		"D,Quatre,u4@example.com,complètement inconnu\n"
	result := s.mustImport(raw)
	s.Equal(4, result.Imported)
	s.Empty(result.Errors)

	s.Equal(member.StatusTreasurer, s.findByEmail("u1@example.com").Status)
	s.Equal(member.StatusHonor, s.findByEmail("u2@example.com").Status)
	// Blank and unrecognized labels both fall back to active.
	s.Equal(member.StatusActive, s.findByEmail("u3@example.com").Status)
	s.Equal(member.StatusActive, s.findByEmail("u4@example.com").Status)
}

func (s *ImportSuite) TestRowLevelErrors() {
	s.Run("bad email skips only that row", func() {
		raw := "prenom,nom,email\n" +
			"Jean,Dupont,ok1@example.com\n" +
			"Anne,Morel,pas-un-email\n" +
			"Luc,Bernard,ok2@example.com\n"
		result := s.mustImport(raw)
		s.Equal(2, result.Imported)
		s.Equal(1, result.Skipped)
		s.Equal(3, result.Total)
		s.Require().Len(result.Errors, 1)
		s.Contains(result.Errors[0], "Row 2")
		s.Contains(result.Errors[0], "valid email")
	})

	s.Run("missing name is reported with the row number", func() {
		raw := "prenom,nom,email\n,Dupont,noname@example.com\n"
		result := s.mustImport(raw)
		s.Equal(1, result.Skipped)
		s.Contains(result.Errors[0], "Row 1: first name is required")
	})

	s.Run("detailed errors cap while counts stay exact", func() {
		var b strings.Builder
		b.WriteString("prenom,nom,email\n")
		for i := 0; i < 14; i++ {
			fmt.Fprintf(&b, "Jean,Dupont,broken-%d\n", i)
		}
		result := s.mustImport(b.String())
		s.Equal(14, result.Skipped)
		s.Equal(14, result.Total)
		s.Len(result.Errors, 10)
	})
}

func (s *ImportSuite) TestBureauSeatsDuringImport() {
	s.Run("two rows claiming one seat keep only the first", func() {
		raw := "prenom,nom,email,statut\n" +
			"Anne,Morel,sec1@example.com,Secrétaire\n" +
			"Luc,Bernard,sec2@example.com,Secrétaire\n"
		result := s.mustImport(raw)
		s.Equal(1, result.Imported)
		s.Equal(1, result.Skipped)
		s.Require().Len(result.Errors, 1)
		s.Contains(result.Errors[0], "Row 2")
		s.Contains(result.Errors[0], "earlier in this import")
		s.Contains(result.Errors[0], "sec1@example.com")
	})

	s.Run("an existing holder blocks a different email", func() {
		s.mustImport("prenom,nom,email,statut\nPaul,Martin,pres@example.com,Président\n")

		result := s.mustImport("prenom,nom,email,statut\nEve,Roche,pres2@example.com,Président\n")
		s.Equal(1, result.Skipped)
		s.Require().Len(result.Errors, 1)
		s.Contains(result.Errors[0], "Président")
		s.Contains(result.Errors[0], "Paul Martin")
	})

	s.Run("re-importing the holder's own row is fine", func() {
		s.mustImport("prenom,nom,email,statut\nPaul,Martin,vp@example.com,VP\n")

		result := s.mustImport("prenom,nom,email,statut\nPaul,Martin,vp@example.com,Vice-président\n")
		s.Equal(1, result.Updated)
		s.Empty(result.Errors)
	})
}

func (s *ImportSuite) TestMergeSemantics() {
	s.Run("blank optional cells never erase stored values", func() {
		s.mustImport("prenom,nom,email,telephone,discord\nJean,Dupont,merge@example.com,0611111111,jean#1234\n")

		result := s.mustImport("prenom,nom,email,telephone,discord,filiere\nJean,Durand,merge@example.com,,,M2\n")
		s.Equal(1, result.Updated)

		m := s.findByEmail("merge@example.com")
		s.Equal("Durand", m.LastName)
		s.Equal("0611111111", m.Phone)
		s.Equal("jean#1234", m.DiscordHandle)
		s.Equal("M2", m.Track)
	})

	s.Run("merge into active stamps approval once", func() {
		app := member.Application{
			FirstName: "Jean", LastName: "Dupont",
			Email: "approved@example.com", Phone: "0600000000", Track: "L3",
		}
		created, err := s.svc.SubmitApplication(s.ctx, app)
		s.Require().NoError(err)
		s.Require().Nil(created.ApprovedAt)

		s.mustImport("prenom,nom,email,statut\nJean,Dupont,approved@example.com,Membre actif\n")

		m := s.findByEmail("approved@example.com")
		s.Require().NotNil(m.ApprovedAt)
		s.Equal(s.now, *m.ApprovedAt)
		s.Require().NotNil(m.ExpiresAt)
		s.Equal(time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC), *m.ExpiresAt)

		// A second import of the same row must not refresh the stamps.
		later := requestcontext.WithTime(context.Background(), s.now.Add(72*time.Hour))
		_, err = s.svc.ImportCSV(later, "prenom,nom,email,statut\nJean,Dupont,approved@example.com,Membre actif\n")
		s.Require().NoError(err)
		s.Equal(s.now, *s.findByEmail("approved@example.com").ApprovedAt)
	})

	s.Run("status change through import lands in the ledger", func() {
		s.mustImport("prenom,nom,email\nJean,Dupont,ledger@example.com\n")
		m := s.findByEmail("ledger@example.com")

		s.mustImport("prenom,nom,email,statut\nJean,Dupont,ledger@example.com,Membre d'honneur\n")

		entries, err := s.store.HistoryByMember(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		last := entries[len(entries)-1]
		s.Equal(member.StatusHonor, last.NewStatus)
		s.Equal("Imported from CSV", last.Reason)
	})
}

func (s *ImportSuite) TestQuotedFields() {
	raw := "prenom,nom,email,filiere\n" +
		"\"Jean-Marie\",\"Le Goff, dit Johnny\",quoted@example.com,\"L3, info\"\n"
	result := s.mustImport(raw)
	s.Equal(1, result.Imported)

	m := s.findByEmail("quoted@example.com")
	s.Equal("Le Goff, dit Johnny", m.LastName)
	s.Equal("L3, info", m.Track)
}

func (s *ImportSuite) TestInsertDefaults() {
	s.mustImport("prenom,nom,email\nJean,Dupont,defaults@example.com\n")
	m := s.findByEmail("defaults@example.com")
	s.Equal(member.TrackOther, m.Track)
	// Default status is active, so the insert is approved immediately.
	s.Equal(member.StatusActive, m.Status)
	s.NotNil(m.ApprovedAt)
}
