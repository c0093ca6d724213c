// Package service implements the membership lifecycle: application intake,
// the status transition engine, the CSV reconciliation engine, and stats.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/info-evry/astro-join/internal/device"
	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/internal/member/metrics"
	"github.com/info-evry/astro-join/internal/member/store"
	"github.com/info-evry/astro-join/pkg/domainerrors"
	"github.com/info-evry/astro-join/pkg/platform/sentinel"
	"github.com/info-evry/astro-join/pkg/requestcontext"
)

// DefaultUpdateReason is logged when an admin changes a status without
// supplying one.
const DefaultUpdateReason = "Status updated by admin"

// SettingsProvider is the slice of the settings collaborator the service
// consumes. Enrollment tracks are informational only and stay out of this
// interface on purpose: the validator never hard-validates against them.
type SettingsProvider interface {
	ApplicationsOpen(ctx context.Context) bool
}

type Service struct {
	store    store.Store
	settings SettingsProvider
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func New(st store.Store, settings SettingsProvider, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    st,
		settings: settings,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("astro-join/member"),
	}
}

// SubmitApplication validates and records a public membership application.
// Validation reports every problem in one pass. New applications always start
// as pending; approval is an explicit admin transition.
func (s *Service) SubmitApplication(ctx context.Context, app member.Application) (*member.Member, error) {
	ctx, span := s.tracer.Start(ctx, "member.SubmitApplication")
	defer span.End()

	if !s.settings.ApplicationsOpen(ctx) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "applications are currently closed")
	}
	if problems := member.ValidateApplication(&app); len(problems) > 0 {
		return nil, domainerrors.New(domainerrors.CodeValidation, "application is invalid").WithDetails(problems...)
	}
	if _, err := s.store.FindByEmail(ctx, app.Email); err == nil {
		return nil, domainerrors.New(domainerrors.CodeConflict, "an application already exists for this email")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to check existing application")
	}

	now := requestcontext.Now(ctx)
	m := &member.Member{
		Email:            app.Email,
		FirstName:        app.FirstName,
		LastName:         app.LastName,
		Phone:            app.Phone,
		DiscordHandle:    app.DiscordHandle,
		TelegramHandle:   app.TelegramHandle,
		StudentID:        app.StudentID,
		EnrollmentNumber: app.EnrollmentNumber,
		Track:            app.Track,
		Status:           member.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, domainerrors.New(domainerrors.CodeConflict, "an application already exists for this email")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to save application")
	}

	reason := "Application submitted"
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		reason = fmt.Sprintf("Application submitted (%s)", device.Summary(ua))
	}
	if err := s.store.AppendHistory(ctx, member.NewHistoryEntry(m.ID, nil, m.Status, reason, now)); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to record application history")
	}

	s.metrics.IncApplicationsSubmitted()
	s.logger.InfoContext(ctx, "application submitted",
		"member_id", m.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return m, nil
}

// UpdateMember applies a partial update to one member, including a possible
// status transition. The state machine is intentionally permissive: any
// status may move to any other, the only guard being bureau-role uniqueness,
// which the store enforces as a single conditional mutation.
func (s *Service) UpdateMember(ctx context.Context, id int64, patch member.Patch) (*member.Member, error) {
	ctx, span := s.tracer.Start(ctx, "member.UpdateMember")
	defer span.End()

	if patch.Empty() {
		return nil, domainerrors.New(domainerrors.CodeNoChanges, "request contains no recognized fields")
	}

	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Newf(domainerrors.CodeNotFound, "member %d does not exist", id)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load member")
	}

	now := requestcontext.Now(ctx)
	if err := applyFieldEdits(m, patch); err != nil {
		return nil, err
	}

	prior := m.Status
	statusChanged := false
	if patch.Status != nil {
		next := member.Status(strings.TrimSpace(*patch.Status))
		if !next.Valid() {
			return nil, domainerrors.Newf(domainerrors.CodeInvalidStatus,
				"invalid status %q, valid values: %s", *patch.Status, statusTokens()).
				WithDetails(statusTokens())
		}
		if next != prior {
			statusChanged = true
			// Approval side effects fire once, on entering the active-like
			// set from outside it. Edits while already active-like never
			// refresh the timestamps.
			if next.ActiveLike() && !prior.ActiveLike() {
				m.Approve(now)
			}
			m.Status = next
		}
	}
	m.UpdatedAt = now

	if err := s.persist(ctx, m); err != nil {
		return nil, err
	}

	if statusChanged {
		reason := DefaultUpdateReason
		if patch.Reason != nil && strings.TrimSpace(*patch.Reason) != "" {
			reason = strings.TrimSpace(*patch.Reason)
		}
		entry := member.NewHistoryEntry(m.ID, &prior, m.Status, reason, now)
		if err := s.store.AppendHistory(ctx, entry); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to record status history")
		}
		s.metrics.IncStatusTransition(string(m.Status))
		s.logger.InfoContext(ctx, "member status changed",
			"member_id", m.ID,
			"from", prior,
			"to", m.Status,
			"admin", requestcontext.AdminSubject(ctx),
		)
	}
	return m, nil
}

// persist routes the write through the role-claiming mutation whenever the
// resulting status is a unique bureau role, and translates store sentinels
// into caller-facing errors.
func (s *Service) persist(ctx context.Context, m *member.Member) error {
	var err error
	if m.Status.UniqueBureau() {
		err = s.store.UpdateClaimingRole(ctx, m)
	} else {
		err = s.store.Update(ctx, m)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return domainerrors.Newf(domainerrors.CodeNotFound, "member %d does not exist", m.ID)
	case errors.Is(err, sentinel.ErrConflict):
		return s.roleConflict(ctx, m.Status)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return domainerrors.New(domainerrors.CodeConflict, "email is already used by another member")
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to save member")
	}
}

// roleConflict names the current holder so the admin can resolve the clash
// manually. The follow-up read may race with the winning request; it only
// shapes the message, never the decision.
func (s *Service) roleConflict(ctx context.Context, role member.Status) error {
	holder, err := s.store.HolderOf(ctx, role)
	if err != nil {
		return domainerrors.Newf(domainerrors.CodeConflict, "role %s is already held by another member", role.Label())
	}
	return domainerrors.Newf(domainerrors.CodeConflict, "role %s is already held by %s", role.Label(), holder.FullName())
}

func (s *Service) GetMember(ctx context.Context, id int64) (*member.Member, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Newf(domainerrors.CodeNotFound, "member %d does not exist", id)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load member")
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context) ([]*member.Member, error) {
	members, err := s.store.List(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

// History returns the append-only transition ledger for one member.
func (s *Service) History(ctx context.Context, memberID int64) ([]*member.HistoryEntry, error) {
	if _, err := s.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	entries, err := s.store.HistoryByMember(ctx, memberID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load history")
	}
	return entries, nil
}

// Stats summarizes the roster. The active predicate is a parameter because
// whether honorary presidents count as active has changed over the
// association's lifetime; pass nil for the default (they do).
type Stats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Pending  int            `json:"pending"`
	ByStatus map[string]int `json:"by_status"`
}

func (s *Service) Stats(ctx context.Context, countsAsActive func(member.Status) bool) (*Stats, error) {
	if countsAsActive == nil {
		countsAsActive = member.Status.ActiveLike
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to count members")
	}
	stats := &Stats{ByStatus: make(map[string]int)}
	for status, n := range counts {
		stats.Total += n
		stats.ByStatus[string(status)] = n
		if countsAsActive(status) {
			stats.Active += n
		}
	}
	stats.Pending = counts[member.StatusPending]
	return stats, nil
}

func statusTokens() string {
	all := member.AllStatuses()
	tokens := make([]string, len(all))
	for i, s := range all {
		tokens[i] = string(s)
	}
	return strings.Join(tokens, ", ")
}

// applyFieldEdits overwrites stored fields with the patch's present keys,
// normalizing per field. Status is handled separately by the caller.
func applyFieldEdits(m *member.Member, patch member.Patch) error {
	if patch.FirstName != nil {
		v := strings.TrimSpace(*patch.FirstName)
		if v == "" {
			return domainerrors.New(domainerrors.CodeValidation, "first name cannot be empty").
				WithDetails("first name is required")
		}
		m.FirstName = v
	}
	if patch.LastName != nil {
		v := strings.TrimSpace(*patch.LastName)
		if v == "" {
			return domainerrors.New(domainerrors.CodeValidation, "last name cannot be empty").
				WithDetails("last name is required")
		}
		m.LastName = v
	}
	if patch.Email != nil {
		v := member.NormalizeEmail(*patch.Email)
		if !member.ValidEmail(v) {
			return domainerrors.New(domainerrors.CodeValidation, "invalid email address").
				WithDetails("a valid email address is required")
		}
		m.Email = v
	}
	if patch.Phone != nil {
		m.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.DiscordHandle != nil {
		m.DiscordHandle = strings.TrimSpace(*patch.DiscordHandle)
	}
	if patch.TelegramHandle != nil {
		m.TelegramHandle = strings.TrimSpace(*patch.TelegramHandle)
	}
	if patch.StudentID != nil {
		m.StudentID = strings.TrimSpace(*patch.StudentID)
	}
	if patch.EnrollmentNumber != nil {
		m.EnrollmentNumber = strings.TrimSpace(*patch.EnrollmentNumber)
	}
	if patch.Track != nil {
		m.Track = strings.TrimSpace(*patch.Track)
	}
	if patch.Notes != nil {
		m.Notes = strings.TrimSpace(*patch.Notes)
	}
	return nil
}
