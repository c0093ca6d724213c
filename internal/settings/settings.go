// Package settings is the flat key-value configuration collaborator: whether
// applications are open, the current academic year label, and the enrollment
// track list shown on the form. Tracks are informational; the validator never
// hard-validates against them.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/info-evry/astro-join/pkg/domainerrors"
	"github.com/info-evry/astro-join/pkg/platform/sentinel"
)

const (
	KeyApplicationsOpen = "applications_open"
	KeyAcademicYear     = "academic_year"
	KeyEnrollmentTracks = "enrollment_tracks"
)

// knownKeys guards the admin settings endpoint against typo'd keys.
var knownKeys = map[string]bool{
	KeyApplicationsOpen: true,
	KeyAcademicYear:     true,
	KeyEnrollmentTracks: true,
}

// DefaultEnrollmentTracks seeds the form when no override is stored.
var DefaultEnrollmentTracks = []string{"L1", "L2", "L3", "M1", "M2", "Other"}

// Store persists settings as string keys mapping to string or JSON-encoded
// values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ApplicationsOpen reports whether the public form currently accepts
// submissions. Missing or unreadable values default to open.
func (s *Service) ApplicationsOpen(ctx context.Context) bool {
	value, err := s.store.Get(ctx, KeyApplicationsOpen)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to read applications_open, defaulting to open", "error", err)
		}
		return true
	}
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// EnrollmentTracks returns the configured track list, falling back to the
// defaults when unset or malformed.
func (s *Service) EnrollmentTracks(ctx context.Context) []string {
	value, err := s.store.Get(ctx, KeyEnrollmentTracks)
	if err != nil {
		return DefaultEnrollmentTracks
	}
	var tracks []string
	if err := json.Unmarshal([]byte(value), &tracks); err != nil || len(tracks) == 0 {
		s.logger.WarnContext(ctx, "malformed enrollment_tracks setting, using defaults", "error", err)
		return DefaultEnrollmentTracks
	}
	return tracks
}

func (s *Service) All(ctx context.Context) (map[string]string, error) {
	values, err := s.store.All(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load settings")
	}
	return values, nil
}

// Set stores one setting. Keys outside the known set are rejected so a typo
// cannot silently create dead configuration.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !knownKeys[key] {
		return domainerrors.Newf(domainerrors.CodeBadRequest, "unknown setting %q", key)
	}
	if key == KeyEnrollmentTracks {
		var tracks []string
		if err := json.Unmarshal([]byte(value), &tracks); err != nil {
			return domainerrors.New(domainerrors.CodeBadRequest, "enrollment_tracks must be a JSON array of strings")
		}
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to save setting")
	}
	return nil
}
