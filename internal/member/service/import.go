package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/pkg/domainerrors"
	"github.com/info-evry/astro-join/pkg/platform/sentinel"
	"github.com/info-evry/astro-join/pkg/requestcontext"
)

// importErrorCap bounds how many row-level errors are surfaced in detail.
// Counts stay exact regardless.
const importErrorCap = 10

const importReason = "Imported from CSV"

// ImportResult aggregates one reconciliation run. Errors holds at most
// importErrorCap row-level messages.
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors"`
}

func (r *ImportResult) addError(msg string) {
	if len(r.Errors) < importErrorCap {
		r.Errors = append(r.Errors, msg)
	}
}

// Logical fields a CSV column can map to.
const (
	colFirstName = "first_name"
	colLastName  = "last_name"
	colEmail     = "email"
	colPhone     = "phone"
	colDiscord   = "discord"
	colTelegram  = "telegram"
	colStudentID = "student_id"
	colEnrollNo  = "enrollment_number"
	colTrack     = "track"
	colStatus    = "status"
)

// headerAliases maps folded header cells to logical fields. Rosters come back
// from spreadsheets with French, English, accented, and abbreviated headers;
// unrecognized cells are ignored, not errors.
var headerAliases = map[string]string{
	"prenom":     colFirstName,
	"first name": colFirstName,
	"firstname":  colFirstName,

	"nom":            colLastName,
	"nom de famille": colLastName,
	"last name":      colLastName,
	"lastname":       colLastName,

	"email":          colEmail,
	"e mail":         colEmail,
	"mail":           colEmail,
	"courriel":       colEmail,
	"adresse mail":   colEmail,
	"adresse e mail": colEmail,

	"telephone":           colPhone,
	"tel":                 colPhone,
	"phone":               colPhone,
	"portable":            colPhone,
	"numero de telephone": colPhone,

	"discord":        colDiscord,
	"pseudo discord": colDiscord,

	"telegram":        colTelegram,
	"pseudo telegram": colTelegram,

	"numero etudiant":      colStudentID,
	"num etudiant":         colStudentID,
	"student id":           colStudentID,
	"identifiant etudiant": colStudentID,

	"ine":                  colEnrollNo,
	"numero ine":           colEnrollNo,
	"enrollment number":    colEnrollNo,
	"numero d inscription": colEnrollNo,

	"filiere":   colTrack,
	"formation": colTrack,
	"cursus":    colTrack,
	"parcours":  colTrack,
	"track":     colTrack,

	"statut": colStatus,
	"status": colStatus,
	"role":   colStatus,
	"poste":  colStatus,
}

// ImportCSV reconciles a raw roster export against the member table. Rows are
// processed sequentially and independently: one bad row is recorded and
// skipped, never aborting the batch. The in-import role claim map and the
// pre-loaded holder snapshot live on this call's stack, so nothing survives
// between imports.
func (s *Service) ImportCSV(ctx context.Context, rawText string) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "member.ImportCSV")
	defer span.End()

	rawText = strings.TrimPrefix(rawText, "\uFEFF")

	reader := csv.NewReader(strings.NewReader(rawText))
	reader.Comma = detectDelimiter(rawText)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, domainerrors.New(domainerrors.CodeBadRequest,
			"import needs a header row and at least one data row")
	}
	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	// One snapshot of the unique seats before any row is touched; duplicate
	// claims inside the file are caught against the claim map before any
	// write happens.
	holders, err := s.store.UniqueRoleHolders(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load bureau role holders")
	}
	claimed := make(map[member.Status]string)

	now := requestcontext.Now(ctx)
	result := &ImportResult{}
	rowNum := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		result.Total++
		if err != nil {
			result.Skipped++
			result.addError(fmt.Sprintf("Row %d: malformed CSV: %v", rowNum, err))
			continue
		}
		s.importRow(ctx, record, columns, holders, claimed, now, rowNum, result)
	}

	if rowNum == 0 {
		return nil, domainerrors.New(domainerrors.CodeBadRequest,
			"import needs a header row and at least one data row")
	}

	s.metrics.ObserveImport(result.Imported, result.Updated, result.Skipped)
	s.logger.InfoContext(ctx, "csv import finished",
		"imported", result.Imported,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"total", result.Total,
		"admin", requestcontext.AdminSubject(ctx),
	)
	return result, nil
}

// importRow reconciles one data row: merge into the existing member with the
// same email, or insert a new one. Blank optional cells never erase stored
// values.
func (s *Service) importRow(
	ctx context.Context,
	record []string,
	columns map[string]int,
	holders map[member.Status]*member.Member,
	claimed map[member.Status]string,
	now time.Time,
	rowNum int,
	result *ImportResult,
) {
	cell := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	firstName := cell(colFirstName)
	lastName := cell(colLastName)
	email := member.NormalizeEmail(cell(colEmail))

	if problems := member.ValidateImportRow(firstName, lastName, email); len(problems) > 0 {
		result.Skipped++
		result.addError(fmt.Sprintf("Row %d: %s", rowNum, strings.Join(problems, "; ")))
		return
	}

	// Unrecognized or absent labels fall back to active: roster exports
	// typically omit the status column for plain members.
	status := member.StatusActive
	if parsed, ok := member.ParseLabel(cell(colStatus)); ok {
		status = parsed
	}

	if status.UniqueBureau() {
		if holder, ok := holders[status]; ok && holder.Email != email {
			result.Skipped++
			result.addError(fmt.Sprintf("Row %d: role %s is already held by %s",
				rowNum, status.Label(), holder.FullName()))
			return
		}
		if claimant, ok := claimed[status]; ok && claimant != email {
			result.Skipped++
			result.addError(fmt.Sprintf("Row %d: role %s is already claimed by %s earlier in this import",
				rowNum, status.Label(), claimant))
			return
		}
		claimed[status] = email
	}

	existing, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.mergeImportedRow(ctx, existing, firstName, lastName, status, cell, now); err != nil {
			result.Skipped++
			result.addError(fmt.Sprintf("Row %d: %v", rowNum, err))
			return
		}
		result.Updated++
	case errors.Is(err, sentinel.ErrNotFound):
		if err := s.insertImportedRow(ctx, email, firstName, lastName, status, cell, now); err != nil {
			result.Skipped++
			result.addError(fmt.Sprintf("Row %d: %v", rowNum, err))
			return
		}
		result.Imported++
	default:
		result.Skipped++
		result.addError(fmt.Sprintf("Row %d: storage error: %v", rowNum, err))
	}
}

// mergeImportedRow updates name and status unconditionally and overwrites
// optional fields only when the row supplies a value.
func (s *Service) mergeImportedRow(
	ctx context.Context,
	m *member.Member,
	firstName, lastName string,
	status member.Status,
	cell func(string) string,
	now time.Time,
) error {
	m.FirstName = firstName
	m.LastName = lastName
	if v := cell(colPhone); v != "" {
		m.Phone = v
	}
	if v := cell(colDiscord); v != "" {
		m.DiscordHandle = v
	}
	if v := cell(colTelegram); v != "" {
		m.TelegramHandle = v
	}
	if v := cell(colStudentID); v != "" {
		m.StudentID = v
	}
	if v := cell(colEnrollNo); v != "" {
		m.EnrollmentNumber = v
	}
	if v := cell(colTrack); v != "" {
		m.Track = v
	}

	prior := m.Status
	if status != prior && status.ActiveLike() && !prior.ActiveLike() {
		m.Approve(now)
	}
	m.Status = status
	m.UpdatedAt = now

	if err := s.writeImported(ctx, m); err != nil {
		return err
	}
	if status != prior {
		entry := member.NewHistoryEntry(m.ID, &prior, status, importReason, now)
		if err := s.store.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
	}
	return nil
}

func (s *Service) insertImportedRow(
	ctx context.Context,
	email, firstName, lastName string,
	status member.Status,
	cell func(string) string,
	now time.Time,
) error {
	track := cell(colTrack)
	if track == "" {
		track = member.TrackOther
	}
	m := &member.Member{
		Email:            email,
		FirstName:        firstName,
		LastName:         lastName,
		Phone:            cell(colPhone),
		DiscordHandle:    cell(colDiscord),
		TelegramHandle:   cell(colTelegram),
		StudentID:        cell(colStudentID),
		EnrollmentNumber: cell(colEnrollNo),
		Track:            track,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if status.ActiveLike() {
		m.Approve(now)
	}
	if err := s.store.Insert(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("role %s was claimed concurrently", status.Label())
		}
		return fmt.Errorf("storage error: %w", err)
	}
	entry := member.NewHistoryEntry(m.ID, nil, status, importReason, now)
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// writeImported routes through the role-claiming mutation for unique roles so
// a concurrent admin update cannot slip a second holder past the import's
// in-memory snapshot.
func (s *Service) writeImported(ctx context.Context, m *member.Member) error {
	var err error
	if m.Status.UniqueBureau() {
		err = s.store.UpdateClaimingRole(ctx, m)
	} else {
		err = s.store.Update(ctx, m)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict):
		return fmt.Errorf("role %s was claimed concurrently", m.Status.Label())
	default:
		return fmt.Errorf("storage error: %w", err)
	}
}

func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for idx, cell := range header {
		field, ok := headerAliases[member.Fold(cell)]
		if !ok {
			continue
		}
		if _, taken := columns[field]; !taken {
			columns[field] = idx
		}
	}
	var missing []string
	for _, required := range []string{colFirstName, colLastName, colEmail} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, domainerrors.Newf(domainerrors.CodeBadRequest,
			"required column(s) not found: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// detectDelimiter sniffs the column separator from the header row. The whole
// input uses exactly one of comma, semicolon, or tab; comma wins ties.
func detectDelimiter(rawText string) rune {
	header := rawText
	if i := strings.IndexAny(rawText, "\r\n"); i >= 0 {
		header = rawText[:i]
	}
	best, bestCount := ',', strings.Count(header, ",")
	if n := strings.Count(header, ";"); n > bestCount {
		best, bestCount = ';', n
	}
	if n := strings.Count(header, "\t"); n > bestCount {
		best = '\t'
	}
	return best
}
