package member

import "strings"

// maxEmailLength follows RFC 5321's practical limit on address length.
const maxEmailLength = 254

// NormalizeEmail lowercases and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail checks email shape with a single linear scan. The check is a
// security contract: no regular expressions, so no catastrophic backtracking
// on adversarial input. Accepted shape: at most 254 characters, no
// whitespace, exactly one '@' with a non-empty local part, and a domain
// containing a '.' that is neither its first nor its last character.
func ValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	at := -1
	for i := 0; i < len(email); i++ {
		c := email[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			return false
		}
		if c == '@' {
			if at != -1 {
				return false
			}
			at = i
		}
	}
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && domain[len(domain)-1] != '.'
}

// ValidateApplication validates and normalizes a public application in place.
// It returns every problem found, in field order, so applicants see all of
// them in one pass. An empty slice means the application is acceptable.
//
// The contact-channel rule applies here only: admin edits and CSV imports do
// not re-enforce it.
func ValidateApplication(app *Application) []string {
	app.FirstName = strings.TrimSpace(app.FirstName)
	app.LastName = strings.TrimSpace(app.LastName)
	app.Email = NormalizeEmail(app.Email)
	app.Phone = strings.TrimSpace(app.Phone)
	app.DiscordHandle = strings.TrimSpace(app.DiscordHandle)
	app.TelegramHandle = strings.TrimSpace(app.TelegramHandle)
	app.StudentID = strings.TrimSpace(app.StudentID)
	app.EnrollmentNumber = strings.TrimSpace(app.EnrollmentNumber)
	app.Track = strings.TrimSpace(app.Track)

	var problems []string
	if app.FirstName == "" {
		problems = append(problems, "first name is required")
	}
	if app.LastName == "" {
		problems = append(problems, "last name is required")
	}
	if !ValidEmail(app.Email) {
		problems = append(problems, "a valid email address is required")
	}
	if app.Track == "" {
		problems = append(problems, "enrollment track is required")
	}
	if app.Phone == "" && app.DiscordHandle == "" && app.TelegramHandle == "" {
		problems = append(problems, "at least one contact method is required (phone, Discord or Telegram)")
	}
	return problems
}

// ValidateImportRow applies the subset of validation used by the CSV
// reconciliation path: names and email only, with the track defaulting to
// the sentinel "Other" instead of being required.
func ValidateImportRow(firstName, lastName, email string) []string {
	var problems []string
	if strings.TrimSpace(firstName) == "" {
		problems = append(problems, "first name is required")
	}
	if strings.TrimSpace(lastName) == "" {
		problems = append(problems, "last name is required")
	}
	if !ValidEmail(NormalizeEmail(email)) {
		problems = append(problems, "a valid email address is required")
	}
	return problems
}
