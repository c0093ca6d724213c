package member

import (
	"strings"
	"time"
)

// Status is the closed set of membership states. There is no history of
// concurrent states: a member holds exactly one status at a time.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusHonor    Status = "honor"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"

	// Bureau roles. The first four are uniqueness-constrained: at most one
	// member may hold each at any instant, system-wide. Honorary president
	// is a bureau role but explicitly exempt from uniqueness.
	StatusPresident         Status = "president"
	StatusVicePresident     Status = "vice_president"
	StatusSecretary         Status = "secretary"
	StatusTreasurer         Status = "treasurer"
	StatusHonoraryPresident Status = "honorary_president"
)

// allStatuses fixes the declaration order used for error messages and stats.
var allStatuses = []Status{
	StatusPending,
	StatusActive,
	StatusHonor,
	StatusRejected,
	StatusExpired,
	StatusPresident,
	StatusVicePresident,
	StatusSecretary,
	StatusTreasurer,
	StatusHonoraryPresident,
}

// AllStatuses returns the full enumeration in declaration order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// UniqueBureauStatuses returns the four uniqueness-constrained roles.
func UniqueBureauStatuses() []Status {
	return []Status{StatusPresident, StatusVicePresident, StatusSecretary, StatusTreasurer}
}

// Valid reports whether s belongs to the closed enumeration.
func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Bureau reports whether s is one of the five organizational officer roles.
func (s Status) Bureau() bool {
	switch s {
	case StatusPresident, StatusVicePresident, StatusSecretary, StatusTreasurer, StatusHonoraryPresident:
		return true
	}
	return false
}

// UniqueBureau reports whether s is one of the four roles with at most one
// holder. Honorary president allows any number of holders.
func (s Status) UniqueBureau() bool {
	switch s {
	case StatusPresident, StatusVicePresident, StatusSecretary, StatusTreasurer:
		return true
	}
	return false
}

// ActiveLike reports whether s counts as current, approved membership for
// approval-date and expiry-date purposes. This predicate is the single source
// of truth shared by the transition engine and the CSV import path.
func (s Status) ActiveLike() bool {
	switch s {
	case StatusActive, StatusHonor:
		return true
	}
	return s.Bureau()
}

// Display labels shown to admins and matched (among other synonyms) on CSV
// import. The association operates in French.
var statusLabels = map[Status]string{
	StatusPending:           "En attente",
	StatusActive:            "Membre actif",
	StatusHonor:             "Membre d'honneur",
	StatusRejected:          "Refusé",
	StatusExpired:           "Expiré",
	StatusPresident:         "Président",
	StatusVicePresident:     "Vice-président",
	StatusSecretary:         "Secrétaire",
	StatusTreasurer:         "Trésorier",
	StatusHonoraryPresident: "Président d'honneur",
}

// Label returns the display label for s, or the raw token for unknown values.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// labelSynonyms maps folded free-text labels to canonical statuses. Extending
// the import vocabulary means adding rows here; the transition logic never
// changes. Folded form: lowercase, accents stripped, hyphens and apostrophes
// normalized to spaces.
var labelSynonyms = map[string]Status{
	"en attente":          StatusPending,
	"attente":             StatusPending,
	"membre actif":        StatusActive,
	"actif":               StatusActive,
	"active":              StatusActive,
	"membre":              StatusActive,
	"membre d honneur":    StatusHonor,
	"honneur":             StatusHonor,
	"refuse":              StatusRejected,
	"rejete":              StatusRejected,
	"expire":              StatusExpired,
	"ancien membre":       StatusExpired,
	"president":           StatusPresident,
	"vice president":      StatusVicePresident,
	"vp":                  StatusVicePresident,
	"secretaire":          StatusSecretary,
	"tresorier":           StatusTreasurer,
	"tresoriere":          StatusTreasurer,
	"president d honneur": StatusHonoraryPresident,
}

// ParseLabel maps a free-text status label to a canonical status. Matching is
// case- and accent-insensitive and accepts both canonical tokens and French
// display synonyms. The boolean is false for unrecognized labels; the CSV
// importer treats that as the `active` fallback, but the decision belongs to
// the caller.
func ParseLabel(label string) (Status, bool) {
	folded := Fold(label)
	if folded == "" {
		return "", false
	}
	if s := Status(strings.ReplaceAll(folded, " ", "_")); s.Valid() {
		return s, true
	}
	if s, ok := labelSynonyms[folded]; ok {
		return s, true
	}
	return "", false
}

var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
	"œ", "oe",
	"'", " ", "’", " ", "-", " ",
)

// Fold normalizes free text for lookup: trim, lowercase, strip the accents
// that occur in French labels, and collapse separators to single spaces. The
// CSV importer uses the same folding for header cells.
func Fold(s string) string {
	s = accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

// MembershipExpiry returns the end of the academic year containing now:
// August 31 of the current calendar year, or of the next one when now is
// September or later.
func MembershipExpiry(now time.Time) time.Time {
	year := now.Year()
	if now.Month() >= time.September {
		year++
	}
	return time.Date(year, time.August, 31, 0, 0, 0, 0, time.UTC)
}
