package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("object not found")
	ErrConflict  = errors.New("object already exists")
	ErrProtected = errors.New("object is protected")
	ErrInvalid   = errors.New("invalid input")
)

// Priority orders tasks from Unknown (0) up to Critical (6).
type Priority int

const (
	PriorityUnknown Priority = iota
	PriorityOptional
	PriorityLow
	PriorityMiddle
	PriorityHigh
	PriorityUrgent
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityUnknown:  "Unknown",
	PriorityOptional: "Optional",
	PriorityLow:      "Low",
	PriorityMiddle:   "Middle",
	PriorityHigh:     "High",
	PriorityUrgent:   "Urgent",
	PriorityCritical: "Critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) Valid() bool {
	return p >= PriorityUnknown && p <= PriorityCritical
}

// ParsePriority accepts a label such as "High", case-insensitively.
func ParsePriority(label string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, label) {
			return p, nil
		}
	}
	return PriorityUnknown, fmt.Errorf("%w: unknown priority %q", ErrInvalid, label)
}

// BaseModel contains the timestamps shared by the mutable entities.
type BaseModel struct {
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

var slugFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, drops accents and punctuation, and joins words with
// hyphens: "Flaming Testers" becomes "flaming-testers".
func Slugify(s string) string {
	folded, _, err := transform.String(slugFold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			pendingDash = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// translate maps gorm errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// getOrCreate looks up the first row matching query and creates defaults when
// none exists. The insert runs in its own transaction (a savepoint when db is
// already transactional) so a unique violation caused by a concurrent creator
// leaves db usable for the second lookup.
func getOrCreate[T any](db *gorm.DB, defaults *T, query string, args ...interface{}) (*T, bool, error) {
	var obj T
	err := db.Where(query, args...).First(&obj).Error
	switch {
	case err == nil:
		return &obj, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(defaults).Error
	})
	if err == nil {
		return defaults, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	var existing T
	if err := db.Where(query, args...).First(&existing).Error; err != nil {
		return nil, false, translate(err)
	}
	return &existing, false, nil
}
