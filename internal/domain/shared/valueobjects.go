// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points.
type XP int

// XPPerLevel is the width of one level band.
const XPPerLevel = 1000

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Level returns floor(XP/1000)+1.
func (x XP) Level() Level {
	if x <= 0 {
		return 1
	}
	return Level(int(x)/XPPerLevel + 1)
}

// ProgressToNextLevel returns XP earned inside the current level band.
func (x XP) ProgressToNextLevel() int {
	if x <= 0 {
		return 0
	}
	return int(x) % XPPerLevel
}

// Level is the user's level, derived from XP.
type Level int

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the XP at which this level starts.
func (l Level) RequiredXP() int {
	if l <= 1 {
		return 0
	}
	return (int(l) - 1) * XPPerLevel
}

// ═══════════════════════════════════════════════════════════════════════════
// Language Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Language is a lowercase ISO 639-1 code such as "en" or "es".
type Language string

var languageRegex = regexp.MustCompile(`^[a-z]{2}$`)

// IsValid checks the code format.
func (l Language) IsValid() bool {
	return languageRegex.MatchString(string(l))
}

// String returns the string representation.
func (l Language) String() string {
	return string(l)
}

// NewLanguage normalizes and validates a language code.
func NewLanguage(code string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(code)))
	if !l.IsValid() {
		return "", NewDomainError("shared", "NewLanguage", ErrInvalidFormat, "language must be a two-letter code")
	}
	return l, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
