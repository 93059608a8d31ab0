package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "propmaster/pkg/domain-errors"
)

const maxSubjectIDLength = 128

// SubjectID identifies an authenticated end user. The identity provider
// assigns it and it stays stable for the user's lifetime; the controller
// treats it as opaque text.
type SubjectID string

// ParseSubjectID validates a provider-issued subject identifier at a trust
// boundary (provider responses, persisted blobs, relayed events).
func ParseSubjectID(raw string) (SubjectID, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	if len(raw) > maxSubjectIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id is too long")
	}
	if !utf8.ValidString(raw) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id must be valid UTF-8")
	}
	for _, r := range raw {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "subject id contains invalid characters")
		}
	}
	return SubjectID(raw), nil
}

func (s SubjectID) String() string {
	return string(s)
}

func (s SubjectID) IsNil() bool {
	return s == ""
}

// Role is the closed set of authorization categories a subject can hold.
// The zero value means "no role".
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleCompany  Role = "company"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleTenant, RoleLandlord, RoleCompany}

// ParseRole accepts only members of the closed role set. Input is matched
// case-insensitively after trimming, since the value comes from a text column.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+raw)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleTenant, RoleLandlord, RoleCompany:
		return true
	}
	return false
}

func (r Role) IsZero() bool {
	return r == ""
}

func (r Role) String() string {
	return string(r)
}
