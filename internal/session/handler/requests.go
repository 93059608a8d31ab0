package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
)

// Password bounds are strings for govalidator.StringLength. 72 is the bcrypt
// input limit.
const (
	maxEmailLength    = "254"
	minPasswordLength = "6"
	maxPasswordLength = "72"
)

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !govalidator.StringLength(email, "1", maxEmailLength) || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements httputil.Validatable.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(r.Email)
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if !govalidator.StringLength(r.Password, "1", maxPasswordLength) {
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	return nil
}

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`

	parsedRole domain.Role
}

// Validate implements httputil.Validatable.
func (r *SignUpRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if !govalidator.StringLength(r.Password, minPasswordLength, maxPasswordLength) {
		return dErrors.New(dErrors.CodeValidation, "password must be 6 to 72 characters")
	}
	if r.DisplayName == "" {
		return dErrors.New(dErrors.CodeValidation, "display_name is required")
	}
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "role must be tenant, landlord or company")
	}
	r.parsedRole = role
	return nil
}

func (r *SignUpRequest) Metadata() models.Metadata {
	return models.Metadata{DisplayName: r.DisplayName, Role: r.parsedRole}
}
