package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when caller-supplied input fails a precondition.
// It is usually wrapped with a more specific message.
var ErrValidation = errors.New("validation failed")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on v and wraps failures in ErrValidation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), rule))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// ValidateSession checks the answer-count invariant of a session.
func ValidateSession(s Session) error {
	if s.ID == "" {
		return fmt.Errorf("%w: session id is empty", ErrValidation)
	}
	if s.TotalCorrect < 0 || s.TotalWrong < 0 {
		return fmt.Errorf("%w: session %s has negative totals", ErrValidation, s.ID)
	}
	if s.TotalCorrect+s.TotalWrong > s.AnsweredCount() {
		return fmt.Errorf("%w: session %s totals exceed answered problems", ErrValidation, s.ID)
	}
	for _, p := range s.Problems {
		if !p.Type.Valid() {
			return fmt.Errorf("%w: problem %s has unknown operation %q", ErrValidation, p.ID, p.Type)
		}
	}
	return nil
}

// ValidateAppData checks document-wide invariants: unique ids, sessions that
// reference existing users, and a current user that exists.
func ValidateAppData(d AppData) error {
	users := make(map[string]struct{}, len(d.Users))
	for _, u := range d.Users {
		if u.ID == "" {
			return fmt.Errorf("%w: user with empty id", ErrValidation)
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("%w: duplicate user id %s", ErrValidation, u.ID)
		}
		users[u.ID] = struct{}{}
		if err := Validate(u.Statistics); err != nil {
			return fmt.Errorf("user %s statistics: %w", u.ID, err)
		}
	}
	sessions := make(map[string]struct{}, len(d.Sessions))
	for _, s := range d.Sessions {
		if _, dup := sessions[s.ID]; dup {
			return fmt.Errorf("%w: duplicate session id %s", ErrValidation, s.ID)
		}
		sessions[s.ID] = struct{}{}
		if _, ok := users[s.UserID]; !ok {
			return fmt.Errorf("%w: session %s references unknown user %s", ErrValidation, s.ID, s.UserID)
		}
		if err := ValidateSession(s); err != nil {
			return err
		}
	}
	if d.CurrentUserID != nil {
		if _, ok := users[*d.CurrentUserID]; !ok {
			return fmt.Errorf("%w: current user %s does not exist", ErrValidation, *d.CurrentUserID)
		}
	}
	return nil
}
