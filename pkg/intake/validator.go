package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

var (
	errEmptyNarrative = errors.New("narrative text is required")
	errShortNarrative = errors.New("narrative too short")
	errUnknownStatus  = errors.New("unknown case status")
	errUnknownPersona = errors.New("unknown reporter type")
	errUnknownChannel = errors.New("unknown contact channel")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	minLength int
}

func NewValidator(minLength int) *Validator {
	if minLength < 1 {
		minLength = 1
	}
	return &Validator{minLength: minLength}
}

// Narrative rejects blank narratives and narratives shorter than the
// configured minimum, counted in characters after trimming.
func (v *Validator) Narrative(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ValidationError{reason: errEmptyNarrative}
	}
	if n := len([]rune(trimmed)); n < v.minLength {
		return ValidationError{reason: fmt.Errorf("%w: %d characters, at least %d required", errShortNarrative, n, v.minLength)}
	}
	return nil
}

func parseStatus(s string) (models.CaseStatus, error) {
	status := models.CaseStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", ValidationError{reason: fmt.Errorf("%w: %q", errUnknownStatus, s)}
	}
	return status, nil
}

func parsePersona(s string) (models.ReporterType, error) {
	p, ok := models.ParseReporterType(s)
	if !ok {
		return "", ValidationError{reason: fmt.Errorf("%w: %q", errUnknownPersona, s)}
	}
	return p, nil
}

func parseChannel(s string) (models.ContactChannel, error) {
	switch ch := models.ContactChannel(strings.ToLower(strings.TrimSpace(s))); ch {
	case models.ChannelEmail, models.ChannelWhatsApp, models.ChannelPortal:
		return ch, nil
	default:
		return "", ValidationError{reason: fmt.Errorf("%w: %q", errUnknownChannel, s)}
	}
}

func validateConsent(c models.ConsentStatus) error {
	for _, ch := range c.AllowedChannels {
		if _, err := parseChannel(string(ch)); err != nil {
			return err
		}
	}
	if c.PreferredChannel != "" {
		if _, err := parseChannel(string(c.PreferredChannel)); err != nil {
			return err
		}
	}
	if c.ReporterDetails != nil && c.ReporterDetails.Type != "" {
		if _, err := parsePersona(string(c.ReporterDetails.Type)); err != nil {
			return err
		}
	}
	return nil
}
