// Package forms validates and sanitizes the contact and newsletter forms.
package forms

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/psantana5/landing/pkg/models"
)

// Messages shown to visitors
const (
	MsgRequired         = "Este campo es requerido"
	MsgInvalidEmail     = "Por favor, introduce un email válido"
	MsgTooLong          = "El texto es demasiado largo"
	MsgInvalidForm      = "Por favor, completa todos los campos requeridos correctamente."
	MsgContactThanks    = "¡Gracias por tu mensaje! Nos pondremos en contacto contigo pronto."
	MsgNewsletterThanks = "¡Gracias por suscribirte! Te hemos enviado un email de confirmación."
	MsgSubmitFailed     = "No se pudo enviar el formulario. Inténtalo de nuevo más tarde."
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var maxLengths = map[string]int{
	"name":    100,
	"email":   254,
	"subject": 200,
	"message": 5000,
}

// ValidEmail reports whether s looks like an email address
func ValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ValidationError lists the rejected fields
type ValidationError struct {
	Fields map[string]string // field -> message
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid form fields: %s", strings.Join(names, ", "))
}

// ThanksMessage returns the confirmation shown after a successful submission
func ThanksMessage(kind models.SubmissionKind) string {
	if kind == models.KindNewsletter {
		return MsgNewsletterThanks
	}
	return MsgContactThanks
}

// Validator turns raw form payloads into submissions
type Validator struct {
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewValidator creates a validator that strips all markup from free text
func NewValidator() *Validator {
	return &Validator{
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
}

// maxCleanPasses bounds how many layers of entity encoding clean unwraps
const maxCleanPasses = 5

// clean strips tags and returns plain text. Each pass sanitizes and then
// unescapes, so markup hidden behind entities is decoded and stripped on the
// next pass. Text that is still changing after maxCleanPasses keeps the
// sanitizer's escaped form.
func (v *Validator) clean(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(v.policy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(v.policy.Sanitize(s))
}

// Build validates req for a form of kind and returns the submission to
// store. Validation failures are returned as *ValidationError.
func (v *Validator) Build(kind models.SubmissionKind, req models.SubmissionRequest, remoteAddr string) (*models.Submission, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown form %q", kind)
	}

	sub := &models.Submission{
		Kind:       kind,
		Email:      strings.TrimSpace(req.Email),
		RemoteAddr: remoteAddr,
	}
	fields := map[string]string{"email": sub.Email}
	required := []string{"email"}

	if kind == models.KindContact {
		sub.Name = v.clean(req.Name)
		sub.Subject = v.clean(req.Subject)
		sub.Message = v.clean(req.Message)
		fields["name"] = sub.Name
		fields["subject"] = sub.Subject
		fields["message"] = sub.Message
		required = append(required, "name", "message")
	}

	problems := make(map[string]string)
	for _, f := range required {
		if fields[f] == "" {
			problems[f] = MsgRequired
		}
	}
	if _, bad := problems["email"]; !bad && !ValidEmail(sub.Email) {
		problems["email"] = MsgInvalidEmail
	}
	for f, value := range fields {
		if _, bad := problems[f]; !bad && utf8.RuneCountInString(value) > maxLengths[f] {
			problems[f] = MsgTooLong
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}

	sub.ID = uuid.New().String()
	sub.CreatedAt = v.now().UTC()
	return sub, nil
}
