package forms

import (
	"errors"
	"strings"
	"testing"

	"github.com/psantana5/landing/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"ana@example.com", true},
		{"a.b+c@sub.example.org", true},
		{"ana@example", false},
		{"ana example@x.com", false},
		{"@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEmail(tt.email), tt.email)
	}
}

func TestBuildContact(t *testing.T) {
	v := NewValidator()

	sub, err := v.Build(models.KindContact, models.SubmissionRequest{
		Name:    "  Ana <b>López</b> ",
		Email:   " ana@example.com ",
		Message: `Quiero participar <script>alert("x")</script>& ayudar`,
	}, "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, "Ana López", sub.Name)
	assert.Equal(t, "ana@example.com", sub.Email)
	assert.Equal(t, "Quiero participar & ayudar", sub.Message)
	assert.Equal(t, "203.0.113.9", sub.RemoteAddr)
	assert.NotEmpty(t, sub.ID)
	assert.False(t, sub.CreatedAt.IsZero())
}

func TestBuildStripsEncodedMarkup(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"Encoded script", "Hola &lt;script&gt;alert(1)&lt;/script&gt;", "Hola"},
		{"Encoded tag", "&lt;b&gt;Hola&lt;/b&gt; mundo", "Hola mundo"},
		{"Double encoded", "&amp;lt;img src=x onerror=alert(1)&amp;gt;Hola", "Hola"},
		{"Plain comparison", "a < b & c", "a < b & c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := v.Build(models.KindContact, models.SubmissionRequest{
				Name:    "Ana",
				Email:   "ana@example.com",
				Message: tt.message,
			}, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, sub.Message)
			assert.NotContains(t, sub.Message, "<script")
		})
	}

	_, err := v.Build(models.KindContact, models.SubmissionRequest{
		Name:    "Ana",
		Email:   "ana@example.com",
		Message: "&lt;script&gt;alert(1)&lt;/script&gt;",
	}, "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgRequired, verr.Fields["message"])
}

func TestBuildContactMissingFields(t *testing.T) {
	v := NewValidator()

	_, err := v.Build(models.KindContact, models.SubmissionRequest{Email: "nope"}, "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	assert.Equal(t, MsgRequired, verr.Fields["name"])
	assert.Equal(t, MsgRequired, verr.Fields["message"])
	assert.Equal(t, MsgInvalidEmail, verr.Fields["email"])
	assert.NotContains(t, verr.Fields, "subject")
	assert.Equal(t, "invalid form fields: email, message, name", verr.Error())
}

func TestBuildNewsletter(t *testing.T) {
	v := NewValidator()

	sub, err := v.Build(models.KindNewsletter, models.SubmissionRequest{Email: "ana@example.com", Name: "ignored"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.KindNewsletter, sub.Kind)
	assert.Empty(t, sub.Name)

	_, err = v.Build(models.KindNewsletter, models.SubmissionRequest{}, "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"email": MsgRequired}, verr.Fields)
}

func TestBuildRejectsLongText(t *testing.T) {
	v := NewValidator()
	_, err := v.Build(models.KindContact, models.SubmissionRequest{
		Name:    "Ana",
		Email:   "ana@example.com",
		Message: strings.Repeat("a", 5001),
	}, "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgTooLong, verr.Fields["message"])
}

func TestBuildUnknownKind(t *testing.T) {
	_, err := NewValidator().Build("survey", models.SubmissionRequest{}, "")
	assert.Error(t, err)
}

func TestThanksMessage(t *testing.T) {
	assert.Equal(t, MsgContactThanks, ThanksMessage(models.KindContact))
	assert.Equal(t, MsgNewsletterThanks, ThanksMessage(models.KindNewsletter))
}
