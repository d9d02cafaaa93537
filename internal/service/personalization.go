package service

import (
	"strings"

	"github.com/vipul43/kiwis-outreach/internal/models"
)

// PersonalizationContext is the set of contact fields a template may reference
type PersonalizationContext struct {
	FirstName *string
	LastName  *string
	Email     string
	Company   *string
	Position  *string
	Category  *string
}

// NewPersonalizationContext builds the context for a contact (nil-safe)
func NewPersonalizationContext(contact *models.Contact) PersonalizationContext {
	if contact == nil {
		return PersonalizationContext{}
	}
	return PersonalizationContext{
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Email:     contact.Email,
		Company:   contact.Company,
		Position:  contact.Position,
		Category:  contact.Category,
	}
}

type placeholder struct {
	token string
	value func(PersonalizationContext) string
}

// placeholders lists every recognized token. Anything else in {{...}} is
// left verbatim.
var placeholders = []placeholder{
	{"{{firstName}}", func(p PersonalizationContext) string { return deref(p.FirstName) }},
	{"{{lastName}}", func(p PersonalizationContext) string { return deref(p.LastName) }},
	{"{{email}}", func(p PersonalizationContext) string { return p.Email }},
	{"{{company}}", func(p PersonalizationContext) string { return deref(p.Company) }},
	{"{{position}}", func(p PersonalizationContext) string { return deref(p.Position) }},
	{"{{category}}", func(p PersonalizationContext) string { return deref(p.Category) }},
}

// Placeholders returns the recognized placeholder tokens
func Placeholders() []string {
	tokens := make([]string, 0, len(placeholders))
	for _, p := range placeholders {
		tokens = append(tokens, p.token)
	}
	return tokens
}

// RenderContext substitutes every recognized placeholder in template.
// Missing fields render as "". Substituted values are not re-scanned, so a
// field containing "{{email}}" is inserted literally.
func RenderContext(template string, ctx PersonalizationContext) string {
	if template == "" {
		return ""
	}
	pairs := make([]string, 0, len(placeholders)*2)
	for _, p := range placeholders {
		pairs = append(pairs, p.token, p.value(ctx))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Render personalizes template for contact
func Render(template string, contact *models.Contact) string {
	return RenderContext(template, NewPersonalizationContext(contact))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
