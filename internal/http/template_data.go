package httpx

import (
	"net/http"
)

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
}

// NewTemplateData creates a new TemplateDataBuilder initialized with basePageData.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{data: basePageData(r, meta)}
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	if msg == "" {
		return b
	}
	b.data["Error"] = true
	b.data["ErrorMessage"] = msg
	return b
}

// WithNotice sets an informational banner (e.g. "Account created").
func (b *TemplateDataBuilder) WithNotice(msg string) *TemplateDataBuilder {
	if msg != "" {
		b.data["Notice"] = msg
	}
	return b
}

// WithFieldErrors adds field-level validation errors.
func (b *TemplateDataBuilder) WithFieldErrors(errs map[string]string) *TemplateDataBuilder {
	if len(errs) > 0 {
		b.data["Errors"] = errs
	}
	return b
}

// WithForm echoes submitted values back into the form.
func (b *TemplateDataBuilder) WithForm(values map[string]string) *TemplateDataBuilder {
	b.data["Form"] = values
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map. Errors and Form are always present
// so templates can index them without guards.
func (b *TemplateDataBuilder) Build() map[string]any {
	if _, ok := b.data["Errors"]; !ok {
		b.data["Errors"] = map[string]string{}
	}
	if _, ok := b.data["Form"]; !ok {
		b.data["Form"] = map[string]string{}
	}
	return b.data
}
