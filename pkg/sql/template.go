package sql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

// Template is an ordered list of literal fragments and placeholders evaluated
// against a context value of type C. Templates are built once and are safe to
// render concurrently.
//
// The engine never escapes anything. Templates that interpolate identifiers
// must carry their own quote characters in the literal fragments.
type Template[C any] struct {
	name  string
	parts []part[C]
}

type part[C any] struct {
	literal string
	value   func(C) (any, error) // nil for literal parts
}

// NewTemplate starts an empty template. name appears in binding errors.
func NewTemplate[C any](name string) *Template[C] {
	return &Template[C]{name: name}
}

// Name returns the template name.
func (t *Template[C]) Name() string { return t.name }

// Lit appends a literal fragment.
func (t *Template[C]) Lit(s string) *Template[C] {
	t.parts = append(t.parts, part[C]{literal: s})
	return t
}

// Val appends a placeholder whose value is stringified with fmt.Sprint.
func (t *Template[C]) Val(fn func(C) any) *Template[C] {
	return t.ValErr(func(c C) (any, error) { return fn(c), nil })
}

// ValErr appends a placeholder that can reject its context.
func (t *Template[C]) ValErr(fn func(C) (any, error)) *Template[C] {
	t.parts = append(t.parts, part[C]{value: fn})
	return t
}

// Render substitutes every placeholder and returns the resulting statement.
// A placeholder that errors or panics yields a *apperrors.TemplateBindingError
// naming the template and the 1-based placeholder position.
func (t *Template[C]) Render(ctx C) (string, error) {
	var b strings.Builder
	placeholder := 0
	for _, p := range t.parts {
		if p.value == nil {
			b.WriteString(p.literal)
			continue
		}
		placeholder++
		v, err := evaluate(p.value, ctx)
		if err != nil {
			return "", &apperrors.TemplateBindingError{Template: t.name, Placeholder: placeholder, Cause: err}
		}
		b.WriteString(fmt.Sprint(v))
	}
	return b.String(), nil
}

// MustRender is Render for templates whose contexts are known to be complete.
func (t *Template[C]) MustRender(ctx C) string {
	s, err := t.Render(ctx)
	if err != nil {
		panic(err)
	}
	return s
}

func evaluate[C any](fn func(C) (any, error), ctx C) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn(ctx)
}

// IntOr returns def when v is zero.
// Negative values are passed through; the backend rejects them.
func IntOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
