package services

import (
	"sort"
	"strings"

	"github.com/rchan/rchan-web/apiclient"
)

// FieldErrors maps a form field to the message shown next to it.
type FieldErrors map[string]string

// Add records msg for field unless the field already has an error.
func (e FieldErrors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Empty reports whether no field failed.
func (e FieldErrors) Empty() bool { return len(e) == 0 }

// ValidationError is returned before any network call when a form is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Check wraps errs in a ValidationError, or returns nil when there are none.
func Check(errs FieldErrors) error {
	if errs.Empty() {
		return nil
	}
	return &ValidationError{Fields: errs}
}

// expiredOnly keeps session expiry, which must log the user out, and swallows the rest.
func expiredOnly(err error) error {
	if apiclient.IsSessionExpired(err) {
		return err
	}
	return nil
}
