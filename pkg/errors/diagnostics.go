package errors

import "strings"

// Diagnostics accumulates errors and warnings across a whole operation.
// The resolver and validators collect every distinct defect before
// returning, so callers always get a complete diagnostic list instead of
// the first failure. The zero value is ready to use.
type Diagnostics struct {
	Errors   []*Error
	Warnings []*Error
}

// Errorf appends a new error with the given code.
func (d *Diagnostics) Errorf(code Code, format string, args ...any) {
	d.Errors = append(d.Errors, New(code, format, args...))
}

// Warnf appends a new warning with the given code.
func (d *Diagnostics) Warnf(code Code, format string, args ...any) {
	d.Warnings = append(d.Warnings, New(code, format, args...))
}

// AddError appends err if it is non-nil. Non-*Error values are wrapped
// with ErrCodeInternal so every collected entry carries a code.
func (d *Diagnostics) AddError(err error) {
	if err == nil {
		return
	}
	if e, ok := err.(*Error); ok {
		d.Errors = append(d.Errors, e)
		return
	}
	d.Errors = append(d.Errors, Wrap(ErrCodeInternal, err, "unexpected error"))
}

// Merge appends all errors and warnings from other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
}

// HasErrors reports whether at least one error was collected.
// Warnings alone do not count.
func (d *Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// HasCode reports whether any collected error carries the given code.
func (d *Diagnostics) HasCode(code Code) bool {
	for _, e := range d.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Err returns a single error summarizing all collected errors, or nil if
// none were collected. Use this at API boundaries that expect one error
// value.
func (d *Diagnostics) Err() error {
	switch len(d.Errors) {
	case 0:
		return nil
	case 1:
		return d.Errors[0]
	}
	msgs := make([]string, len(d.Errors))
	for i, e := range d.Errors {
		msgs[i] = e.Error()
	}
	return New(d.Errors[0].Code, "%d errors: %s", len(d.Errors), strings.Join(msgs, "; "))
}
