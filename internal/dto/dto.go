// Package dto parses and validates inbound request payloads.
//
// Every DTO is checked by an explicit list of named rules per field. All
// fields are checked before returning, so a failure lists every violated
// field rather than the first one. Failures are *validate.Error values from
// ogen's runtime, one validate.FieldError per field.
package dto

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/ogen-go/ogen/validate"
)

// Rule checks a single raw field value.
type Rule func(v string) error

// Required rejects empty (after trimming) values.
func Required() Rule {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return errors.New("is required")
		}
		return nil
	}
}

// Length bounds the value's length in bytes. A zero max means unbounded.
func Length(minLen, maxLen int) Rule {
	return func(v string) error {
		return (validate.String{
			MinLength:    minLen,
			MinLengthSet: minLen > 0,
			MaxLength:    maxLen,
			MaxLengthSet: maxLen > 0,
		}).Validate(v)
	}
}

// Matches requires the value to match re; desc names the expected shape.
func Matches(re *regexp.Regexp, desc string) Rule {
	return func(v string) error {
		if !re.MatchString(v) {
			return errors.Errorf("must be %s", desc)
		}
		return nil
	}
}

// OneOf requires the value to be one of allowed.
func OneOf(allowed ...string) Rule {
	return func(v string) error {
		if !slices.Contains(allowed, v) {
			return errors.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

// Integer requires a base-10 integer within [lo, hi].
func Integer(lo, hi int64) Rule {
	return func(v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.New("must be an integer")
		}
		return (validate.Int{MinSet: true, Min: lo, MaxSet: true, Max: hi}).Validate(n)
	}
}

// Bool requires "true" or "false".
func Bool() Rule {
	return OneOf("true", "false")
}

// AbsoluteURL requires an http(s) URL with a host.
func AbsoluteURL() Rule {
	return func(v string) error {
		u, err := url.Parse(v)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return errors.New("must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("must use http or https")
		}
		return nil
	}
}

// Optional applies rules only when the value is non-empty.
func Optional(rules ...Rule) Rule {
	return func(v string) error {
		if v == "" {
			return nil
		}
		for _, r := range rules {
			if err := r(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// checker accumulates field failures.
type checker struct {
	fields []validate.FieldError
}

// field runs rules against value in order and records the first failure.
// It reports whether the field passed.
func (c *checker) field(name, value string, rules ...Rule) bool {
	for _, r := range rules {
		if err := r(value); err != nil {
			c.fail(name, err)
			return false
		}
	}
	return true
}

func (c *checker) fail(name string, err error) {
	c.fields = append(c.fields, validate.FieldError{Name: name, Error: err})
}

func (c *checker) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &validate.Error{Fields: c.fields}
}

// BodyError wraps a payload that could not be decoded at all.
func BodyError(err error) error {
	return &validate.Error{Fields: []validate.FieldError{{Name: "body", Error: err}}}
}

// Fields returns the field failures carried by a validation error, or nil
// when err is not one.
func Fields(err error) []validate.FieldError {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
