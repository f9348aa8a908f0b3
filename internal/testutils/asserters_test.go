package testutils

import (
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

// recorder captures asserter failures instead of failing the test.
type recorder struct {
	failures []string
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestJSONAsserterDefaults(t *testing.T) {
	ja := NewJSONAsserter(t)
	assert.True(t, ja.options.IgnoreExtraKeys)
	assert.True(t, ja.options.AllowPresencePlaceholder)
	assert.False(t, ja.options.IgnoreArrayOrder)
	assert.Empty(t, ja.options.IgnoredFields)
}

func TestJSONAsserterDiff(t *testing.T) {
	tests := []struct {
		name     string
		opts     []JSONOption
		actual   string
		expected string
		match    bool
	}{
		{
			name:     "identical",
			actual:   `{"id":"a","phase":"streaming"}`,
			expected: `{"id":"a","phase":"streaming"}`,
			match:    true,
		},
		{
			name:     "extra actual keys ignored by default",
			actual:   `{"id":"a","phase":"streaming","extra":1}`,
			expected: `{"id":"a","phase":"streaming"}`,
			match:    true,
		},
		{
			name:     "extra actual keys reported when not ignored",
			opts:     []JSONOption{WithIgnoreExtraKeys(false)},
			actual:   `{"id":"a","extra":1}`,
			expected: `{"id":"a"}`,
		},
		{
			name:     "presence placeholder matches any value",
			actual:   `{"id":"a","at":"2024-01-01T00:00:00Z"}`,
			expected: `{"id":"a","at":"<<PRESENCE>>"}`,
			match:    true,
		},
		{
			name:     "presence placeholder requires the key",
			actual:   `{"id":"a"}`,
			expected: `{"id":"a","at":"<<PRESENCE>>"}`,
		},
		{
			name:     "value mismatch",
			actual:   `{"temperature":25.1}`,
			expected: `{"temperature":25.0}`,
		},
		{
			name:     "ignored fields at any depth",
			opts:     []JSONOption{WithIgnoredFields("received_at")},
			actual:   `{"events":[{"kind":"voltage","received_at":1},{"kind":"temperature","received_at":2}]}`,
			expected: `{"events":[{"kind":"voltage","received_at":9},{"kind":"temperature"}]}`,
			match:    true,
		},
		{
			name:     "array order matters by default",
			actual:   `[1,2,3]`,
			expected: `[3,2,1]`,
		},
		{
			name:     "array order ignored",
			opts:     []JSONOption{WithIgnoreArrayOrder(true)},
			actual:   `[{"k":"b"},{"k":"a"}]`,
			expected: `[{"k":"a"},{"k":"b"}]`,
			match:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewJSONAsserter(t).WithOptions(tt.opts...).Diff(tt.actual, tt.expected)
			if tt.match {
				assert.Empty(t, diff)
			} else {
				assert.NotEmpty(t, diff)
			}
		})
	}
}

func TestJSONAsserterReportsFailure(t *testing.T) {
	rec := &recorder{}
	ok := NewJSONAsserter(rec).AssertValue(map[string]int{"x": 1}, `{"x":2}`)

	assert.False(t, ok)
	assert.Len(t, rec.failures, 1)
	assert.Contains(t, rec.failures[0], "JSON assertion failed")

	rec = &recorder{}
	assert.False(t, NewJSONAsserter(rec).Assert(`{`, `{}`))
	assert.Contains(t, rec.failures[0], "invalid actual JSON")
}

func TestTextAsserter(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
		match    bool
	}{
		{
			name:     "surrounding whitespace trimmed by default",
			actual:   "\n  line one\nline two  \n\n",
			expected: "line one\nline two",
			match:    true,
		},
		{
			name:     "colors stripped by default",
			actual:   "\x1b[32mstreaming\x1b[0m thermo",
			expected: "streaming thermo",
			match:    true,
		},
		{
			name:     "empty lines significant by default",
			actual:   "a\n\nb",
			expected: "a\nb",
		},
		{
			name:     "empty lines ignored",
			opts:     []TextOption{WithIgnoreEmptyLines(true)},
			actual:   "a\n\nb",
			expected: "a\nb",
			match:    true,
		},
		{
			name:     "trailing whitespace significant when requested",
			opts:     []TextOption{WithIgnoreTrailingWhitespace(false), WithTrimSpace(false)},
			actual:   "a \nb",
			expected: "a\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewTextAsserter(t).WithOptions(tt.opts...).Diff(tt.actual, tt.expected)
			if tt.match {
				assert.Empty(t, diff)
			} else {
				assert.Contains(t, diff, "--- expected")
			}
		})
	}
}

func TestTextAsserterColoredDiff(t *testing.T) {
	diff := NewTextAsserter(t).WithOptions(WithEnableColors(true)).Diff("b", "a")

	red := color.New(color.FgRed)
	red.EnableColor()
	assert.Contains(t, diff, red.Sprint("-a"))
	plain := StripANSI(diff)
	assert.Contains(t, plain, "--- expected")
	assert.Contains(t, plain, "\n-a\n")
	assert.Contains(t, plain, "\n+b\n")
}
