package testutils

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// PresencePlaceholder in expected JSON matches any actual value of that key.
const PresencePlaceholder = "<<PRESENCE>>"

// TestingT is the part of *testing.T the asserters need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

type JSONAssertOptions struct {
	IgnoreExtraKeys          bool     `default:"true"`
	AllowPresencePlaceholder bool     `default:"true"`
	IgnoredFields            []string `default:""`
	IgnoreArrayOrder         bool     `default:"false"`
}

type JSONOption func(*JSONAssertOptions)

// WithIgnoreExtraKeys drops actual keys the expected document does not mention.
func WithIgnoreExtraKeys(ignore bool) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoreExtraKeys = ignore }
}

func WithAllowPresencePlaceholder(allow bool) JSONOption {
	return func(o *JSONAssertOptions) { o.AllowPresencePlaceholder = allow }
}

// WithIgnoredFields removes the named keys at any depth on both sides.
func WithIgnoredFields(fields ...string) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoredFields = fields }
}

func WithIgnoreArrayOrder(ignore bool) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoreArrayOrder = ignore }
}

// JSONAsserter compares JSON documents and reports an ASCII diff on mismatch.
type JSONAsserter struct {
	t       TestingT
	options JSONAssertOptions
}

func NewJSONAsserter(t TestingT) *JSONAsserter {
	opts := JSONAssertOptions{}
	defaults.SetDefaults(&opts)
	return &JSONAsserter{t: t, options: opts}
}

func (ja *JSONAsserter) WithOptions(opts ...JSONOption) *JSONAsserter {
	for _, opt := range opts {
		opt(&ja.options)
	}
	return ja
}

// Assert compares actualJSON against expectedJSON.
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) bool {
	ja.t.Helper()
	if diff := ja.Diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON assertion failed:\n%s", diff)
		return false
	}
	return true
}

// AssertValue marshals actual and compares it against expectedJSON.
func (ja *JSONAsserter) AssertValue(actual any, expectedJSON string) bool {
	ja.t.Helper()
	return ja.Assert(MustJSON(actual), expectedJSON)
}

// Diff returns an empty string when both documents match under the options.
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff only compares objects at the root.
	if isArray(expected) && isArray(actual) {
		expected = map[string]interface{}{"array": expected}
		actual = map[string]interface{}{"array": actual}
	}

	if ja.options.AllowPresencePlaceholder {
		fillPlaceholders(expected, actual)
	}
	// Ignored fields go before sorting so they cannot influence element order.
	if len(ja.options.IgnoredFields) > 0 {
		removeFields(expected, ja.options.IgnoredFields)
		removeFields(actual, ja.options.IgnoredFields)
	}
	if ja.options.IgnoreArrayOrder {
		sortArrays(expected)
		sortArrays(actual)
	}
	if ja.options.IgnoreExtraKeys {
		pruneExtraKeys(actual, expected)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, _ := f.Format(diff)
	return out
}

func fillPlaceholders(expected, actual interface{}) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return
		}
		for k, v := range exp {
			if s, ok := v.(string); ok && s == PresencePlaceholder {
				if av, present := act[k]; present {
					exp[k] = av
				}
				continue
			}
			fillPlaceholders(v, act[k])
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				fillPlaceholders(exp[i], act[i])
			}
		}
	}
}

func removeFields(doc interface{}, fields []string) {
	switch v := doc.(type) {
	case map[string]interface{}:
		for _, f := range fields {
			delete(v, f)
		}
		for _, child := range v {
			removeFields(child, fields)
		}
	case []interface{}:
		for _, child := range v {
			removeFields(child, fields)
		}
	}
}

func pruneExtraKeys(actual, expected interface{}) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return
		}
		for k := range act {
			if _, exists := exp[k]; !exists {
				delete(act, k)
			}
		}
		for k := range exp {
			pruneExtraKeys(act[k], exp[k])
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				pruneExtraKeys(act[i], exp[i])
			}
		}
	}
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// sortArrays orders every array by the JSON encoding of its elements.
func sortArrays(doc interface{}) {
	switch v := doc.(type) {
	case map[string]interface{}:
		for _, child := range v {
			sortArrays(child)
		}
	case []interface{}:
		for _, elem := range v {
			sortArrays(elem)
		}
		sort.Slice(v, func(i, j int) bool {
			return MustJSON(v[i]) < MustJSON(v[j])
		})
	}
}
