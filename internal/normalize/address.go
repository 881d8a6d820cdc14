// Package normalize turns free-text Taiwanese mailing addresses into the
// canonical form stored in the customer master table:
//
//	<3 digit postal code><address with arabic segment/floor/number digits>
//
// The work is an ordered list of small text stages. Later stages rely on the
// earlier ones (numeral conversion expects half-width text, the postal code
// is stripped before it is injected again), so the order must not change.
package normalize

import (
	"database/sql"
	"unicode/utf8"

	"github.com/cif-address/internal/debug"
	"github.com/cif-address/internal/postal"
)

// InvalidFormat is returned for values that are not text, including byte
// strings that are not valid UTF-8.
const InvalidFormat = "輸入格式錯誤"

// Result describes one canonicalization.
type Result struct {
	Input      string
	Address    string
	PostalCode string
	// Resolved is false when no index entry matched and no code was added.
	Resolved bool
	// Invalid is set when the input was not text; Address is InvalidFormat.
	Invalid bool
}

// stage is a total text transformation. It may record facts on res but
// never fails.
type stage struct {
	name  string
	apply func(s string, res *Result) string
}

// Canonicalizer applies the stage list using a shared, read-only postal
// index. It holds no per-call state and may be used concurrently.
type Canonicalizer struct {
	index      *postal.Index
	localDebug bool
	warnMisses bool
	stages     []stage
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithDebug traces every stage that changes the text.
func WithDebug(enabled bool) Option {
	return func(c *Canonicalizer) { c.localDebug = enabled }
}

// WithMissWarnings controls the warning printed when no postal code matches.
// Enabled by default.
func WithMissWarnings(enabled bool) Option {
	return func(c *Canonicalizer) { c.warnMisses = enabled }
}

// NewCanonicalizer builds a canonicalizer over index.
func NewCanonicalizer(index *postal.Index, opts ...Option) *Canonicalizer {
	c := &Canonicalizer{index: index, warnMisses: true}
	for _, opt := range opts {
		opt(c)
	}
	c.stages = []stage{
		{"trim-unify", func(s string, _ *Result) string { return trimAndUnify(s) }},
		{"strip-postal-prefix", func(s string, _ *Result) string { return stripPostalPrefix(s) }},
		{"inject-postal-code", c.injectPostalCode},
		{"full-to-half-width", func(s string, _ *Result) string { return toHalfWidth(s) }},
		{"floor-marker", func(s string, _ *Result) string { return unifyFloorMarker(s) }},
		{"separator", func(s string, _ *Result) string { return unifySeparators(s) }},
		{"drop-neighborhood", func(s string, _ *Result) string { return dropNeighborhood(s) }},
		{"numerals", func(s string, _ *Result) string { return convertNumerals(s) }},
	}
	return c
}

// Canonicalize returns the canonical form of raw.
func Canonicalize(raw string, index *postal.Index) string {
	return NewCanonicalizer(index).Canonicalize(raw)
}

// Canonicalize returns the canonical form of raw.
func (c *Canonicalizer) Canonicalize(raw string) string {
	return c.CanonicalizeDetailed(raw).Address
}

// CanonicalizeValue accepts a value read from storage. Anything that is not
// text yields InvalidFormat instead of an error.
func (c *Canonicalizer) CanonicalizeValue(v any) string {
	return c.CanonicalizeValueDetailed(v).Address
}

// CanonicalizeValueDetailed is CanonicalizeValue returning the full Result.
func (c *Canonicalizer) CanonicalizeValueDetailed(v any) Result {
	s, ok := AsText(v)
	if !ok {
		return Result{Address: InvalidFormat, Invalid: true}
	}
	return c.CanonicalizeDetailed(s)
}

// CanonicalizeDetailed runs every stage in order and reports what happened.
func (c *Canonicalizer) CanonicalizeDetailed(raw string) Result {
	if !utf8.ValidString(raw) {
		return Result{Input: raw, Address: InvalidFormat, Invalid: true}
	}
	debug.DebugHeader(c.localDebug)
	defer debug.DebugFooter(c.localDebug)

	res := Result{Input: raw}
	s := raw
	for _, st := range c.stages {
		next := st.apply(s, &res)
		debug.DebugStage(c.localDebug, st.name, s, next)
		s = next
	}
	res.Address = s
	return res
}

// StageNames lists the stages in execution order.
func (c *Canonicalizer) StageNames() []string {
	names := make([]string, len(c.stages))
	for i, st := range c.stages {
		names[i] = st.name
	}
	return names
}

func (c *Canonicalizer) injectPostalCode(s string, res *Result) string {
	code, ok := c.index.Resolve(s)
	if !ok {
		if c.warnMisses && s != "" {
			debug.Warn("no postal code matches address %q", s)
		}
		return s
	}
	res.PostalCode = code
	res.Resolved = true
	return code + s
}

// AsText extracts a string from the value shapes database drivers return.
func AsText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, utf8.ValidString(t)
	case *string:
		if t == nil {
			return "", false
		}
		return *t, utf8.ValidString(*t)
	case []byte:
		if !utf8.Valid(t) {
			return "", false
		}
		return string(t), true
	case sql.NullString:
		return t.String, t.Valid && utf8.ValidString(t.String)
	}
	return "", false
}
