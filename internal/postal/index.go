// Package postal holds the location-name to postal-code index used to
// prefix canonical addresses with a three digit code.
package postal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrReferenceData is returned when the reference table cannot be read.
// Nothing can be canonicalized without it.
var ErrReferenceData = errors.New("postal code reference data unavailable")

// Entry maps a location name (city, district, ...) to its postal code.
type Entry struct {
	Location string `json:"location"`
	Code     string `json:"code"`
}

// Index is an ordered list of entries. It is never mutated after Build,
// so it may be shared between goroutines.
type Index struct {
	entries []Entry
}

// Build creates an index in the given order. Codes are not validated and
// duplicates are kept.
func Build(entries []Entry) *Index {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Index{entries: cp}
}

// Load reads a JSON reference file, see Decode.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}
	defer f.Close()

	ix, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ix, nil
}

// Decode reads a flat JSON object {"location": "code", ...} keeping the key
// order of the document. A key seen twice keeps its first position and takes
// the later code.
func Decode(r io.Reader) (*Index, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrReferenceData)
	}

	var entries []Entry
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
		}
		location, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key %v", ErrReferenceData, tok)
		}

		var code string
		if err := dec.Decode(&code); err != nil {
			return nil, fmt.Errorf("%w: code for %q: %v", ErrReferenceData, location, err)
		}

		if i, dup := seen[location]; dup {
			entries[i].Code = code
			continue
		}
		seen[location] = len(entries)
		entries = append(entries, Entry{Location: location, Code: code})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrReferenceData)
	}
	return &Index{entries: entries}, nil
}

// Resolve returns the code of the first entry, in build order, whose
// location occurs anywhere in address. Nested names (a district inside a
// longer city name) therefore depend on the order of the reference data.
func (ix *Index) Resolve(address string) (string, bool) {
	if ix == nil {
		return "", false
	}
	for _, e := range ix.entries {
		if strings.Contains(address, e.Location) {
			return e.Code, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Entries returns a copy of the entries in build order.
func (ix *Index) Entries() []Entry {
	if ix == nil {
		return nil
	}
	cp := make([]Entry, len(ix.entries))
	copy(cp, ix.entries)
	return cp
}
