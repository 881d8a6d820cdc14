// Package components breaks a canonical address into labelled parts with
// libpostal. It needs libpostal and its data files installed at build time.
package components

import (
	"strings"

	postal "github.com/openvenues/gopostal/parser"
)

// Component is one labelled part of an address, e.g. {"road", "復興南路1段"}.
type Component struct {
	Label string
	Value string
}

// Parse returns libpostal's components for address. Blank input yields nil.
func Parse(address string) []Component {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	parsed := postal.ParseAddressOptions(address, postal.ParserOptions{Country: "tw"})
	out := make([]Component, 0, len(parsed))
	for _, c := range parsed {
		out = append(out, Component{Label: c.Label, Value: c.Value})
	}
	return out
}

// Lookup returns the first value with the given label.
func Lookup(components []Component, label string) (string, bool) {
	for _, c := range components {
		if c.Label == label {
			return c.Value, true
		}
	}
	return "", false
}
