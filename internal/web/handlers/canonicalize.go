package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cif-address/internal/normalize"
	"github.com/cif-address/internal/numeral"
	"github.com/cif-address/internal/postal"
)

// MaxBatchAddresses bounds POST /api/canonicalize/batch.
const MaxBatchAddresses = 1000

// CanonicalizeHandler serves the canonicalizer and its building blocks.
type CanonicalizeHandler struct {
	Canon *normalize.Canonicalizer
	Index *postal.Index
}

// CanonicalizeRequest is the body of POST /api/canonicalize.
type CanonicalizeRequest struct {
	Address json.RawMessage `json:"address"`
}

// CanonicalizeResponse describes one canonicalized address.
type CanonicalizeResponse struct {
	Input      string `json:"input"`
	Canonical  string `json:"canonical"`
	PostalCode string `json:"postal_code,omitempty"`
	Resolved   bool   `json:"resolved"`
	Invalid    bool   `json:"invalid,omitempty"`
}

// BatchRequest is the body of POST /api/canonicalize/batch.
type BatchRequest struct {
	Addresses []json.RawMessage `json:"addresses"`
}

// BatchResponse lists results in request order.
type BatchResponse struct {
	Results []CanonicalizeResponse `json:"results"`
}

// PostalCodeResponse is returned by GET /api/postal-code.
type PostalCodeResponse struct {
	Address    string `json:"address"`
	PostalCode string `json:"postal_code,omitempty"`
	Found      bool   `json:"found"`
}

// NumeralResponse is returned by GET /api/numerals/{text}.
type NumeralResponse struct {
	Input     string `json:"input"`
	Arabic    string `json:"arabic"`
	Converted bool   `json:"converted"`
	Chinese   string `json:"chinese"`
}

// Canonicalize handles POST /api/canonicalize.
func (h *CanonicalizeHandler) Canonicalize(w http.ResponseWriter, r *http.Request) {
	var req CanonicalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.canonicalize(req.Address))
}

// CanonicalizeBatch handles POST /api/canonicalize/batch.
func (h *CanonicalizeHandler) CanonicalizeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Addresses) > MaxBatchAddresses {
		http.Error(w, "Too many addresses", http.StatusRequestEntityTooLarge)
		return
	}

	resp := BatchResponse{Results: make([]CanonicalizeResponse, 0, len(req.Addresses))}
	for _, raw := range req.Addresses {
		resp.Results = append(resp.Results, h.canonicalize(raw))
	}
	writeJSON(w, http.StatusOK, resp)
}

// canonicalize decodes a JSON value; anything but a JSON string goes through
// the non-text path and yields the invalid-format marker.
func (h *CanonicalizeHandler) canonicalize(raw json.RawMessage) CanonicalizeResponse {
	var value any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			value = nil
		}
	}
	res := h.Canon.CanonicalizeValueDetailed(value)
	input := res.Input
	if res.Invalid {
		input = strings.TrimSpace(string(raw))
	}
	return CanonicalizeResponse{
		Input:      input,
		Canonical:  res.Address,
		PostalCode: res.PostalCode,
		Resolved:   res.Resolved,
		Invalid:    res.Invalid,
	}
}

// PostalCode handles GET /api/postal-code?address=...
func (h *CanonicalizeHandler) PostalCode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		http.Error(w, "Missing address", http.StatusBadRequest)
		return
	}
	address = strings.ReplaceAll(address, "台", "臺")
	code, ok := h.Index.Resolve(address)
	writeJSON(w, http.StatusOK, PostalCodeResponse{Address: address, PostalCode: code, Found: ok})
}

// Numeral handles GET /api/numerals/{text}.
func (h *CanonicalizeHandler) Numeral(w http.ResponseWriter, r *http.Request) {
	text := mux.Vars(r)["text"]
	res := numeral.Parse(text)
	writeJSON(w, http.StatusOK, NumeralResponse{
		Input:     text,
		Arabic:    res.Text,
		Converted: res.Converted,
		Chinese:   numeral.Format(res.Text),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
