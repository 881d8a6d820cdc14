package batch

import (
	"context"
	"log"
	"strings"

	"github.com/cif-address/internal/llm"
	"github.com/cif-address/internal/normalize"
	"github.com/cif-address/internal/store"
)

// RuleStrategy uses the deterministic canonicalizer. When the canonical form
// comes out blank the raw address is stored instead.
type RuleStrategy struct {
	canon  *normalize.Canonicalizer
	column string
}

// NewRuleStrategy writes into column.
func NewRuleStrategy(canon *normalize.Canonicalizer, column string) *RuleStrategy {
	return &RuleStrategy{canon: canon, column: column}
}

func (s *RuleStrategy) Name() string   { return "rules" }
func (s *RuleStrategy) Column() string { return s.column }

func (s *RuleStrategy) Process(_ context.Context, records []store.Record) (Outcome, error) {
	var out Outcome
	for _, rec := range records {
		res := s.canon.CanonicalizeValueDetailed(rec.Address)
		value := res.Address
		switch {
		case res.Invalid:
			out.Invalid++
		case !res.Resolved:
			out.Unresolved++
		}
		if strings.TrimSpace(value) == "" {
			raw, _ := normalize.AsText(rec.Address)
			value = raw
		}
		if value == "" {
			out.Skipped++
			continue
		}
		out.Updates = append(out.Updates, store.Update{ID: rec.ID, Value: value})
	}
	return out, nil
}

// Completer is the LLM call used by LLMStrategy.
type Completer interface {
	Canonicalize(ctx context.Context, items []llm.Item) ([]llm.Answer, error)
}

// LLMStrategy sends each batch to the chat-completion service. Blank
// answers and answers for ids outside the batch are dropped, leaving those
// rows pending for the next run.
type LLMStrategy struct {
	client Completer
	column string
}

// NewLLMStrategy writes into column.
func NewLLMStrategy(client Completer, column string) *LLMStrategy {
	return &LLMStrategy{client: client, column: column}
}

func (s *LLMStrategy) Name() string   { return "llm" }
func (s *LLMStrategy) Column() string { return s.column }

func (s *LLMStrategy) Process(ctx context.Context, records []store.Record) (Outcome, error) {
	var out Outcome
	items := make([]llm.Item, 0, len(records))
	wanted := make(map[string]bool, len(records))
	for _, rec := range records {
		addr, ok := normalize.AsText(rec.Address)
		if !ok {
			out.Invalid++
			out.Updates = append(out.Updates, store.Update{ID: rec.ID, Value: normalize.InvalidFormat})
			continue
		}
		items = append(items, llm.Item{ID: rec.ID, Address: addr})
		wanted[rec.ID] = true
	}
	if len(items) == 0 {
		return out, nil
	}

	answers, err := s.client.Canonicalize(ctx, items)
	if err != nil {
		return Outcome{}, err
	}
	if len(answers) != len(items) {
		log.Printf("LLM answered %d of %d addresses", len(answers), len(items))
	}

	for _, a := range answers {
		if !wanted[a.ID] || strings.TrimSpace(a.Address) == "" {
			continue
		}
		delete(wanted, a.ID)
		out.Updates = append(out.Updates, store.Update{ID: a.ID, Value: a.Address})
	}
	out.Skipped = len(wanted)
	return out, nil
}
