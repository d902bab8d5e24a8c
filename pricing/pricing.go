package pricing

import "strings"

// Entry holds the cost-per-token rates for one (provider, model) pair
type Entry struct {
	InputCostPerToken  float64
	OutputCostPerToken float64
}

// Table maps (provider, model) pairs to pricing entries. It is built once at
// startup (defaults plus operator overrides) and is read-only at request
// time, so lookups need no locking.
type Table struct {
	entries  map[string]Entry
	fallback Entry
}

// DefaultFallback is applied to (provider, model) pairs with no entry.
// Records priced this way are flagged pricingUnknown.
var DefaultFallback = Entry{
	InputCostPerToken:  0.00001,
	OutputCostPerToken: 0.00003,
}

// NewTable creates a pricing table with the built-in default rates
func NewTable() *Table {
	t := &Table{
		entries:  make(map[string]Entry),
		fallback: DefaultFallback,
	}
	for key, entry := range defaultEntries {
		t.entries[key] = entry
	}
	return t
}

// Set registers or overrides the entry for a (provider, model) pair.
// Only for use during startup; the table must not be mutated once requests
// are being served.
func (t *Table) Set(provider, model string, entry Entry) {
	t.entries[key(provider, model)] = entry
}

// SetFallback overrides the fallback rate applied to unknown pairs
func (t *Table) SetFallback(entry Entry) {
	t.fallback = entry
}

// Lookup returns the entry for a (provider, model) pair. The second return
// value is false when the pair is unknown and the fallback rate was used.
func (t *Table) Lookup(provider, model string) (Entry, bool) {
	if entry, ok := t.entries[key(provider, model)]; ok {
		return entry, true
	}
	return t.fallback, false
}

// Cost computes the monetary cost for a token usage split
func (e Entry) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*e.InputCostPerToken + float64(outputTokens)*e.OutputCostPerToken
}

// Len returns the number of known (provider, model) pairs
func (t *Table) Len() int {
	return len(t.entries)
}

func key(provider, model string) string {
	return strings.ToLower(provider) + "/" + strings.ToLower(model)
}

// defaultEntries are the shipped per-token rates, overridable at deploy time
// through the pricing store. USD per token.
var defaultEntries = map[string]Entry{
	"openai/gpt-4o":                     {InputCostPerToken: 0.0000025, OutputCostPerToken: 0.00001},
	"openai/gpt-4o-mini":                {InputCostPerToken: 0.00000015, OutputCostPerToken: 0.0000006},
	"openai/gpt-4-turbo":                {InputCostPerToken: 0.00001, OutputCostPerToken: 0.00003},
	"anthropic/claude-3-5-sonnet-latest": {InputCostPerToken: 0.000003, OutputCostPerToken: 0.000015},
	"anthropic/claude-3-5-haiku-latest":  {InputCostPerToken: 0.0000008, OutputCostPerToken: 0.000004},
	"gemini/gemini-2.0-flash":           {InputCostPerToken: 0.0000001, OutputCostPerToken: 0.0000004},
	"gemini/gemini-1.5-pro":             {InputCostPerToken: 0.00000125, OutputCostPerToken: 0.000005},
}
