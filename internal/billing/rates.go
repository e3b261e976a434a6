package billing

import (
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRateKey names the fallback rate inside a client's rate map.
const DefaultRateKey = "default"

// RateResolver returns the hourly rate for a task within a project.
type RateResolver func(project, task string) decimal.Decimal

// RateTable is an immutable snapshot of the configured hourly rates.
// Build it with NewRateTable and WithClient; both copy their inputs.
// Client ids and task names match case-insensitively.
type RateTable struct {
	rates   map[string]decimal.Decimal
	def     decimal.Decimal
	clients map[string]map[string]decimal.Decimal
}

func NewRateTable(rates map[string]decimal.Decimal, def decimal.Decimal) RateTable {
	return RateTable{
		rates:   lowerKeys(rates),
		def:     def,
		clients: map[string]map[string]decimal.Decimal{},
	}
}

// WithClient returns a copy of t with a client-specific rate map, which may
// carry a "default" entry.
func (t RateTable) WithClient(id string, rates map[string]decimal.Decimal) RateTable {
	clients := make(map[string]map[string]decimal.Decimal, len(t.clients)+1)
	maps.Copy(clients, t.clients)
	clients[rateKey(id)] = lowerKeys(rates)
	return RateTable{rates: t.rates, def: t.def, clients: clients}
}

// Default is the global default rate.
func (t RateTable) Default() decimal.Decimal { return t.def }

// Resolve walks the precedence chain: client task rate, client default,
// global task rate, global default. It always returns a rate.
func (t RateTable) Resolve(project, task string) decimal.Decimal {
	project, task = rateKey(project), rateKey(task)
	if client, ok := t.clients[project]; ok {
		if r, ok := client[task]; ok {
			return r
		}
		if r, ok := client[DefaultRateKey]; ok {
			return r
		}
	}
	if r, ok := t.rates[task]; ok {
		return r
	}
	return t.def
}

func rateKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func lowerKeys(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[rateKey(k)] = v
	}
	return out
}
