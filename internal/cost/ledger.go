package cost

import (
	"sync"

	"bookforge/internal/backend"
)

// Record is one priced backend interaction.
type Record struct {
	Backend      string  `json:"backend"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Images       int     `json:"images"`
	CostUSD      float64 `json:"cost_usd"`
}

// RunSummary is the priced outcome of a single pipeline run.
type RunSummary struct {
	Records      []Record `json:"records"`
	TotalCostUSD float64  `json:"total_cost_usd"`
}

// Ledger accumulates priced usage over the course of one run.
// Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records []Record
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Price converts raw usage into USD for the named backend.
func Price(backendName string, usage backend.Usage) float64 {
	rate := RateFor(backendName)
	cost := float64(usage.InputTokens)/1_000_000*rate.InputPerMTok +
		float64(usage.OutputTokens)/1_000_000*rate.OutputPerMTok +
		float64(usage.Images)*rate.PerImage
	return cost
}

// Add prices the usage delta and appends a record for it.
func (l *Ledger) Add(backendName string, usage backend.Usage) Record {
	rec := Record{
		Backend:      backendName,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Images:       usage.Images,
		CostUSD:      Price(backendName, usage),
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return rec
}

// Total returns the summed cost of all records so far.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, rec := range l.records {
		total += rec.CostUSD
	}
	return total
}

// Summary snapshots the ledger into a serializable run summary.
func (l *Ledger) Summary() RunSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := make([]Record, len(l.records))
	copy(records, l.records)
	var total float64
	for _, rec := range records {
		total += rec.CostUSD
	}
	return RunSummary{Records: records, TotalCostUSD: total}
}
