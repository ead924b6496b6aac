package cost

import "strings"

// Rate prices a backend in USD. Token rates are per million tokens;
// image rates are per generated image.
type Rate struct {
	InputPerMTok  float64
	OutputPerMTok float64
	PerImage      float64
}

// rates is keyed by backend-name prefix as reported by Backend.Name().
// Longest matching prefix wins, so specific models can override the
// provider-wide default. Local backends cost nothing.
var rates = map[string]Rate{
	"anthropic/claude-3-5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"anthropic/claude-3-5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"anthropic/claude-3-opus":     {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"anthropic/":                  {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"ollama/":                     {},
	"stable-diffusion":            {},
	"mock":                        {},
}

// RateFor resolves the pricing for a backend name via longest-prefix
// match. Unknown backends price at zero rather than failing the run.
func RateFor(backendName string) Rate {
	var (
		best    Rate
		bestLen = -1
	)
	for prefix, rate := range rates {
		if strings.HasPrefix(backendName, prefix) && len(prefix) > bestLen {
			best = rate
			bestLen = len(prefix)
		}
	}
	if bestLen < 0 {
		return Rate{}
	}
	return best
}
