package cost

import (
	"fmt"

	"github.com/leofalp/aigate/providers/ai"
)

// Rates holds flat per-million-token prices in USD.
type Rates struct {
	// InputPerMillion is the cost in USD per 1 million input tokens.
	InputPerMillion float64 `json:"input_per_million" yaml:"input_per_million"`

	// OutputPerMillion is the cost in USD per 1 million output tokens.
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`

	// CachedInputPerMillion is the (typically discounted) rate for prompt
	// tokens served from the vendor cache. Zero means cached tokens bill at
	// the regular input rate.
	CachedInputPerMillion float64 `json:"cached_input_per_million,omitempty" yaml:"cached_input_per_million,omitempty"`

	// ReasoningPerMillion is the rate for reasoning tokens. Zero means
	// reasoning tokens bill at the output rate.
	ReasoningPerMillion float64 `json:"reasoning_per_million,omitempty" yaml:"reasoning_per_million,omitempty"`
}

// IsZero reports whether no rate is configured.
func (r Rates) IsZero() bool {
	return r == Rates{}
}

// Total computes the flat cost of the given usage under these rates.
// Cached tokens are assumed to be counted inside InputTokens by the vendor
// and are re-billed at the discount delta when a cached rate is configured.
func (r Rates) Total(usage ai.Usage) float64 {
	perToken := func(tokens int, perMillion float64) float64 {
		return (float64(tokens) / 1_000_000.0) * perMillion
	}

	inputTokens := usage.InputTokens
	total := 0.0

	if r.CachedInputPerMillion > 0 && usage.CachedTokens > 0 {
		cached := min(usage.CachedTokens, inputTokens)
		inputTokens -= cached
		total += perToken(cached, r.CachedInputPerMillion)
	}

	total += perToken(inputTokens, r.InputPerMillion)
	total += perToken(usage.OutputTokens, r.OutputPerMillion)

	if r.ReasoningPerMillion > 0 && usage.ReasoningTokens > 0 {
		total += perToken(usage.ReasoningTokens, r.ReasoningPerMillion)
	}

	return total
}

// TieredRates selects between two flat rate sets based on which side of a
// total-token threshold the call falls. This is a cliff, not a blend: the
// whole call bills at the Above rates once the total crosses the threshold.
type TieredRates struct {
	// ThresholdTokens is the total-token boundary. Calls with total tokens
	// strictly greater than the threshold bill at Above.
	ThresholdTokens int   `json:"threshold_tokens" yaml:"threshold_tokens"`
	Below           Rates `json:"below" yaml:"below"`
	Above           Rates `json:"above" yaml:"above"`
}

// Select returns the rate set applying to the given total token count.
func (t TieredRates) Select(totalTokens int) Rates {
	if totalTokens > t.ThresholdTokens {
		return t.Above
	}
	return t.Below
}

// TimeOfDayRates selects between peak and off-peak flat rates based on the
// wall-clock UTC time of the call. The peak window is inclusive of PeakStart
// and exclusive of PeakEnd, and may wrap midnight.
type TimeOfDayRates struct {
	PeakStart ClockMinute `json:"peak_start" yaml:"peak_start"` // "HH:MM" in YAML
	PeakEnd   ClockMinute `json:"peak_end" yaml:"peak_end"`
	Peak      Rates       `json:"peak" yaml:"peak"`
	OffPeak   Rates       `json:"off_peak" yaml:"off_peak"`
}

// Select returns the rate set applying at the given UTC minute of day.
func (t TimeOfDayRates) Select(minute ClockMinute) Rates {
	inWindow := false
	if t.PeakStart <= t.PeakEnd {
		inWindow = minute >= t.PeakStart && minute < t.PeakEnd
	} else {
		// Window wraps midnight, e.g. 22:00-06:00.
		inWindow = minute >= t.PeakStart || minute < t.PeakEnd
	}

	if inWindow {
		return t.Peak
	}
	return t.OffPeak
}

// Pricing is the cost specification attached to a catalog ModelEntry.
// Exactly one of Flat, Tiered, TimeOfDay is set for token pricing; PerImage
// applies independently for per-unit outputs. A fully zero Pricing means the
// model is known but carries no price data.
type Pricing struct {
	Flat      *Rates          `json:"flat,omitempty" yaml:"flat,omitempty"`
	Tiered    *TieredRates    `json:"tiered,omitempty" yaml:"tiered,omitempty"`
	TimeOfDay *TimeOfDayRates `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"`

	// PerImage is the flat USD price per generated image.
	PerImage float64 `json:"per_image,omitempty" yaml:"per_image,omitempty"`
}

// IsZero reports whether the model carries no price data at all.
func (p Pricing) IsZero() bool {
	return p.Flat == nil && p.Tiered == nil && p.TimeOfDay == nil && p.PerImage == 0
}

func (p Pricing) String() string {
	switch {
	case p.Flat != nil:
		return fmt.Sprintf("flat $%.4f/M in, $%.4f/M out", p.Flat.InputPerMillion, p.Flat.OutputPerMillion)
	case p.Tiered != nil:
		return fmt.Sprintf("tiered at %d tokens", p.Tiered.ThresholdTokens)
	case p.TimeOfDay != nil:
		return fmt.Sprintf("time-of-day peak %s-%s", p.TimeOfDay.PeakStart, p.TimeOfDay.PeakEnd)
	case p.PerImage > 0:
		return fmt.Sprintf("$%.4f/image", p.PerImage)
	default:
		return "no pricing"
	}
}
