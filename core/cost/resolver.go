package cost

import (
	"errors"
	"fmt"
	"time"

	"github.com/leofalp/aigate/providers/ai"
)

// ErrUnknownModel is returned when a model id resolves to no catalog entry.
// Unknown models fail loudly; known models without price data do not.
var ErrUnknownModel = errors.New("unknown model")

// Lookup is the catalog boundary the resolver depends on. PricingFor returns
// the pricing and canonical id for a model id or alias, or an error wrapping
// ErrUnknownModel.
type Lookup interface {
	PricingFor(modelID string) (Pricing, string, error)
}

// Resolver turns (model id, usage counters) into a priced cost_update
// snapshot. The clock is injectable so time-of-day pricing is testable.
type Resolver struct {
	lookup Lookup
	now    func() time.Time
}

// NewResolver creates a Resolver over the given pricing lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup, now: time.Now}
}

// WithClock overrides the wall clock used for time-of-day rate selection.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve computes the price of one call.
//
// A known model with no price data yields a zero-cost snapshot flagged
// NoPricing. Zero usage (the vendor never reported counters) yields a
// snapshot flagged Estimated rather than omitting the event. An unknown
// model id returns an error wrapping ErrUnknownModel.
func (r *Resolver) Resolve(modelID string, usage ai.Usage) (ai.CostUpdate, error) {
	pricing, canonicalID, err := r.lookup.PricingFor(modelID)
	if err != nil {
		return ai.CostUpdate{}, fmt.Errorf("resolving cost for %q: %w", modelID, err)
	}

	update := ai.CostUpdate{
		Model:     canonicalID,
		Usage:     usage,
		Estimated: usage.IsZero(),
	}

	if pricing.IsZero() {
		update.NoPricing = true
		return update, nil
	}

	rates, ok := r.selectRates(pricing, usage)
	if ok {
		update.Cost = rates.Total(usage)
	}

	if pricing.PerImage > 0 && usage.Images > 0 {
		update.Cost += pricing.PerImage * float64(usage.Images)
	}

	return update, nil
}

// selectRates picks the flat rate set applying to this call. The second
// return is false when the pricing has no token component (per-unit only).
func (r *Resolver) selectRates(pricing Pricing, usage ai.Usage) (Rates, bool) {
	switch {
	case pricing.Flat != nil:
		return *pricing.Flat, true

	case pricing.Tiered != nil:
		// The cliff applies to the call's total token count, not to the
		// increment above the threshold.
		return pricing.Tiered.Select(totalTokens(usage)), true

	case pricing.TimeOfDay != nil:
		return pricing.TimeOfDay.Select(MinuteOf(r.now())), true

	default:
		return Rates{}, false
	}
}

// totalTokens prefers the vendor-reported total and falls back to summing
// the individual counters when the vendor never sent one.
func totalTokens(usage ai.Usage) int {
	if usage.TotalTokens > 0 {
		return usage.TotalTokens
	}
	return usage.InputTokens + usage.OutputTokens + usage.ReasoningTokens
}

// Breakdown is a per-token-class cost report for a single call.
type Breakdown struct {
	Model         string  `json:"model"`
	InputCost     float64 `json:"input_cost"`
	OutputCost    float64 `json:"output_cost"`
	CachedCost    float64 `json:"cached_cost"`
	ReasoningCost float64 `json:"reasoning_cost"`
	ImageCost     float64 `json:"image_cost"`
	TotalCost     float64 `json:"total_cost"`
}

// ResolveBreakdown computes the same price as Resolve, itemized by token
// class.
func (r *Resolver) ResolveBreakdown(modelID string, usage ai.Usage) (Breakdown, error) {
	pricing, canonicalID, err := r.lookup.PricingFor(modelID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("resolving cost for %q: %w", modelID, err)
	}

	breakdown := Breakdown{Model: canonicalID}
	if pricing.IsZero() {
		return breakdown, nil
	}

	if rates, ok := r.selectRates(pricing, usage); ok {
		perToken := func(tokens int, perMillion float64) float64 {
			return (float64(tokens) / 1_000_000.0) * perMillion
		}

		inputTokens := usage.InputTokens
		if rates.CachedInputPerMillion > 0 && usage.CachedTokens > 0 {
			cached := min(usage.CachedTokens, inputTokens)
			inputTokens -= cached
			breakdown.CachedCost = perToken(cached, rates.CachedInputPerMillion)
		}
		breakdown.InputCost = perToken(inputTokens, rates.InputPerMillion)
		breakdown.OutputCost = perToken(usage.OutputTokens, rates.OutputPerMillion)
		if rates.ReasoningPerMillion > 0 {
			breakdown.ReasoningCost = perToken(usage.ReasoningTokens, rates.ReasoningPerMillion)
		}
	}

	if pricing.PerImage > 0 {
		breakdown.ImageCost = pricing.PerImage * float64(usage.Images)
	}

	breakdown.TotalCost = breakdown.InputCost + breakdown.OutputCost +
		breakdown.CachedCost + breakdown.ReasoningCost + breakdown.ImageCost
	return breakdown, nil
}

// Snapshot builds the cost_update payload for one finished call. Resolution
// failures degrade to a raw usage snapshot rather than failing the stream, so
// adapters can always emit their single cost event. A nil resolver is allowed.
func Snapshot(r *Resolver, modelID string, usage ai.Usage) *ai.CostUpdate {
	if r != nil {
		if update, err := r.Resolve(modelID, usage); err == nil {
			return &update
		}
	}
	return &ai.CostUpdate{
		Model:     modelID,
		Usage:     usage,
		Estimated: usage.IsZero(),
		NoPricing: true,
	}
}
