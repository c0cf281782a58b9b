// Package cost resolves the monetary price of one model call from raw usage
// counters. It supports three pricing shapes: flat per-million-token rates,
// tiered rates with a total-token threshold cliff, and time-of-day rates with
// a UTC peak window, plus flat per-unit pricing for non-text outputs.
//
// Pricing data comes from the model catalog; [Resolver] joins the two and
// produces the cost_update snapshots adapters emit at stream end. Resolution
// never fails for a known model lacking a price (the snapshot is flagged
// NoPricing) but fails loudly for an unknown model id.
package cost
