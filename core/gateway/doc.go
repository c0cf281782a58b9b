// Package gateway is the orchestrator in front of the provider adapters. One
// call to [Gateway.Stream] resolves a model name through the catalog (ids,
// aliases, intensity-suffixed variants), picks the registered adapter for the
// owning vendor, transcodes inline media, and drives the adapter's stream
// under the retry supervisor. The caller sees one ordered sequence of unified
// events regardless of which vendor answered.
//
// The gateway also owns the per-agent sequential queue: tool invocations
// submitted through [Gateway.RunSequential] with the same agent id execute
// strictly in submission order, which keeps ordering-sensitive side effects
// correct even when the model requests several calls at once.
package gateway
