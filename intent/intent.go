// Package intent classifies incoming queries into a closed set of intents
// used to select an agent when the client does not supply an explicit mode.
//
// The classifier is an explicit, ordered, total function: every query maps to
// exactly one intent, and a query matching several rule sets takes the first
// match in the documented order (code, quantitative, multi-hop, simple
// search). The order is part of the contract and is covered by tests.
package intent

import "strings"

// Intent identifies the query category driving agent selection.
type Intent int

const (
	// SimpleSearch is the fallback intent served by the default deep search agent.
	SimpleSearch Intent = iota
	// Code marks programming queries served by the code agent.
	Code
	// Quantitative marks math/measurement queries served by the tool-calling
	// agent with the computation tool.
	Quantitative
	// MultiHop marks comparison/conjunction queries served by the secondary
	// search backend when one is configured.
	MultiHop
)

// String returns the intent name used in logs and response metadata.
func (i Intent) String() string {
	switch i {
	case Code:
		return "code"
	case Quantitative:
		return "quantitative"
	case MultiHop:
		return "multi_hop"
	default:
		return "simple_search"
	}
}

// Rule keyword sets, checked in classification order. Matching is
// case-insensitive substring containment over the whole query.
var (
	codeKeywords = []string{
		"write code", "code", "implement", "function", "program", "script",
	}
	quantitativeKeywords = []string{
		"calculate", "distance", "how many", "what is the",
	}
	multiHopKeywords = []string{
		"compare", " vs ", " versus ", " and ", "?",
	}
)

// Classifier maps query text to an Intent. Capability flags restrict which
// intents are reachable: an intent whose serving agent is not configured
// falls through to the next rule set, so classification never selects an
// agent the service cannot dispatch to.
type Classifier struct {
	// CodeEnabled gates the Code intent (requires the code agent to be
	// configured).
	CodeEnabled bool
	// QuantitativeEnabled gates the Quantitative intent (requires the
	// computation tool to be configured).
	QuantitativeEnabled bool
	// MultiHopEnabled gates the MultiHop intent (requires the secondary
	// search backend to be configured).
	MultiHopEnabled bool
}

// Classify returns the intent for a query. The rule order is fixed:
//  1. Code (when enabled)
//  2. Quantitative (when enabled)
//  3. MultiHop (when enabled)
//  4. SimpleSearch
//
// First match wins; a query containing both "code" and "calculate" is Code.
func (c Classifier) Classify(query string) Intent {
	lower := strings.ToLower(query)

	if c.CodeEnabled && containsAny(lower, codeKeywords) {
		return Code
	}
	if c.QuantitativeEnabled && containsAny(lower, quantitativeKeywords) {
		return Quantitative
	}
	if c.MultiHopEnabled && containsAny(lower, multiHopKeywords) {
		return MultiHop
	}
	return SimpleSearch
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
