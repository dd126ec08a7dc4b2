// Package marker implements a parametrized two-state scanner for start/end
// marker pairs embedded in free text.
//
// One mechanism serves three uses: stripping inline reasoning annotations
// (<think>...</think>) from streamed assistant text, detecting helper-query
// envelopes in committed replies, and recognizing helper-result envelopes.
// Only the reasoning use suppresses the matched span from public output;
// envelope detection extracts the span's body without deleting it.
//
// The streaming Filter is chunk-boundary agnostic: a marker literal split
// across any number of reads is still detected, because the filter holds
// back the longest tail that could still be a marker prefix.
package marker
