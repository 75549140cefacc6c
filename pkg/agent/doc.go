// Package agent turns a routed dialogue plan into one generation call.
//
// The Dispatcher picks the instruction for the resolved stage, contextualizes the
// user message with what the plan requires (question to ask, re-prompt, result,
// crisis resources) and runs the call through a RetryPolicy. Generators are
// pluggable: gemini.Client talks to the hosted model, StaticGenerator replies
// deterministically for offline use and tests.
package agent
