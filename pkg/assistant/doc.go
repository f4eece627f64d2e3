// Package assistant drives the learning loop that keeps the memory store in
// sync with a conversation.
//
// A turn runs four stages: extract search queries from the messages, recall
// matching memories, ask the model whether anything should be learned, then
// apply the resulting additions and updates. Each completion call is bounded
// by a timeout, each structured response is schema-validated before decoding,
// and malformed decisions degrade to "nothing to learn" rather than failing
// the turn.
//
// Two Completer implementations are provided, one per provider API. The
// orchestrator is agnostic to which one it drives.
package assistant
