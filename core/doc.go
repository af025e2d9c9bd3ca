// Package core provides the foundational domain types used by toolflow:
//
//   - Events (the closed set of signals exchanged between workflow steps)
//   - Messages and ToolCalls (the conversation record)
//   - ChatHistory (append-only, single writer)
//   - RunContext / ToolContext (per-run and per-call execution scopes)
//   - Barrier (fan-in join buffer)
//   - The error taxonomy shared by the engine, tools and workflow
//
// The package keeps orchestration and provider concerns out of scope so the
// engine, model adapters and tools can depend on it without cycles.
package core
