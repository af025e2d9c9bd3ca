// Package model defines the provider-agnostic adapter contract used by
// toolflow to talk to reasoning models.
//
// Core goals:
//   - One request/response turn behind a single interface (Model)
//   - Normalize tool call representation (ToolDefinition, ToolCall)
//   - Decode provider tool calls into core.ToolCall values (ParseToolCalls)
//   - Facilitate deterministic tests (ScriptedModel)
//   - Compose cross-cutting behavior as middleware (WithRateLimit)
//
// Providers (openai, anthropic subpackages) implement Model so the workflow
// stays decoupled from vendor SDKs.
package model
