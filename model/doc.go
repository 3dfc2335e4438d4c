// Package model defines the provider-agnostic abstractions for talking to
// hosted language models inside modelgate.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Google) implement the Model interface from
// this package so the call layer remains decoupled from vendor SDKs.
package model
