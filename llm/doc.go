// Package llm is a minimal OpenAI-compatible chat-completions client.
// Providers are configured per request so that one client can serve
// many stored provider rows.
package llm
