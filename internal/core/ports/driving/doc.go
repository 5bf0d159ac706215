// Package driving defines the interfaces that outside actors (HTTP API, CLI,
// MCP server, inbox watcher) use to reach the core.
//
// Implementations live in internal/core/services.
package driving
