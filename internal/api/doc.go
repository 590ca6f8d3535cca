// Package api exposes the tool registry over HTTP: tool discovery, tool
// invocation with MCP-style text results, health and metrics endpoints.
package api
