// Package logx is editbot's structured logging layer.
//
// A small Logger value wraps zerolog so components can carry fixed fields
// (component name, chat, request id) and keep working across config reloads.
// Sinks: console (human readable), file (JSON lines) and an optional chat sink
// that forwards warnings to an operator chat under a rate limit.
package logx
