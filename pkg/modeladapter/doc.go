// Package modeladapter provides the shared HTTP plumbing for providers that
// are spoken to with raw JSON rather than a vendor SDK.
//
// It contains:
//   - [ModelAdapter], an embeddable base struct with auth, custom headers, JSON
//     POST and server-sent-event streaming helpers
//   - [github.com/germanamz/chaichat/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// This package contains no provider-specific code. Concrete adapters live in
// separate packages that import modeladapter.
package modeladapter
