// Package events defines the closed set of events that travel over a world's
// bus, the Hook interface subscribers implement to receive them, and the JSON
// codecs used when a broker backend has to put events on a wire.
//
// Events are grouped into three topics:
//
//   - conversation: chat-visible messages
//   - stream: start/chunk/end/error notifications for in-flight model output
//   - system: diagnostics, never agent-actionable
//
// Every event carries the chat session it belongs to, which is what
// session-scoped subscriptions filter on.
package events
