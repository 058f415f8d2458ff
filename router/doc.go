// Package router decides which agents respond to a message and enforces the
// per-world turn limit that keeps agent-to-agent conversations from looping
// forever.
//
// Routing is mention driven. A mention only counts when it starts a paragraph
// and names a known agent, and only the first such mention in a message picks
// the recipient. A human message without any valid mention is public and goes
// to every active agent. Agents never trigger other agents implicitly: an
// agent reply without a valid mention goes to nobody.
package router
