// Package broker provides the per-world publish/subscribe bus. A broker owns
// no business logic: it isolates worlds by construction (one broker instance
// per world, never shared), fans events out to subscribers in publish order
// per topic, and enforces chat-session scoping at the subscription boundary.
//
// Two backends implement the same contract: an in-process broker for a single
// binary, and a NATS-backed broker for distributed deployments. Subscriptions
// are explicit handles; callers retain them and call Unsubscribe.
package broker
