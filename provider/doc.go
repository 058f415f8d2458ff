// Package provider defines the interface between a world and the AI model
// backends that generate agent replies. A provider turns a completion request
// into a channel of stream events which the world aggregates into a single
// reply message.
package provider
