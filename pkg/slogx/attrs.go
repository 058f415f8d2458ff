package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the provided key and the string
// representation of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// World returns an attribute for the world a log line belongs to.
func World(id string) slog.Attr {
	return slog.String("world", id)
}

// Session returns an attribute for the chat session a log line belongs to.
func Session(id string) slog.Attr {
	return slog.String("session", id)
}

// Agent returns an attribute for the agent a log line belongs to.
func Agent(name string) slog.Attr {
	return slog.String("agent", name)
}
