// Package stream aggregates provider stream events into finished reply
// messages. While a reply is being generated the aggregator republishes the
// provider's progress on the world's stream topic; when the provider is done
// it hands the full text to a sink for persistence and publishes the exact
// text the sink stored. A failed stream leaves nothing behind except the
// error event.
package stream
