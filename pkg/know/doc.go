// Package know defines the value types shared across the conversational
// memory engine: entities, actions, topics and tags, their text locations,
// and the messages and threads that carry them. The conversation aggregate
// itself lives in package conversation.
//
// The knowledge types form a closed tagged union (Kind), not an interface
// hierarchy: the set of knowledge kinds is fixed by the wire format in
// package snapshot and must not grow without a format revision.
package know
