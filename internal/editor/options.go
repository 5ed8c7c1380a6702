package editor

import "time"

// Trigger selects how the delete affordance is presented.
type Trigger int

const (
	TriggerDefault  Trigger = iota // use the configured default
	TriggerReaction                // a reaction on the response
	TriggerButton                  // an inline "delete" button
)

// Options tune a single Respond call. The zero value edits the cached
// response, clears reactions first and attaches the configured affordance.
type Options struct {
	// NoSave sends without reading or writing the response cache.
	NoSave bool
	// NoEdit sends a fresh response even when one is cached; the new one
	// replaces the old cache entry.
	NoEdit bool

	// KeepInvokeReactions skips clearing reactions on the invoking message
	// before an edit.
	KeepInvokeReactions bool
	// KeepResponseReactions skips clearing reactions on the cached response
	// before an edit.
	KeepResponseReactions bool

	// DeleteAffordance overrides the configured affordance specifier
	// (bool, emoji string, custom emoji id, Affordance). Nil keeps the default;
	// false disables it.
	DeleteAffordance any
	Trigger          Trigger
	// DeleteTimeout bounds the wait for a delete trigger (0 = default).
	DeleteTimeout time.Duration

	// DeleteAfter removes the response unconditionally after the duration.
	DeleteAfter time.Duration

	// Reply quotes the invoking message on fresh sends.
	Reply bool
}
