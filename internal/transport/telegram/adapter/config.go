package adapter

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outgoing API calls. Telegram allows about 30/s per bot.
	RatePerSec int
	// PermTTL is how long chat permission lookups are reused.
	PermTTL time.Duration
	// Offline skips the getMe call on startup (tests).
	Offline bool
}

// allowedUpdates must include message_reaction; Telegram omits it by default.
var allowedUpdates = []string{
	"message",
	"edited_message",
	"callback_query",
	"message_reaction",
}
