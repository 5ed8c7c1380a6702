package editor

import (
	"errors"
	"fmt"
)

// PermissionError is returned when the bot lacks a right it needs to answer
// in a chat. Its message is meant for the requester.
type PermissionError struct {
	Action string // "send messages", "embed links", "attach files"
	ChatID int64
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("I don't have permission to %s in this chat!", e.Action)
}

// IsPermission reports whether err carries a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
