package tgui

import (
	"errors"
	"fmt"

	"editbot/internal/transport"
)

const (
	// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
	MaxCallbackDataLen = 64
	// MaxTextLen keeps a margin below Telegram's 4096 character message limit.
	MaxTextLen = 4000
	// MaxCaptionLen is the limit for document captions.
	MaxCaptionLen = 1024
)

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// CheckCallbackData validates every callback button in rows.
func CheckCallbackData(rows [][]transport.Button) error {
	for _, r := range rows {
		for _, b := range r {
			if len(b.Data) > MaxCallbackDataLen {
				return fmt.Errorf("%w: %q (%d bytes)", ErrCallbackDataTooLong, b.Text, len(b.Data))
			}
		}
	}
	return nil
}
