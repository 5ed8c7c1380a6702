package adapter

import (
	"context"
	"hash/fnv"

	"editbot/internal/transport"
	"editbot/pkg/logx"
)

// UpdateMenuCommands updates Telegram's global command list (setMyCommands).
// It only calls the API when the list changed since the last success.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	payload, sum := menuPayload(cmds)
	if sum == a.menuHash {
		return nil
	}
	if err := a.wait(ctx); err != nil {
		return err
	}
	if _, err := a.bot.Raw("setMyCommands", map[string]any{"commands": payload}); err != nil {
		return mapError(err)
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(payload)))
	return nil
}

type menuCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// menuPayload applies Telegram's limits (100 commands, 256 byte
// descriptions) and hashes the result.
func menuPayload(cmds []transport.BotCommand) ([]menuCommand, uint64) {
	out := make([]menuCommand, 0, len(cmds))
	h := fnv.New64a()
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		if len(d) > 256 {
			d = d[:256]
		}
		out = append(out, menuCommand{Command: c.Command, Description: d})
		h.Write([]byte(c.Command))
		h.Write([]byte{0})
		h.Write([]byte(d))
		h.Write([]byte{0})
		if len(out) >= 100 {
			break
		}
	}
	return out, h.Sum64()
}
