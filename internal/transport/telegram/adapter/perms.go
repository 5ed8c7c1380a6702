package adapter

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"editbot/internal/transport"
)

type chatMember struct {
	Status            string `json:"status"`
	CanDeleteMessages bool   `json:"can_delete_messages"`
	CanSendMessages   *bool  `json:"can_send_messages"`
	CanAddPreviews    *bool  `json:"can_add_web_page_previews"`
	CanSendDocuments  *bool  `json:"can_send_documents"`
	CanSendMedia      *bool  `json:"can_send_media_messages"`
}

func decodeMember(raw []byte) (transport.Perms, error) {
	var resp struct {
		Result chatMember `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return transport.Perms{}, fmt.Errorf("getChatMember: %w", err)
	}
	return resp.Result.perms(), nil
}

func (m chatMember) perms() transport.Perms {
	switch m.Status {
	case "creator":
		return transport.AllPerms
	case "administrator":
		return transport.Perms{Send: true, Embed: true, Attach: true, Manage: m.CanDeleteMessages}
	case "restricted":
		attach := flag(m.CanSendDocuments, false) || flag(m.CanSendMedia, false)
		return transport.Perms{
			Send:   flag(m.CanSendMessages, false),
			Embed:  flag(m.CanAddPreviews, false),
			Attach: attach,
		}
	case "member":
		return transport.Perms{Send: true, Embed: true, Attach: true}
	default:
		// left, kicked
		return transport.Perms{}
	}
}

func flag(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

type permKey struct {
	chat, user int64
}

type permEntry struct {
	p   transport.Perms
	exp time.Time
}

type permCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[permKey]permEntry
	now func() time.Time
}

func newPermCache(ttl time.Duration) *permCache {
	return &permCache{ttl: ttl, m: map[permKey]permEntry{}, now: time.Now}
}

func (c *permCache) get(chat, user int64) (transport.Perms, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[permKey{chat, user}]
	if !ok || c.now().After(e.exp) {
		return transport.Perms{}, false
	}
	return e.p, true
}

func (c *permCache) put(chat, user int64, p transport.Perms) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// Sweep when the map grows; entries are tiny and short lived.
	if len(c.m) >= 1024 {
		for k, e := range c.m {
			if now.After(e.exp) {
				delete(c.m, k)
			}
		}
	}
	c.m[permKey{chat, user}] = permEntry{p: p, exp: now.Add(c.ttl)}
}
