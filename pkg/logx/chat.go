package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender delivers an HTML formatted line to an operator chat. The transport
// layer provides it once the bot is connected.
type Sender func(ctx context.Context, chatID int64, html string) error

// ChatConfig controls forwarding of log lines into an operator chat.
type ChatConfig struct {
	Enabled    bool
	ChatID     int64
	MinLevel   string
	RatePerSec int
}

const (
	chatQueueSize = 256
	maxValueRunes = 600
	maxStackRunes = 900
	maxLineRunes  = 3500
)

type chatLine struct {
	chatID int64
	html   string
}

// chatSink is a zerolog.LevelWriter that queues lines for a background
// sender. Writes never block; lines over the rate limit or a full queue are
// dropped.
type chatSink struct {
	mu       sync.Mutex
	sender   Sender
	chatID   int64
	minLevel zerolog.Level
	limiter  *rate.Limiter
	cancel   context.CancelFunc

	queue chan chatLine
	wg    sync.WaitGroup
}

func newChatSink() *chatSink {
	return &chatSink{queue: make(chan chatLine, chatQueueSize), minLevel: zerolog.WarnLevel}
}

func (c *chatSink) setSender(fn Sender) {
	c.mu.Lock()
	c.sender = fn
	c.mu.Unlock()
}

func (c *chatSink) apply(cfg ChatConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID = cfg.ChatID
	c.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	rps := max(1, cfg.RatePerSec)
	c.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	if !cfg.Enabled || c.cancel != nil {
		return
	}
	if cfg.ChatID == 0 {
		fmt.Fprintln(os.Stderr, "logx: chat logging enabled without logging.chat.chat_id")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)
}

func (c *chatSink) stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
}

func (c *chatSink) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case l := <-c.queue:
			c.mu.Lock()
			send := c.sender
			c.mu.Unlock()
			if send != nil {
				_ = send(ctx, l.chatID, l.html)
			}
		}
	}
}

func (c *chatSink) Write(p []byte) (int, error) { return c.WriteLevel(zerolog.InfoLevel, p) }

func (c *chatSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	chatID, lim, minLevel := c.chatID, c.limiter, c.minLevel
	c.mu.Unlock()

	if chatID == 0 || lim == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	if line := renderChatLine(p); line != "" {
		select {
		case c.queue <- chatLine{chatID: chatID, html: line}:
		default:
		}
	}
	return len(p), nil
}

// renderChatLine turns a JSON log event into Telegram HTML:
// a bold level, the message, then one "key: value" line per field.
func renderChatLine(p []byte) string {
	p = bytes.TrimSpace(p)
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		return html.EscapeString(clip(string(p), maxLineRunes))
	}

	var b strings.Builder
	if lvl, _ := ev["level"].(string); lvl != "" {
		b.WriteString("<b>" + html.EscapeString(strings.ToUpper(lvl)) + "</b> ")
	}
	msg, _ := ev[zerolog.MessageFieldName].(string)
	b.WriteString(html.EscapeString(clip(msg, maxValueRunes)))

	keys := make([]string, 0, len(ev))
	for k := range ev {
		switch k {
		case "level", "time", zerolog.MessageFieldName, "stack":
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n<code>%s</code>: %s", html.EscapeString(k), html.EscapeString(clip(fmt.Sprint(ev[k]), maxValueRunes)))
	}
	if st, ok := ev["stack"]; ok {
		b.WriteString("\n<pre>" + html.EscapeString(clip(fmt.Sprint(st), maxStackRunes)) + "</pre>")
	}
	return b.String()
}

// clip cuts s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
