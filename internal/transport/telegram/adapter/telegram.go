package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	rtsup "editbot/internal/runtime/supervisor"
	"editbot/internal/transport"
	"editbot/pkg/logx"
)

// Adapter implements transport.Adapter on top of telebot. It also provides
// reactions, custom emoji lookup and the command menu.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Pointer[chan<- transport.Update]
	runMu   sync.Mutex
	running bool

	// sup owns the poll loop, the drop reporter and the stop watcher.
	sup *rtsup.Supervisor

	// droppedUpdates counts updates lost because the consumer was slower than
	// the poll loop. Reported periodically.
	droppedUpdates atomic.Uint64
	droppedTotal   atomic.Uint64

	limiter *rate.Limiter
	perms   *permCache

	menuMu   sync.Mutex
	menuHash uint64
}

var (
	_ transport.Adapter            = (*Adapter)(nil)
	_ transport.Reactor            = (*Adapter)(nil)
	_ transport.EmojiRegistry      = (*Adapter)(nil)
	_ transport.CommandMenuUpdater = (*Adapter)(nil)
)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.PermTTL <= 0 {
		cfg.PermTTL = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		perms:   newPermCache(cfg.PermTTL),
	}
	poller := &tele.LongPoller{Timeout: cfg.PollTimeout, AllowedUpdates: allowedUpdates}
	b, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		// Reactions have no telebot handler of their own; they are picked
		// out of the raw update stream here.
		Poller:  tele.NewMiddlewarePoller(poller, a.filterUpdate),
		Offline: cfg.Offline,
		OnError: func(err error, c tele.Context) {
			a.log.Warn("telegram handler error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	a.bot = b
	a.registerHandlers()
	return a, nil
}

// Self returns the bot's own user id.
func (a *Adapter) Self() int64 {
	if a.bot == nil || a.bot.Me == nil {
		return 0
	}
	return a.bot.Me.ID
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the current output channel. Start may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		if m := fromTele(c.Message()); m != nil {
			a.sendUpdate(transport.Update{Kind: transport.UpdateMessage, Message: m})
		}
		return nil
	})

	a.bot.Handle(tele.OnEdited, func(c tele.Context) error {
		if m := fromTele(c.Message()); m != nil {
			a.sendUpdate(transport.Update{Kind: transport.UpdateEdited, Message: m})
		}
		return nil
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil || m.Chat == nil {
			return nil
		}
		out := &transport.Callback{
			ID:        cb.ID,
			ChatID:    m.Chat.ID,
			ThreadID:  m.ThreadID,
			MessageID: m.ID,
			Data:      cb.Data,
		}
		if cb.Sender != nil {
			out.FromID = cb.Sender.ID
			out.FromBot = cb.Sender.IsBot
		}
		a.sendUpdate(transport.Update{Kind: transport.UpdateCallback, Callback: out})
		return nil
	})
}

// filterUpdate forwards reaction updates and lets everything else through to
// the telebot handlers.
func (a *Adapter) filterUpdate(u *tele.Update) bool {
	if u == nil {
		return false
	}
	if u.Message != nil || u.EditedMessage != nil || u.Callback != nil {
		return true
	}
	if r := decodeReactionUpdate(u); r != nil {
		a.sendUpdate(transport.Update{Kind: transport.UpdateReaction, Reaction: r})
		return false
	}
	return true
}

func (a *Adapter) sendUpdate(up transport.Update) {
	p := a.out.Load()
	if p == nil || *p == nil {
		return
	}
	select {
	case *p <- up:
	default:
		a.droppedUpdates.Add(1)
		a.droppedTotal.Add(1)
	}
}

// Dropped is the number of updates lost since the adapter was created.
func (a *Adapter) Dropped() uint64 { return a.droppedTotal.Load() }

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(&out)
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// Adapter failures must not take the app down.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		report := func() {
			if n := a.droppedUpdates.Swap(0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-ticker.C:
				report()
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})

	// bot.Start blocks until Stop. If it returns early the loop restarts it.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

// Stop ends polling. It never blocks shutdown for more than a short grace
// window, even while a long poll is in flight.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.out.Store(nil)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.Uint64("dropped_updates_pending", a.droppedUpdates.Load()))
	sup.Cancel()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
	}
	return nil
}

// Supervisor returns the running supervisor (nil when stopped).
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.sup
}

func (a *Adapter) wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

func fromTele(m *tele.Message) *transport.Message {
	if m == nil || m.Chat == nil {
		return nil
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	out := &transport.Message{
		ID:       m.ID,
		ChatID:   m.Chat.ID,
		ThreadID: m.ThreadID,
		Text:     text,
		IsGroup:  m.Chat.Type != tele.ChatPrivate,
		Date:     m.Time(),
	}
	if m.Sender != nil {
		out.FromID = m.Sender.ID
		out.FromUsername = m.Sender.Username
		out.FromBot = m.Sender.IsBot
	}
	if m.LastEdit > 0 {
		out.EditedAt = time.Unix(m.LastEdit, 0)
	}
	return out
}
