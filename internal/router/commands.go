package router

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"editbot/internal/config"
	"editbot/internal/runtime/supervisor"
	"editbot/internal/transport"
	"editbot/pkg/logx"
)

// Options sizes the dispatcher.
type Options struct {
	Workers        int
	QueueSize      int
	CommandTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	return o
}

// OptionsFrom converts the resolved router config.
func OptionsFrom(r config.Router) Options {
	return Options{Workers: r.Workers, QueueSize: r.QueueSize, CommandTimeout: r.CommandTimeout}
}

type CommandManager struct {
	mu sync.RWMutex

	root  *cmdNode
	alias map[string]*cmdNode // alias -> leaf node
	cmds  []Command

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute // plugin -> action -> route

	owners []int64

	hookMu       sync.RWMutex
	interceptors []Interceptor
	ctxHook      ContextHook
	editFilter   EditFilter
	deleteHook   DeleteHook

	log  logx.Logger
	msgr transport.Messenger
	cfgm *config.Manager
	sups *SupervisorRegistry
	opts Options

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs  chan func()
	locks *keyLock[transport.MessageRef]
}

func NewCommandManager(log logx.Logger, msgr transport.Messenger, cfgm *config.Manager, sups *SupervisorRegistry, owners []int64, opts Options) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	opts = opts.withDefaults()
	return &CommandManager{
		root:      newRoot(),
		alias:     map[string]*cmdNode{},
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log.With(logx.String("comp", "router")),
		msgr:      msgr,
		cfgm:      cfgm,
		sups:      sups,
		opts:      opts,
		owners:    append([]int64(nil), owners...),
		jobs:      make(chan func(), opts.QueueSize),
		locks:     newKeyLock[transport.MessageRef](),
	}
}

// Use adds an interceptor. Interceptors run in registration order and see
// every update before routing.
func (m *CommandManager) Use(i Interceptor) {
	if i == nil {
		return
	}
	m.hookMu.Lock()
	m.interceptors = append(m.interceptors, i)
	m.hookMu.Unlock()
}

func (m *CommandManager) SetContextHook(h ContextHook) {
	m.hookMu.Lock()
	m.ctxHook = h
	m.hookMu.Unlock()
}

// SetEditFilter enables routing of edited messages. Without a filter edits
// are ignored.
func (m *CommandManager) SetEditFilter(f EditFilter) {
	m.hookMu.Lock()
	m.editFilter = f
	m.hookMu.Unlock()
}

func (m *CommandManager) SetDeleteHook(h DeleteHook) {
	m.hookMu.Lock()
	m.deleteHook = h
	m.hookMu.Unlock()
}

func (m *CommandManager) hooks() ([]Interceptor, ContextHook, EditFilter, DeleteHook) {
	m.hookMu.RLock()
	defer m.hookMu.RUnlock()
	return m.interceptors, m.ctxHook, m.editFilter, m.deleteHook
}

// Supervisor returns the dispatcher's supervisor (nil if not running).
func (m *CommandManager) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *CommandManager) setSupervisor(sup *supervisor.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

// tryEnqueue is a panic-safe enqueue helper (handles the jobs channel being closed).
func (m *CommandManager) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot-reload.
func (m *CommandManager) SetOwners(owners []int64) {
	ownCopy := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = ownCopy
	m.mu.Unlock()
}

func (m *CommandManager) ownersSnapshot() []int64 {
	m.mu.RLock()
	cp := append([]int64(nil), m.owners...)
	m.mu.RUnlock()
	return cp
}

// Commands returns the registered commands, help included.
func (m *CommandManager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Command(nil), m.cmds...)
}

func (m *CommandManager) SetRegistry(ctx context.Context, cmds []Command, cbs []CallbackRoute) {
	helper := Command{
		Route:       "help",
		Aliases:     []string{"h"},
		Description: "show help",
		Usage:       "/help [cmd] [sub...]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText(req.Args))
		},
	}
	cmds = append(append([]Command(nil), cmds...), helper)

	root := newRoot()
	alias := map[string]*cmdNode{}
	kept := make([]Command, 0, len(cmds))

	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		for i := range route {
			route[i] = strings.ToLower(route[i])
		}
		c.Route = strings.Join(route, " ")
		leaf := root.add(route, c)
		kept = append(kept, c)

		// A menu alias is only added when it differs from the first token,
		// otherwise "/echo fresh" would hit the alias for "echo".
		if name, ok := menuName(route); ok && (len(route) > 1 || name != route[0]) {
			if _, exists := alias[name]; !exists {
				alias[name] = leaf
			}
		}
		for _, a := range c.Aliases {
			a = strings.TrimSpace(strings.ToLower(a))
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
			if sa := sanitizeCommand(a); sa != "" {
				if _, exists := alias[sa]; !exists {
					alias[sa] = leaf
				}
			}
		}
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, r := range cbs {
		p := strings.TrimSpace(r.Plugin)
		a := strings.TrimSpace(r.Action)
		if p == "" || a == "" || r.Handle == nil {
			continue
		}
		if cb[p] == nil {
			cb[p] = map[string]CallbackRoute{}
		}
		cb[p][a] = r
	}

	m.mu.Lock()
	m.root = root
	m.alias = alias
	m.cmds = kept
	m.mu.Unlock()

	m.cbMu.Lock()
	m.callbacks = cb
	m.cbMu.Unlock()

	up, ok := m.msgr.(transport.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := buildMenu(root, kept)
	run := func(parent context.Context) {
		cctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(cctx, menu); err != nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
	}
	if sup := m.Supervisor(); sup != nil {
		sup.Go0("menu.update", run)
		return
	}
	go run(ctx)
}

// DispatchLoop routes updates until ctx ends or updates is closed. Commands
// run on a bounded worker pool.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := m.opts.Workers

	sup := supervisor.New(ctx,
		supervisor.WithLogger(m.log),
		supervisor.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.sups.Set("router", sup)

	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			m.setSupervisor(sup, false)
			close(m.jobs)
		})
	}

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					if job != nil {
						m.runJob(idx, job)
					}
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithPublishFirstError(true),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.sups.Delete("router")
		m.setSupervisor(nil, false)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (m *CommandManager) routeUpdate(ctx context.Context, up transport.Update) {
	interceptors, _, editFilter, deleteHook := m.hooks()
	for _, i := range interceptors {
		if i(ctx, up) {
			return
		}
	}
	switch up.Kind {
	case transport.UpdateMessage:
		m.routeMessage(ctx, up, false)
	case transport.UpdateEdited:
		if editFilter == nil || up.Message == nil || !editFilter(ctx, up.Message) {
			return
		}
		m.routeMessage(ctx, up, true)
	case transport.UpdateCallback:
		m.routeCallback(ctx, up)
	case transport.UpdateDeleted:
		if deleteHook != nil && up.Deleted != nil {
			deleteHook(up.Deleted)
		}
	}
}

func (m *CommandManager) routeMessage(ctx context.Context, up transport.Update, edited bool) {
	msg := up.Message
	if msg == nil || msg.FromBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := commandWord(parts[0])
	args := parts[1:]

	m.mu.RLock()
	rootNode, aliasMap := m.root, m.alias
	m.mu.RUnlock()

	if leaf, ok := aliasMap[word]; ok && leaf.cmd != nil {
		cmd := *leaf.cmd
		m.enqueueCommand(ctx, up, edited, cmd, splitRoute(cmd.Route), args)
		return
	}

	cur, path, rest, ok := rootNode.walk(word, args)
	if !ok {
		m.replyDirect(ctx, up, edited, "Unknown command. Try /help", false)
		return
	}
	if cur.cmd == nil {
		m.replyDirect(ctx, up, edited, m.helpText(path), true)
		return
	}
	m.enqueueCommand(ctx, up, edited, *cur.cmd, path, rest)
}

// newRequest builds a request for a message update and runs the context hook.
func (m *CommandManager) newRequest(ctx context.Context, up transport.Update, edited bool, command string) *Request {
	msg := up.Message
	rid := newReqID()
	req := &Request{
		Update:      up,
		Chat:        transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:      msg.FromID,
		Command:     command,
		Edited:      edited,
		ReqID:       rid,
		Messenger:   m.msgr,
		Logger:      m.log.With(logx.Req(rid), logx.Chat(msg.ChatID), logx.Int64("from_id", msg.FromID), logx.String("cmd", command)),
		Owners:      m.ownersSnapshot(),
		Supervisors: m.sups,
	}
	if m.cfgm != nil {
		req.Config = m.cfgm.Get()
	}
	if _, hook, _, _ := m.hooks(); hook != nil {
		hook(ctx, req)
	}
	return req
}

// replyDirect answers router-level outcomes (unknown command, group help,
// access denied) through the request so an edit can correct them.
func (m *CommandManager) replyDirect(ctx context.Context, up transport.Update, edited bool, text string, html bool) {
	req := m.newRequest(ctx, up, edited, "")
	ref := up.Message.Ref()
	m.tryEnqueue(func() {
		unlock := m.locks.Lock(ref)
		defer unlock()
		var err error
		if html {
			err = req.ReplyHTML(ctx, text)
		} else {
			err = req.Reply(ctx, text)
		}
		if err != nil {
			req.Logger.Debug("router reply failed", logx.Err(err))
		}
	})
}

func (m *CommandManager) enqueueCommand(ctx context.Context, up transport.Update, edited bool, cmd Command, path []string, raw []string) {
	msg := up.Message
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, m.ownersSnapshot()) {
		m.replyDirect(ctx, up, edited, "unauthorized", false)
		return
	}

	req := m.newRequest(ctx, up, edited, cmd.Route)
	pos, flags, bools := parseFlags(raw)
	req.Path = path
	req.Args = pos
	req.RawArgs = raw
	req.Flags = flags
	req.BoolFlags = bools

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.opts.CommandTimeout
	}
	final := Chain(cmd.Handle, Recover(), LogRequests(), ReplyErrors(cmd.Usage), Timeout(timeout))

	ref := msg.Ref()
	if !m.tryEnqueue(func() {
		// Edits of one message run after the handler of the previous version.
		unlock := m.locks.Lock(ref)
		defer unlock()
		_ = final(ctx, req)
	}) {
		_, _ = m.msgr.Send(ctx, req.Chat, transport.Content{Text: "busy, try again"}, nil)
	}
}

func (m *CommandManager) routeCallback(ctx context.Context, up transport.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	plugin, action := parts[0], parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	m.cbMu.RLock()
	route, ok := m.callbacks[plugin][action]
	m.cbMu.RUnlock()
	if !ok {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "", false)
		return
	}

	owners := m.ownersSnapshot()
	if route.Access == CallbackAccessOwnerOnly && !isOwner(cb.FromID, owners) {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "forbidden", true)
		return
	}
	key := "cb:" + plugin + ":" + action
	rid := newReqID()
	req := &Request{
		Update:      up,
		Chat:        transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:      cb.FromID,
		Command:     key,
		Payload:     payload,
		ReqID:       rid,
		Messenger:   m.msgr,
		Logger:      m.log.With(logx.Req(rid), logx.Chat(cb.ChatID), logx.Int64("from_id", cb.FromID), logx.String("cmd", key)),
		Owners:      owners,
		Supervisors: m.sups,
	}
	if m.cfgm != nil {
		req.Config = m.cfgm.Get()
	}
	if _, hook, _, _ := m.hooks(); hook != nil {
		hook(ctx, req)
	}

	h := func(ctx context.Context, r *Request) error { return route.Handle(ctx, r, payload) }
	timeout := route.Timeout
	if timeout <= 0 {
		timeout = m.opts.CommandTimeout
	}
	final := Chain(h, Recover(), LogRequests(), Timeout(timeout))

	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if !m.tryEnqueue(func() {
		unlock := m.locks.Lock(ref)
		defer unlock()
		_ = final(ctx, req)
		// Stops the client's loading indicator.
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "", false)
	}) {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "busy", false)
	}
}
