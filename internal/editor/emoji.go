package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"editbot/internal/transport"
	logx "editbot/pkg/logx"
)

// TrashEmoji is the affordance used when deletion is simply "enabled".
const TrashEmoji = "🗑️"

type AffordanceKind int

const (
	AffordanceDisabled AffordanceKind = iota
	AffordanceUnicode
	AffordanceCustom
	AffordanceButton
)

func (k AffordanceKind) String() string {
	switch k {
	case AffordanceUnicode:
		return "unicode"
	case AffordanceCustom:
		return "custom"
	case AffordanceButton:
		return "button"
	default:
		return "disabled"
	}
}

// Affordance is a resolved delete trigger.
type Affordance struct {
	Kind  AffordanceKind
	Emoji transport.Emoji
}

func (a Affordance) Enabled() bool { return a.Kind != AffordanceDisabled }

// AsButton turns an enabled affordance into an inline button that keeps the
// emoji as its label.
func (a Affordance) AsButton() Affordance {
	if !a.Enabled() {
		return a
	}
	a.Kind = AffordanceButton
	if a.Emoji.Unicode == "" {
		a.Emoji.Unicode = TrashEmoji
	}
	return a
}

// Label is the text shown on a delete button.
func (a Affordance) Label() string {
	if a.Emoji.Unicode != "" {
		return a.Emoji.Unicode
	}
	return TrashEmoji
}

var (
	truthy = map[string]bool{"true": true, "t": true, "1": true, "enabled": true, "on": true, "yes": true, "y": true}
	falsy  = map[string]bool{"": true, "false": true, "f": true, "0": true, "disabled": true, "off": true, "no": true, "n": true, "none": true, "null": true}
)

// Resolver normalizes user supplied delete-affordance specifiers.
type Resolver struct {
	registry transport.EmojiRegistry
	log      logx.Logger
}

// NewResolver returns a resolver. registry may be nil, in which case numeric
// ids are always taken literally.
func NewResolver(registry transport.EmojiRegistry, log logx.Logger) *Resolver {
	return &Resolver{registry: registry, log: log}
}

// Resolve never fails: anything it cannot interpret is used as a literal
// emoji token.
func (r *Resolver) Resolve(ctx context.Context, spec any) Affordance {
	switch v := spec.(type) {
	case nil:
		return Affordance{}
	case Affordance:
		return v
	case *Affordance:
		if v == nil {
			return Affordance{}
		}
		return *v
	case transport.Emoji:
		return fromEmoji(v)
	case bool:
		if v {
			return unicode(TrashEmoji)
		}
		return Affordance{}
	case int:
		return r.resolveString(ctx, strconv.FormatInt(int64(v), 10))
	case int64:
		return r.resolveString(ctx, strconv.FormatInt(v, 10))
	case uint64:
		return r.resolveString(ctx, strconv.FormatUint(v, 10))
	case string:
		return r.resolveString(ctx, v)
	case fmt.Stringer:
		return r.resolveString(ctx, v.String())
	default:
		return r.resolveString(ctx, fmt.Sprint(v))
	}
}

func (r *Resolver) resolveString(ctx context.Context, s string) Affordance {
	s = strings.TrimSpace(s)
	low := strings.ToLower(s)
	switch {
	case truthy[low]:
		return unicode(TrashEmoji)
	case falsy[low]:
		return Affordance{}
	case isDigits(s):
		return r.custom(ctx, s)
	default:
		return unicode(s)
	}
}

func (r *Resolver) custom(ctx context.Context, id string) Affordance {
	if r.registry == nil {
		return unicode(id)
	}
	e, err := r.registry.CustomEmoji(ctx, id)
	if err != nil || e.IsZero() {
		r.log.Debug("custom emoji lookup failed, using literal", logx.String("id", id), logx.Err(err))
		return unicode(id)
	}
	if e.CustomID == "" {
		e.CustomID = id
	}
	return Affordance{Kind: AffordanceCustom, Emoji: e}
}

func fromEmoji(e transport.Emoji) Affordance {
	switch {
	case e.CustomID != "":
		return Affordance{Kind: AffordanceCustom, Emoji: e}
	case e.Unicode != "":
		return Affordance{Kind: AffordanceUnicode, Emoji: e}
	default:
		return Affordance{}
	}
}

func unicode(s string) Affordance {
	return Affordance{Kind: AffordanceUnicode, Emoji: transport.Emoji{Unicode: s}}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
