package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"editbot/internal/editor"
	"editbot/internal/eventbus"
	"editbot/internal/transport"
)

func TestObserveEvents(t *testing.T) {
	m := New(Sources{})

	m.observe(eventbus.Event{Type: editor.EventResponded, Data: editor.RespondEvent{Outcome: editor.OutcomeSent, Took: 20 * time.Millisecond}})
	m.observe(eventbus.Event{Type: editor.EventResponded, Data: editor.RespondEvent{Outcome: editor.OutcomeEdited}})
	m.observe(eventbus.Event{Type: editor.EventResponded, Data: editor.RespondEvent{Outcome: editor.OutcomeEdited}})
	m.observe(eventbus.Event{Type: editor.EventAffordance, Data: editor.AffordanceEvent{Kind: editor.AffordanceButton, State: editor.StateDeleted, Waited: 3 * time.Second}})
	m.observe(eventbus.Event{Type: editor.EventEvicted, Data: 4})
	m.observe(eventbus.Event{Type: "other", Data: 9})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"sent", testutil.ToFloat64(m.responds.WithLabelValues("sent")), 1},
		{"edited", testutil.ToFloat64(m.responds.WithLabelValues("edited")), 2},
		{"deleted button", testutil.ToFloat64(m.affordance.WithLabelValues("button", "deleted")), 1},
		{"evicted", testutil.ToFloat64(m.evicted), 4},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestObserveUpdateNeverConsumes(t *testing.T) {
	m := New(Sources{})
	if m.ObserveUpdate(context.Background(), transport.Update{Kind: transport.UpdateMessage}) {
		t.Fatal("update consumed")
	}
	if got := testutil.ToFloat64(m.updates.WithLabelValues("message")); got != 1 {
		t.Fatalf("updates = %v", got)
	}
}

func TestRunAndScrape(t *testing.T) {
	bus := eventbus.New()
	svc := editor.New(editor.Config{CacheSize: 7}, editor.Deps{Bus: bus})
	m := New(Sources{Editor: svc, Bus: bus, Dropped: func() uint64 { return 3 }})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, bus)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.responds.WithLabelValues("failed")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event not observed")
		}
		bus.Publish(eventbus.Event{Type: editor.EventResponded, Data: editor.RespondEvent{Outcome: editor.OutcomeFailed}})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"editbot_editor_cache_capacity 7",
		"editbot_editor_cache_entries 0",
		"editbot_transport_dropped_updates_total 3",
		`editbot_editor_responses_total{outcome="failed"}`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}
