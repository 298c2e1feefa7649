package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventBusPublish(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(ch)

	bus.Publish(Event{Type: EventDataSaved, Key: "user_data"})

	select {
	case ev := <-ch:
		if ev.Type != EventDataSaved || ev.Key != "user_data" {
			t.Errorf("event = %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("At not set")
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestEventBusSkipsSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	full := make(chan Event)
	bus.Subscribe(full)

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: EventDataLoaded})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestServeFiltersBySession(t *testing.T) {
	h := New()
	go h.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, r.URL.Query().Get("session"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?session=a", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line = %q, %v", line, err)
	}

	for h.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	h.Broadcast(Event{Type: EventDataLoaded, SessionID: "b", Key: "other"})
	h.Broadcast(Event{Type: EventDataLoaded, SessionID: "a", Key: "mine"})

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if got["key"] != "mine" {
		t.Errorf("received %v, want the event of session a", got)
	}
	if _, leaked := got["SessionID"]; leaked {
		t.Error("session id serialized")
	}
}
