package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func ptr(s string) *string { return &s }

// next returns the next message or fails after timeout.
func next(t *testing.T, ch chan []byte, timeout time.Duration) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

// drain returns every message currently buffered in ch.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countEvents(msgs []string, event string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+event+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsub")
	}
	// Second unsubscribe must not close twice.
	b.Unsubscribe(ch)
}

func TestPublishFlareChange_CarriesKnownPlace(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishFlareChange(FlareChange{Kind: "created", ID: "f1", KnownPlaceID: ptr("kp1")})

	got := next(t, ch, time.Second)
	want := "event: flare.created\ndata: {\"id\":\"f1\",\"known_place_id\":\"kp1\"}\n\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	got = next(t, ch, time.Second)
	want = "event: map.updated\ndata: {\"known_place_ids\":[\"kp1\"]}\n\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPublishFlareChange_NoKnownPlace(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishFlareChange(FlareChange{Kind: "deleted", ID: "f2"})

	if got := next(t, ch, time.Second); got != "event: flare.deleted\ndata: {\"id\":\"f2\",\"known_place_id\":null}\n\n" {
		t.Errorf("unexpected flare message %q", got)
	}
	if got := next(t, ch, time.Second); got != "event: map.updated\ndata: {\"known_place_ids\":[]}\n\n" {
		t.Errorf("unexpected map message %q", got)
	}
}

func TestMapUpdated_CoalescedWithTrailingFlush(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First change flushes immediately; the rest land inside the interval.
	b.PublishFlareChange(FlareChange{Kind: "created", ID: "f1", KnownPlaceID: ptr("kp-b")})
	b.PublishFlareChange(FlareChange{Kind: "updated", ID: "f2", KnownPlaceID: ptr("kp-c")})
	b.PublishFlareChange(FlareChange{Kind: "created", ID: "f3", KnownPlaceID: ptr("kp-a")})
	b.PublishFlareChange(FlareChange{Kind: "deleted", ID: "f4", KnownPlaceID: ptr("kp-c")})
	b.ClientCount() // sync with the loop

	msgs := drain(ch)
	if n := countEvents(msgs, "flare.created") + countEvents(msgs, "flare.updated") + countEvents(msgs, "flare.deleted"); n != 4 {
		t.Errorf("flare events = %d, want 4", n)
	}
	if n := countEvents(msgs, "map.updated"); n != 1 {
		t.Fatalf("leading map events = %d, want 1", n)
	}

	got := next(t, ch, time.Second)
	want := "event: map.updated\ndata: {\"known_place_ids\":[\"kp-a\",\"kp-c\"]}\n\n"
	if got != want {
		t.Errorf("trailing flush = %q, want %q", got, want)
	}

	select {
	case msg := <-ch:
		t.Errorf("unexpected extra message %q", msg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPublishFlareChange_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishFlareChange(FlareChange{Kind: "renamed", ID: "f1"})
	b.PublishPlacesSynced(1)

	if got := next(t, ch, time.Second); !strings.HasPrefix(got, "event: places.updated\n") {
		t.Errorf("unknown kind produced %q", got)
	}
}

func TestPublishPlacesSynced(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishPlacesSynced(4)

	if got := next(t, ch, time.Second); got != "event: places.updated\ndata: {\"count\":4}\n\n" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestPublishPlacesSynced_Throttled(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishPlacesSynced(1)
	b.PublishPlacesSynced(2)
	b.PublishPlacesSynced(3)
	b.ClientCount()

	msgs := drain(ch)
	if len(msgs) != 1 || msgs[0] != "event: places.updated\ndata: {\"count\":1}\n\n" {
		t.Fatalf("leading messages = %q", msgs)
	}
	if got := next(t, ch, time.Second); got != "event: places.updated\ndata: {\"count\":3}\n\n" {
		t.Errorf("trailing message = %q, want latest count", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishFlareChange(FlareChange{Kind: "updated", ID: "x"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: flare.updated\n") || !strings.Contains(body, "event: map.updated\n") {
		t.Errorf("handler output missing events: %q", body)
	}

	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	b.heartbeat = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping\n\n") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestSSEHandler_EndsOnClose(t *testing.T) {
	b := NewBroker(time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	for b.ClientCount() != 1 {
		time.Sleep(5 * time.Millisecond)
	}
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler still running after Close")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.PublishFlareChange(FlareChange{Kind: "updated", ID: "x"})
	}
	if got := len(drain(ch)); got != clientBuffer {
		t.Errorf("buffered = %d, want %d", got, clientBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// All no-ops after close.
	b.PublishFlareChange(FlareChange{Kind: "updated", ID: "x"})
	b.PublishPlacesSynced(3)
	b.Unsubscribe(ch)
	b.Close()

	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("subscribe after close returned an open channel")
	}
}
