package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func TestHub_DispatchAndUnsubscribe(t *testing.T) {
	t.Parallel()

	h := NewHub()
	var got []string

	offA := h.On("A", func(_ context.Context, ev Event) { got = append(got, "a1:"+string(ev.Payload)) })
	h.On("A", func(_ context.Context, ev Event) { got = append(got, "a2:"+string(ev.Payload)) })
	h.On("B", func(_ context.Context, ev Event) { got = append(got, "b") })

	assert.Equal(t, 2, h.Dispatch(context.Background(), Event{Name: "A", Payload: []byte("x")}))
	assert.Equal(t, []string{"a1:x", "a2:x"}, got)

	offA()
	offA()
	assert.Equal(t, 1, h.Subscribers("A"))
	assert.Equal(t, 0, h.Dispatch(context.Background(), Event{Name: "C"}))
	assert.Equal(t, 1, h.Dispatch(context.Background(), Event{Name: "A"}))
}

func TestFrame_Decode(t *testing.T) {
	t.Parallel()

	ev, err := DecodeFrame(EncodeFrame(Event{Name: EventCardStatusChanged, Payload: []byte{1, 2, 3}}))
	require.NoError(t, err)
	assert.Equal(t, EventCardStatusChanged, ev.Name)
	assert.Equal(t, []byte{1, 2, 3}, ev.Payload)

	// unknown fields are skipped
	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = append(b, EncodeFrame(Event{Name: "X"})...)
	ev, err = DecodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, "X", ev.Name)

	_, err = DecodeFrame(EncodeFrame(Event{Payload: []byte("p")}))
	require.ErrorIs(t, err, ErrMissingEventName)

	_, err = DecodeFrame([]byte{0x0a, 0x05, 'a'})
	require.Error(t, err)
}

func TestListener_DispatchesBinaryFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0xff})
		_ = conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(Event{Name: EventCardStatusChanged, Payload: []byte("p1")}))

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	hub := NewHub()
	got := make(chan Event, 1)
	hub.On(EventCardStatusChanged, func(_ context.Context, ev Event) { got <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	ln := NewListener("ws"+strings.TrimPrefix(srv.URL, "http"), hub,
		WithHeader(http.Header{"Authorization": []string{"Bearer t"}}))

	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = ln.Run(ctx)
	}()

	select {
	case ev := <-got:
		assert.Equal(t, []byte("p1"), ev.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no event dispatched")
	}

	cancel()
	wg.Wait()
	require.ErrorIs(t, runErr, context.Canceled)
}

func TestListener_NoReconnectReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	ln := NewListener("ws"+strings.TrimPrefix(srv.URL, "http"), NewHub(), WithReconnectDelay(0))
	err := ln.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestListener_EmptyURL(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewListener("", NewHub()).Run(context.Background()), ErrEmptyURL)
}
