package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/msgcat"
	svcarena "github.com/park285/cheese-arena/internal/service/arena"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

func newServer(t *testing.T) (*Hub, *svcarena.Service, string) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	svc, err := svcarena.NewService(svcarena.Deps{Catalog: cat})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	hub := NewHub(svc, WithPingInterval(0))
	svc.SetNotifier(hub)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, svc, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type player struct {
	c      *Client
	events chan arenadto.Envelope
}

func connect(t *testing.T, url string) *player {
	t.Helper()
	events := make(chan arenadto.Envelope, 128)
	c, err := Dial(context.Background(), url, nil, WithMessageCallback(func(env arenadto.Envelope) { events <- env }))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	p := &player{c: c, events: events}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return p
}

func (p *player) send(t *testing.T, typ string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.c.Send(ctx, typ, data); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func (p *player) await(t *testing.T, typ string) arenadto.Envelope {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case env := <-p.events:
			if env.Type == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func pair(t *testing.T, url string) (white, black *player) {
	t.Helper()
	white, black = connect(t, url), connect(t, url)
	white.send(t, arenadto.TypeFindGame, arenadto.FindGameRequest{DisplayName: "Ann"})
	white.await(t, arenadto.EventWaiting)
	black.send(t, arenadto.TypeFindGame, arenadto.FindGameRequest{DisplayName: "Bob"})
	black.await(t, arenadto.EventGameStarted)
	white.await(t, arenadto.EventGameStarted)
	return white, black
}

func TestHubPlaysFoolsMate(t *testing.T) {
	_, _, url := newServer(t)
	white, black := pair(t, url)

	moves := []struct {
		by       *player
		from, to string
	}{
		{white, "f2", "f3"},
		{black, "e7", "e5"},
		{white, "g2", "g4"},
		{black, "d8", "h4"},
	}
	for _, mv := range moves {
		mv.by.send(t, arenadto.TypeMovePiece, map[string]string{"from": mv.from, "to": mv.to})
		white.await(t, arenadto.EventBoardUpdated)
		black.await(t, arenadto.EventBoardUpdated)
	}
	for _, p := range []*player{white, black} {
		var ended arenadto.GameEnded
		if err := p.await(t, arenadto.EventGameEnded).Decode(&ended); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ended.Reason != "checkmate" || ended.Winner != "black" || ended.MoveCount != 4 {
			t.Fatalf("game_ended = %+v", ended)
		}
	}
}

func TestHubAcceptsCoordinateObjects(t *testing.T) {
	_, _, url := newServer(t)
	white, black := pair(t, url)
	white.send(t, arenadto.TypeMovePiece, map[string]any{
		"from": map[string]int{"file": 4, "rank": 1},
		"to":   map[string]int{"file": 4, "rank": 3},
	})
	var upd arenadto.BoardUpdated
	if err := black.await(t, arenadto.EventBoardUpdated).Decode(&upd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if upd.Move.From != "e2" || upd.Move.To != "e4" {
		t.Fatalf("move = %+v", upd.Move)
	}
}

func TestHubRejectsBadRequests(t *testing.T) {
	_, _, url := newServer(t)
	p := connect(t, url)

	p.send(t, "dance", nil)
	var e arenadto.Error
	if err := p.await(t, arenadto.EventError).Decode(&e); err != nil || e.Code != "invalid_request" {
		t.Fatalf("unknown type: %+v, %v", e, err)
	}

	p.send(t, arenadto.TypeMovePiece, map[string]any{"from": 12, "to": "e4"})
	if err := p.await(t, arenadto.EventError).Decode(&e); err != nil || e.Code != "invalid_request" {
		t.Fatalf("bad payload: %+v, %v", e, err)
	}

	p.send(t, arenadto.TypeMovePiece, map[string]string{"from": "e2", "to": "e4"})
	if err := p.await(t, arenadto.EventError).Decode(&e); err != nil || e.Code != "not_in_game" {
		t.Fatalf("move outside game: %+v, %v", e, err)
	}
}

func TestHubDisconnectEndsRoom(t *testing.T) {
	hub, svc, url := newServer(t)
	white, black := pair(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := white.c.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	black.await(t, arenadto.EventOpponentDisconnected)
	var ended arenadto.GameEnded
	if err := black.await(t, arenadto.EventGameEnded).Decode(&ended); err != nil || ended.Reason != "disconnect" {
		t.Fatalf("game_ended = %+v, %v", ended, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for hub.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d", hub.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if rooms, players := svc.Registry().Counts(); rooms != 0 || players != 0 {
		t.Fatalf("registry not released: %d rooms, %d players", rooms, players)
	}
}

func TestNotifyUnknownPlayer(t *testing.T) {
	hub := NewHub(nil)
	env, _ := arenadto.NewEnvelope(arenadto.EventWaiting, nil)
	if err := hub.Notify("ghost", env); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub, _, url := newServer(t)
	p := connect(t, url)
	p.send(t, arenadto.TypeFindGame, arenadto.FindGameRequest{})
	p.await(t, arenadto.EventWaiting)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-p.c.Done():
	case <-ctx.Done():
		t.Fatalf("client still connected")
	}
}
