package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/park285/cheese-arena/internal/transport/ws"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// arenacheck pairs two clients on a running server and plays fool's mate.
func main() {
	url := flag.String("url", envDefault("ARENA_WS_URL", "ws://localhost:8080/ws"), "websocket endpoint")
	timeout := flag.Duration("timeout", 15*time.Second, "overall deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := run(ctx, *url); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "FAIL %v\n", err)
		os.Exit(1)
	}
	color.New(color.FgGreen, color.Bold).Println("OK fool's mate played and recorded as 0-1")
}

type seat struct {
	name   string
	client *ws.Client
	events chan arenadto.Envelope
}

var palette = map[string]*color.Color{
	arenadto.EventColorAssigned:        color.New(color.FgCyan),
	arenadto.EventWaiting:              color.New(color.FgHiBlack),
	arenadto.EventGameStarted:          color.New(color.FgGreen),
	arenadto.EventBoardUpdated:         color.New(color.FgBlue),
	arenadto.EventCheck:                color.New(color.FgYellow),
	arenadto.EventGameEnded:            color.New(color.FgMagenta, color.Bold),
	arenadto.EventOpponentDisconnected: color.New(color.FgYellow),
	arenadto.EventError:                color.New(color.FgRed),
}

func join(ctx context.Context, url, name string) (*seat, error) {
	c, err := ws.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s dial: %w", name, err)
	}
	s := &seat{name: name, client: c, events: make(chan arenadto.Envelope, 64)}
	c.OnMessage(func(env arenadto.Envelope) {
		logEvent(name, env)
		s.events <- env
	})
	if err := c.Send(ctx, arenadto.TypeFindGame, arenadto.FindGameRequest{DisplayName: name}); err != nil {
		return nil, fmt.Errorf("%s find_game: %w", name, err)
	}
	return s, nil
}

func (s *seat) await(ctx context.Context, typ string) (arenadto.Envelope, error) {
	for {
		select {
		case env := <-s.events:
			if env.Type == typ {
				return env, nil
			}
			if env.Type == arenadto.EventError {
				var e arenadto.Error
				_ = env.Decode(&e)
				return env, fmt.Errorf("%s got error %s: %s", s.name, e.Code, e.Message)
			}
		case <-ctx.Done():
			return arenadto.Envelope{}, fmt.Errorf("%s waiting for %s: %w", s.name, typ, ctx.Err())
		}
	}
}

func run(ctx context.Context, url string) error {
	white, err := join(ctx, url, "check-white")
	if err != nil {
		return err
	}
	defer white.client.Close(context.Background())
	if _, err := white.await(ctx, arenadto.EventWaiting); err != nil {
		return err
	}
	black, err := join(ctx, url, "check-black")
	if err != nil {
		return err
	}
	defer black.client.Close(context.Background())
	for _, s := range []*seat{white, black} {
		if _, err := s.await(ctx, arenadto.EventGameStarted); err != nil {
			return err
		}
	}

	moves := []struct {
		by       *seat
		from, to string
	}{
		{white, "f2", "f3"},
		{black, "e7", "e5"},
		{white, "g2", "g4"},
		{black, "d8", "h4"},
	}
	for _, mv := range moves {
		req := map[string]string{"from": mv.from, "to": mv.to}
		if err := mv.by.client.Send(ctx, arenadto.TypeMovePiece, req); err != nil {
			return fmt.Errorf("%s move: %w", mv.by.name, err)
		}
		for _, s := range []*seat{white, black} {
			if _, err := s.await(ctx, arenadto.EventBoardUpdated); err != nil {
				return err
			}
		}
	}

	env, err := black.await(ctx, arenadto.EventGameEnded)
	if err != nil {
		return err
	}
	var ended arenadto.GameEnded
	if err := env.Decode(&ended); err != nil {
		return err
	}
	if ended.Reason != "checkmate" || ended.Result != "0-1" {
		return fmt.Errorf("unexpected ending %s %s", ended.Reason, ended.Result)
	}
	return nil
}

func logEvent(who string, env arenadto.Envelope) {
	c, ok := palette[env.Type]
	if !ok {
		c = color.New(color.Reset)
	}
	var compact map[string]any
	_ = json.Unmarshal(env.Data, &compact)
	delete(compact, "board")
	body, _ := json.Marshal(compact)
	c.Printf("%-12s %-22s %s\n", who, env.Type, body)
}

func envDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
