package arena

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-arena/internal/accounts"
	corearena "github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/history"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/snapshot"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]arenadto.Envelope
	// onEvent runs after an event is stored, outside the lock.
	onEvent func(playerID string, env arenadto.Envelope)
}

func (r *recorder) Notify(playerID string, env arenadto.Envelope) error {
	r.mu.Lock()
	if r.events == nil {
		r.events = make(map[string][]arenadto.Envelope)
	}
	r.events[playerID] = append(r.events[playerID], env)
	hook := r.onEvent
	r.mu.Unlock()
	if hook != nil {
		hook(playerID, env)
	}
	return nil
}

func (r *recorder) types(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events[playerID] {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last(t *testing.T, playerID, typ string, v any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.events[playerID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Type == typ {
			if err := list[i].Decode(v); err != nil {
				t.Fatalf("decode %s: %v", typ, err)
			}
			return
		}
	}
	t.Fatalf("%s never received %s", playerID, typ)
}

func (r *recorder) count(playerID, typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events[playerID] {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	svc   *Service
	rec   *recorder
	repo  history.Repository
	store *snapshot.Store
}

func newFixture(t *testing.T, renderImages bool) *fixture {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb, err := snapshot.Dial(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{rec: &recorder{}, repo: history.NewMemoryRepository(), store: snapshot.NewStore(rdb, time.Hour)}
	f.svc, err = NewService(Deps{
		Catalog:      cat,
		Notifier:     f.rec,
		History:      f.repo,
		Snapshots:    f.store,
		Directory:    accounts.NewStaticDirectory(accounts.Account{ID: "acc-b", DisplayName: "Bea"}),
		Renderer:     render.NewRenderer(16),
		RenderImages: renderImages,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return f
}

func (f *fixture) pair(t *testing.T) corearena.Snapshot {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.RequestJoin(ctx, "a", "Ann", "acc-a"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	res, err := f.svc.RequestJoin(ctx, "b", "", "acc-b")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if !res.Started {
		t.Fatalf("second join did not start the game")
	}
	return res.Snapshot
}

func (f *fixture) play(t *testing.T, moves ...string) corearena.MoveOutcome {
	t.Helper()
	var out corearena.MoveOutcome
	for i, mv := range moves {
		player := "a"
		if i%2 == 1 {
			player = "b"
		}
		var err error
		if out, err = f.svc.RequestMove(context.Background(), player, mv[:2], mv[2:]); err != nil {
			t.Fatalf("move %s: %v", mv, err)
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewServiceNeedsCatalog(t *testing.T) {
	if _, err := NewService(Deps{}); err == nil {
		t.Fatalf("missing catalog accepted")
	}
}

func TestJoinFlow(t *testing.T) {
	f := newFixture(t, false)
	snap := f.pair(t)

	if got := f.rec.types("a"); !equal(got, []string{arenadto.EventColorAssigned, arenadto.EventWaiting, arenadto.EventGameStarted}) {
		t.Fatalf("a events = %v", got)
	}
	if got := f.rec.types("b"); !equal(got, []string{arenadto.EventColorAssigned, arenadto.EventGameStarted}) {
		t.Fatalf("b events = %v", got)
	}
	var color arenadto.ColorAssigned
	f.rec.last(t, "b", arenadto.EventColorAssigned, &color)
	if color.Color != "black" || color.Message != "You play black." {
		t.Fatalf("color_assigned = %+v", color)
	}
	var started arenadto.GameStarted
	f.rec.last(t, "a", arenadto.EventGameStarted, &started)
	if started.Board.White.DisplayName != "Ann" || started.Board.Black.DisplayName != "Bea" {
		t.Fatalf("names = %+v / %+v", started.Board.White, started.Board.Black)
	}
	if started.Board.Turn != "white" || len(started.Board.Pieces) != 32 || started.Board.Image != "" {
		t.Fatalf("board = %+v", started.Board)
	}
	if started.Message != "Ann (white) vs Bea (black). White to move." {
		t.Fatalf("message = %q", started.Message)
	}

	stored, err := f.store.LoadRoom(context.Background(), snap.ID)
	if err != nil || stored == nil || stored.State != corearena.StateActive {
		t.Fatalf("stored snapshot = %+v, %v", stored, err)
	}
}

func TestRejoinResendsBoard(t *testing.T) {
	f := newFixture(t, false)
	f.pair(t)
	res, err := f.svc.RequestJoin(context.Background(), "a", "", "")
	if err != nil || !res.Rejoined {
		t.Fatalf("rejoin = %+v, %v", res, err)
	}
	var started arenadto.GameStarted
	f.rec.last(t, "a", arenadto.EventGameStarted, &started)
	if !started.Rejoined {
		t.Fatalf("rejoin not flagged")
	}
	if rooms, _ := f.svc.Registry().Counts(); rooms != 1 {
		t.Fatalf("rooms = %d", rooms)
	}
}

func TestFoolsMateIsRecordedOnce(t *testing.T) {
	f := newFixture(t, false)
	snap := f.pair(t)
	out := f.play(t, "f2f3", "e7e5", "g2g4", "d8h4")
	if !out.Terminal() || out.Summary.Result != corearena.ResultBlackWins {
		t.Fatalf("outcome = %+v", out)
	}

	for _, id := range []string{"a", "b"} {
		var ended arenadto.GameEnded
		f.rec.last(t, id, arenadto.EventGameEnded, &ended)
		if ended.Reason != "checkmate" || ended.Winner != "black" || ended.MoveCount != 4 {
			t.Fatalf("%s game_ended = %+v", id, ended)
		}
		if ended.Message != "Checkmate. Bea wins after 4 moves." {
			t.Fatalf("message = %q", ended.Message)
		}
		if n := f.rec.count(id, arenadto.EventBoardUpdated); n != 4 {
			t.Fatalf("%s board updates = %d", id, n)
		}
		if n := f.rec.count(id, arenadto.EventCheck); n != 0 {
			t.Fatalf("%s got check on a mating move", id)
		}
	}

	ctx := context.Background()
	game, err := f.repo.GetGame(ctx, snap.ID)
	if err != nil || game == nil {
		t.Fatalf("GetGame = %v, %v", game, err)
	}
	if game.PGN == "" || !equal(game.MovesSAN, []string{"f3", "e5", "g4", "Qh4#"}) {
		t.Fatalf("record = %+v", game)
	}
	p, err := f.repo.GetProfile(ctx, "acc-b")
	if err != nil || p == nil || p.Wins != 1 || p.Rating <= history.DefaultRating {
		t.Fatalf("winner profile = %+v, %v", p, err)
	}

	if out.Room().MarkRecorded() {
		t.Fatalf("room recorded twice")
	}
	f.svc.OnDisconnect(ctx, "a")
	if games, _ := f.repo.GetRecentGames(ctx, "acc-a", 10); len(games) != 1 {
		t.Fatalf("games for a = %d", len(games))
	}
	if list, _ := f.store.ListActive(ctx); len(list) != 0 {
		t.Fatalf("ended room still in redis")
	}
}

func TestRejectionsBecomeErrorEvents(t *testing.T) {
	f := newFixture(t, false)
	f.pair(t)
	ctx := context.Background()

	if _, err := f.svc.RequestMove(ctx, "b", "e7", "e5"); !errors.Is(err, corearena.ErrNotYourTurn) {
		t.Fatalf("err = %v", err)
	}
	var e arenadto.Error
	f.rec.last(t, "b", arenadto.EventError, &e)
	if e.Code != "not_your_turn" || e.Message != "It is not your turn." {
		t.Fatalf("error event = %+v", e)
	}

	if _, err := f.svc.RequestMove(ctx, "a", "z9", "e4"); !errors.Is(err, corearena.ErrInvalidRequest) {
		t.Fatalf("bad square err = %v", err)
	}
	f.rec.last(t, "a", arenadto.EventError, &e)
	if e.Code != "invalid_request" {
		t.Fatalf("error event = %+v", e)
	}

	if _, err := f.svc.RequestMove(ctx, "a", "e2", "e5"); !errors.Is(err, corearena.ErrIllegalMove) {
		t.Fatalf("illegal err = %v", err)
	}
	f.rec.last(t, "a", arenadto.EventError, &e)
	if e.Message != "e2 to e5 is not a legal move." {
		t.Fatalf("illegal message = %q", e.Message)
	}

	if _, err := f.svc.RequestMove(ctx, "nobody", "e2", "e4"); !errors.Is(err, corearena.ErrNotInGame) {
		t.Fatalf("outsider err = %v", err)
	}
	if n := f.rec.count("a", arenadto.EventBoardUpdated); n != 0 {
		t.Fatalf("rejected moves broadcast a board")
	}
}

func TestCheckIsAnnounced(t *testing.T) {
	f := newFixture(t, false)
	f.pair(t)
	out := f.play(t, "e2e4", "f7f6", "d1h5")
	if !out.Check() || out.Terminal() {
		t.Fatalf("outcome = %+v", out)
	}
	var chk arenadto.Check
	f.rec.last(t, "b", arenadto.EventCheck, &chk)
	if chk.Color != "black" {
		t.Fatalf("check = %+v", chk)
	}
}

func TestDisconnectForfeits(t *testing.T) {
	f := newFixture(t, false)
	snap := f.pair(t)
	ctx := context.Background()
	f.play(t, "e2e4")
	f.svc.OnDisconnect(ctx, "a")

	var dc arenadto.OpponentDisconnected
	f.rec.last(t, "b", arenadto.EventOpponentDisconnected, &dc)
	if dc.Message != "Ann disconnected. You win." {
		t.Fatalf("disconnect notice = %+v", dc)
	}
	var ended arenadto.GameEnded
	f.rec.last(t, "b", arenadto.EventGameEnded, &ended)
	if ended.Reason != "disconnect" || ended.Winner != "black" || ended.Result != corearena.ResultBlackWins {
		t.Fatalf("game_ended = %+v", ended)
	}
	if n := f.rec.count("a", arenadto.EventGameEnded); n != 0 {
		t.Fatalf("departed player was notified")
	}
	if g, _ := f.repo.GetGame(ctx, snap.ID); g == nil || g.Reason != "disconnect" {
		t.Fatalf("record = %+v", g)
	}
	if _, err := f.svc.RequestMove(ctx, "b", "e7", "e5"); !errors.Is(err, corearena.ErrNotInGame) {
		t.Fatalf("move after end err = %v", err)
	}
}

func TestEndWhileWaitingCancels(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.RequestJoin(ctx, "a", "Ann", "acc-a")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	sum, err := f.svc.RequestEnd(ctx, "a", "")
	if err != nil || sum.Reason != corearena.ReasonCancelled {
		t.Fatalf("end = %+v, %v", sum, err)
	}
	var ended arenadto.GameEnded
	f.rec.last(t, "a", arenadto.EventGameEnded, &ended)
	if ended.Message != "Search cancelled." || ended.Result != corearena.ResultNone {
		t.Fatalf("game_ended = %+v", ended)
	}
	if g, _ := f.repo.GetGame(ctx, res.Snapshot.ID); g != nil {
		t.Fatalf("cancelled room was recorded")
	}
	if _, err := f.svc.RequestEnd(ctx, "a", ""); !errors.Is(err, corearena.ErrNotInGame) {
		t.Fatalf("second end err = %v", err)
	}
}

func TestResignAwardsOpponent(t *testing.T) {
	f := newFixture(t, false)
	f.pair(t)
	sum, err := f.svc.RequestEnd(context.Background(), "b", "resign")
	if err != nil || sum.Result != corearena.ResultWhiteWins || sum.Reason != corearena.ReasonResigned {
		t.Fatalf("end = %+v, %v", sum, err)
	}
	var ended arenadto.GameEnded
	f.rec.last(t, "a", arenadto.EventGameEnded, &ended)
	if ended.Message != "Bea ended the game. Ann wins." {
		t.Fatalf("message = %q", ended.Message)
	}
	g, err := f.repo.GetGame(context.Background(), sum.RoomID)
	if err != nil || g == nil || g.Note != "resign" {
		t.Fatalf("record = %+v, %v", g, err)
	}
}

func TestEndNoteIsTrimmed(t *testing.T) {
	if got := endNote("  lost on time \n"); got != "lost on time" {
		t.Fatalf("endNote = %q", got)
	}
	long := strings.Repeat("ж", maxNoteRunes+5)
	if got := []rune(endNote(long)); len(got) != maxNoteRunes {
		t.Fatalf("note runes = %d", len(got))
	}
}

func TestDisconnectDuringMoveLeavesNoSnapshot(t *testing.T) {
	f := newFixture(t, false)
	snap := f.pair(t)
	ctx := context.Background()

	var once sync.Once
	f.rec.mu.Lock()
	f.rec.onEvent = func(playerID string, env arenadto.Envelope) {
		if env.Type == arenadto.EventBoardUpdated {
			once.Do(func() { f.svc.OnDisconnect(ctx, "b") })
		}
	}
	f.rec.mu.Unlock()

	if _, err := f.svc.RequestMove(ctx, "a", "e2", "e4"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := f.svc.Registry().Get(snap.ID); !errors.Is(err, corearena.ErrRoomNotFound) {
		t.Fatalf("room still registered: %v", err)
	}
	stored, err := f.store.LoadRoom(ctx, snap.ID)
	if err != nil || stored != nil {
		t.Fatalf("ended room stored again: %+v, %v", stored, err)
	}
	if list, _ := f.store.ListActive(ctx); len(list) != 0 {
		t.Fatalf("ended room listed as active: %d", len(list))
	}
}

func TestLegalMoves(t *testing.T) {
	f := newFixture(t, false)
	f.pair(t)
	got, err := f.svc.LegalMoves(context.Background(), "a", "e2")
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	sort.Strings(got)
	if !equal(got, []string{"e3", "e4"}) {
		t.Fatalf("destinations = %v", got)
	}
	var lm arenadto.LegalMoves
	f.rec.last(t, "a", arenadto.EventLegalMoves, &lm)
	if lm.From != "e2" || len(lm.Destinations) != 2 {
		t.Fatalf("event = %+v", lm)
	}
	if _, err := f.svc.LegalMoves(context.Background(), "a", "e4"); !errors.Is(err, corearena.ErrNoPieceAtSource) {
		t.Fatalf("empty square err = %v", err)
	}

	all, err := f.svc.LegalMoves(context.Background(), "a", "")
	if err != nil || len(all) != 20 {
		t.Fatalf("all moves = %v, %v", all, err)
	}
	var full arenadto.LegalMoves
	f.rec.last(t, "a", arenadto.EventLegalMoves, &full)
	if full.From != "" || len(full.Moves) != 20 {
		t.Fatalf("event = %+v", full)
	}
	if _, err := f.svc.LegalMoves(context.Background(), "b", ""); !errors.Is(err, corearena.ErrNotYourTurn) {
		t.Fatalf("black err = %v", err)
	}
}

func TestBoardImagesAttached(t *testing.T) {
	f := newFixture(t, true)
	f.pair(t)
	f.play(t, "e2e4")
	var upd arenadto.BoardUpdated
	f.rec.last(t, "b", arenadto.EventBoardUpdated, &upd)
	raw, err := base64.StdEncoding.DecodeString(upd.Board.Image)
	if err != nil || len(raw) < 8 || string(raw[1:4]) != "PNG" {
		t.Fatalf("image not a png: %v", err)
	}
	if upd.Move.From != "e2" || upd.Move.Piece != "pawn" || upd.Move.Seq != 1 {
		t.Fatalf("move = %+v", upd.Move)
	}
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t, false)
	snap := f.pair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub, err := f.store.Subscribe(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	f.play(t, "e2e4")
	select {
	case raw := <-sub.C:
		if len(raw) == 0 {
			t.Fatalf("empty payload")
		}
	case <-ctx.Done():
		t.Fatalf("board update not published")
	}
}
