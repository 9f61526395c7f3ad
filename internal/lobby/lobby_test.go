package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/yahtzee-backend/internal/engine"
	"github.com/DoyleJ11/yahtzee-backend/internal/trace"
)

const wait = time.Second

// helper: receive one line with a timeout so tests never hang
func recvLine(t *testing.T, ch <-chan string, within time.Duration) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return line
	case <-time.After(within):
		t.Fatalf("timed out waiting for line")
		return "" // unreachable
	}
}

func expectLine(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	if got := recvLine(t, ch, wait); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func recvNoLine(t *testing.T, ch <-chan string, within time.Duration) {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further lines possible
			return
		}
		t.Fatalf("expected no line within %v, but got: %q", within, line)
	case <-time.After(within):
		// good: no line
	}
}

// expectClosed drains ch and fails unless it is closed in time.
func expectClosed(t *testing.T, ch <-chan string) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox was not closed")
		}
	}
}

func newTestLobby(t *testing.T, players int) *Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewLobby(ctx, Config{Code: "TEST01", Players: players, Logger: zaptest.NewLogger(t)})
}

func seat(t *testing.T, l *Lobby) (engine.PlayerID, chan string) {
	t.Helper()
	out := make(chan string, OutboxSize)
	id, err := l.Admit(context.Background(), out)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	return id, out
}

// startTwo seats two players and consumes the admission traffic.
func startTwo(t *testing.T, l *Lobby) (chan string, chan string) {
	t.Helper()
	id1, out1 := seat(t, l)
	id2, out2 := seat(t, l)
	if id1 != 1 || id2 != 2 {
		t.Fatalf("want ids 1 and 2, got %d and %d", id1, id2)
	}
	expectLine(t, out1, "WELCOME_1")
	expectLine(t, out1, "start")
	expectLine(t, out2, "WELCOME_2")
	expectLine(t, out2, "start")
	return out1, out2
}

func send(l *Lobby, id engine.PlayerID, line string) {
	l.Inbox() <- FromClient{PlayerID: id, Line: line}
}

func view(t *testing.T, l *Lobby) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	v, err := l.View(ctx)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return v
}

func TestLobby_AdmissionAndStart(t *testing.T) {
	l := newTestLobby(t, 2)

	id, out1 := seat(t, l)
	expectLine(t, out1, "WELCOME_1")
	recvNoLine(t, out1, 50*time.Millisecond)

	if v := view(t, l); v.State.Phase != engine.PhaseWaiting || v.NumClients != 1 {
		t.Fatalf("want one waiting client, got phase=%s clients=%d", v.State.Phase, v.NumClients)
	}

	_, out2 := seat(t, l)
	expectLine(t, out1, "start")
	expectLine(t, out2, "WELCOME_2")
	expectLine(t, out2, "start")

	// a table that is playing refuses newcomers
	_, err := l.Admit(context.Background(), make(chan string, 1))
	if !errors.Is(err, engine.ErrGameStarted) {
		t.Fatalf("want ErrGameStarted for third seat, got %v", err)
	}

	v := view(t, l)
	if v.State.Phase != engine.PhasePlaying || v.State.Round != 1 || !v.State.Active[id] {
		t.Fatalf("unexpected state after start: %+v", v.State)
	}
}

func TestLobby_SubmitBroadcastsUpdate(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	send(l, 1, "SUBMIT_0_4_15\n")
	expectLine(t, out1, "UPDATE_1_0_4_15")
	expectLine(t, out2, "UPDATE_1_0_4_15")

	send(l, 2, "SUBMIT_1_6_50")
	expectLine(t, out1, "UPDATE_2_1_6_50")
	expectLine(t, out1, "ROUND_START")
	expectLine(t, out2, "UPDATE_2_1_6_50")
	expectLine(t, out2, "ROUND_START")

	if v := view(t, l); v.State.Round != 2 {
		t.Fatalf("want round 2, got %d", v.State.Round)
	}
}

func TestLobby_SameCategoryRace(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	claims := map[engine.PlayerID]string{1: "SUBMIT_0_2_9", 2: "SUBMIT_0_2_6"}
	var wg sync.WaitGroup
	for id, line := range claims {
		wg.Add(1)
		go func() {
			defer wg.Done()
			send(l, id, line)
		}()
	}
	wg.Wait()

	// whoever reached the lobby first owns threes
	first := recvLine(t, out1, wait)
	var winner engine.PlayerID
	switch first {
	case "UPDATE_1_0_2_9":
		winner = 1
	case "UPDATE_2_0_2_6":
		winner = 2
	default:
		t.Fatalf("unexpected first line %q", first)
	}
	loser := 3 - winner
	outs := map[engine.PlayerID]chan string{1: out1, 2: out2}

	expectLine(t, out2, first)
	expectLine(t, outs[loser], fmt.Sprintf("RETRY_%d", loser))
	recvNoLine(t, outs[winner], 50*time.Millisecond)

	v := view(t, l)
	if len(v.State.Submitted) != 1 || !v.State.Submitted[winner] || v.State.Round != 1 {
		t.Fatalf("conflict must not count toward the round: submitted=%v round=%d", v.State.Submitted, v.State.Round)
	}
	if e := v.State.Board[2]; e.ClaimedBy != winner {
		t.Fatalf("threes owned by %d, want %d", e.ClaimedBy, winner)
	}

	send(l, loser, "SUBMIT_1_5_22")
	update := fmt.Sprintf("UPDATE_%d_1_5_22", loser)
	expectLine(t, out1, update)
	expectLine(t, out1, "ROUND_START")
	expectLine(t, out2, update)
	expectLine(t, out2, "ROUND_START")
}

func TestLobby_CancelledAdmitLeavesNoSeat(t *testing.T) {
	l := newTestLobby(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan string, OutboxSize)
	if _, err := l.Admit(ctx, out); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	recvNoLine(t, out, 50*time.Millisecond)

	if v := view(t, l); v.NumClients != 0 || len(v.State.Active) != 0 {
		t.Fatalf("cancelled admit left a seat: clients=%d active=%v", v.NumClients, v.State.Active)
	}

	// the seat is still free for a real session
	id, out1 := seat(t, l)
	if id != 1 {
		t.Fatalf("want id 1 for the first real seat, got %d", id)
	}
	expectLine(t, out1, "WELCOME_1")
}

func TestLobby_ForfeitBroadcastsSentinelUpdate(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	send(l, 2, "SUBMIT_-1_3_9")
	expectLine(t, out1, "UPDATE_2_-1_0_0")
	expectLine(t, out2, "UPDATE_2_-1_0_0")
}

func TestLobby_DisconnectAdvancesRound(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	send(l, 1, "SUBMIT_0_0_3")
	expectLine(t, out1, "UPDATE_1_0_0_3")
	expectLine(t, out2, "UPDATE_1_0_0_3")

	l.Inbox() <- Leave{PlayerID: 2}
	expectClosed(t, out2)
	expectLine(t, out1, "ROUND_START")

	v := view(t, l)
	if v.NumClients != 1 || v.State.Round != 2 || len(v.State.Active) != 1 {
		t.Fatalf("unexpected state after disconnect: clients=%d state=%+v", v.NumClients, v.State)
	}

	// leaving twice is harmless
	l.Inbox() <- Leave{PlayerID: 2}
	if v := view(t, l); v.NumClients != 1 {
		t.Fatalf("duplicate leave changed the table: %d clients", v.NumClients)
	}
}

func TestLobby_ScoreRepliesWithOwnTotal(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	send(l, 1, "SUBMIT_1_2_25")
	expectLine(t, out1, "UPDATE_1_1_2_25")
	expectLine(t, out2, "UPDATE_1_1_2_25")

	// the id in the request is ignored
	send(l, 1, "SCORE_2")
	expectLine(t, out1, "SCORE_1_25")
	send(l, 2, "SCORE_2")
	expectLine(t, out2, "SCORE_2_0")
	recvNoLine(t, out1, 50*time.Millisecond)
}

func TestLobby_IgnoresBadInput(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	for _, line := range []string{"", "   ", "ROLL_3", "SUBMIT_0_9_1", "OVER_1", "UPDATE_1_0_0_1", "SUBMIT_0_0_51"} {
		send(l, 1, line)
	}
	// an unknown session id is ignored too
	send(l, 42, "SUBMIT_0_0_1")

	send(l, 1, "SCORE_1")
	expectLine(t, out1, "SCORE_1_0")
	recvNoLine(t, out2, 50*time.Millisecond)

	if v := view(t, l); v.State.Round != 1 || len(v.State.Submitted) != 0 {
		t.Fatalf("bad input changed the game: %+v", v.State)
	}
}

func TestLobby_DuplicateSubmitIsDropped(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	send(l, 1, "SUBMIT_0_1_4")
	expectLine(t, out1, "UPDATE_1_0_1_4")
	expectLine(t, out2, "UPDATE_1_0_1_4")

	send(l, 1, "SUBMIT_0_2_6")
	recvNoLine(t, out1, 50*time.Millisecond)
	recvNoLine(t, out2, 50*time.Millisecond)
}

func TestLobby_QuitEchoesAndCloses(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	send(l, 2, "quit")
	expectLine(t, out2, "quit")
	expectClosed(t, out2)

	if v := view(t, l); v.NumClients != 1 {
		t.Fatalf("want 1 client after quit, got %d", v.NumClients)
	}
	recvNoLine(t, out1, 50*time.Millisecond)
}

func TestLobby_LastPlayerLeavingEndsGame(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	l.Inbox() <- Leave{PlayerID: 1}
	expectClosed(t, out1)
	l.Inbox() <- Leave{PlayerID: 2}
	expectClosed(t, out2)

	select {
	case <-l.Done():
	case <-time.After(wait):
		t.Fatalf("lobby did not stop after everyone left")
	}

	v := view(t, l)
	if v.State.Phase != engine.PhaseOver || v.State.Winner != engine.NotTaken {
		t.Fatalf("want game over with no winner, got %+v", v.State)
	}
	if _, err := l.Admit(context.Background(), make(chan string, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed from a finished lobby, got %v", err)
	}
}

func TestLobby_DropSlowClient(t *testing.T) {
	l := newTestLobby(t, 2)

	slow := make(chan string, 1)
	if _, err := l.Admit(context.Background(), slow); err != nil {
		t.Fatalf("admit: %v", err)
	}
	// WELCOME fills the buffer; the start broadcast cannot be delivered
	_, out2 := seat(t, l)
	expectLine(t, out2, "WELCOME_2")
	expectLine(t, out2, "start")

	v := view(t, l)
	if v.NumClients != 1 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", v.NumClients)
	}
	if v.State.Active[1] {
		t.Fatalf("dropped player is still active")
	}
	expectClosed(t, slow)
}

func TestLobby_ShutdownSendsQuit(t *testing.T) {
	l := newTestLobby(t, 2)
	out1, out2 := startTwo(t, l)

	l.Inbox() <- Shutdown{}
	expectLine(t, out1, "quit")
	expectLine(t, out2, "quit")
	expectClosed(t, out1)
	expectClosed(t, out2)

	select {
	case <-l.Done():
	case <-time.After(wait):
		t.Fatalf("lobby did not stop")
	}
}

func TestLobby_FullGameIsTraced(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, Config{
		Code:    "SOLO01",
		Players: 1,
		Tracer:  trace.NewLogger(zap.New(core)),
		Logger:  zaptest.NewLogger(t),
	})

	_, out := seat(t, l)
	expectLine(t, out, "WELCOME_1")
	expectLine(t, out, "start")

	lines := []string{
		"SUBMIT_0_0_3", "SUBMIT_0_1_6", "SUBMIT_0_2_9", "SUBMIT_0_3_12", "SUBMIT_0_4_15", "SUBMIT_0_5_18",
		"SUBMIT_1_0_20", "SUBMIT_1_1_0", "SUBMIT_1_2_25", "SUBMIT_1_3_30", "SUBMIT_1_4_40", "SUBMIT_1_5_22",
	}
	for _, line := range lines {
		send(l, 1, line)
		recvLine(t, out, wait) // UPDATE
		expectLine(t, out, "ROUND_START")
	}

	// the thirteenth claim fills the board
	send(l, 1, "SUBMIT_1_6_50")
	expectLine(t, out, "UPDATE_1_1_6_50")
	expectLine(t, out, "OVER_1")
	expectClosed(t, out)
	<-l.Done()

	v := view(t, l)
	if v.State.Winner != 1 || engine.Score(v.State, 1) != 250 {
		t.Fatalf("unexpected final state: winner=%d score=%d", v.State.Winner, engine.Score(v.State, 1))
	}

	if n := logs.FilterMessage("score").Len(); n != 13 {
		t.Fatalf("want 13 score trace points, got %d", n)
	}
	totals := logs.FilterMessage("player total").All()
	if len(totals) != 1 || totals[0].ContextMap()["total"] != int64(250) {
		t.Fatalf("unexpected total trace: %+v", totals)
	}
	ends := logs.FilterMessage("end game").All()
	if len(ends) != 1 || ends[0].ContextMap()["winner"] != int64(1) {
		t.Fatalf("unexpected end trace: %+v", ends)
	}
}
