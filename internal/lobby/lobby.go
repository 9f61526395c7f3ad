package lobby

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/engine"
	"github.com/DoyleJ11/yahtzee-backend/internal/protocol"
	"github.com/DoyleJ11/yahtzee-backend/internal/trace"
)

var ErrClosed = errors.New("lobby closed")

// OutboxSize bounds how far a session may fall behind before a broadcast
// treats it as dead.
const OutboxSize = 32

type Msg interface{ isLobbyMsg() }

type Join struct {
	Outbox chan string // lines for this session; closed by the lobby
	Reply  chan JoinResult
}

func (Join) isLobbyMsg() {}

type JoinResult struct {
	PlayerID engine.PlayerID
	Err      error
}

type Leave struct{ PlayerID engine.PlayerID }

func (Leave) isLobbyMsg() {}

type FromClient struct {
	PlayerID engine.PlayerID
	Line     string
}

func (FromClient) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Code       string
	Version    int
	NumClients int
	State      engine.State
}

type Config struct {
	Code    string
	Players int
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// Lobby is one table. Its loop goroutine is the only place game state changes.
type Lobby struct {
	code    string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[engine.PlayerID]chan string
	nextID  engine.PlayerID
	dead    []engine.PlayerID // failed deliveries, removed after the current message

	tracer trace.Tracer
	game   trace.Game
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	final  View
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Lobby{
		code:    cfg.Code,
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(cfg.Players),
		clients: make(map[engine.PlayerID]chan string),
		nextID:  1,
		tracer:  cfg.Tracer,
		log:     cfg.Logger.With(zap.String("table", cfg.Code)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Done is closed once the game is over or the lobby was shut down.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Expose the inbox so tests or the transport layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby has already stopped.
func (l *Lobby) Send(m Msg) bool {
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Admit seats a new session. outbox receives every line for it and is closed
// when the session is removed.
//
// ctx bounds only the hand-off. A lobby holding the Join always answers, and
// the answer must be read or the seat is never released.
func (l *Lobby) Admit(ctx context.Context, outbox chan string) (engine.PlayerID, error) {
	if err := ctx.Err(); err != nil {
		return engine.NotTaken, err
	}
	reply := make(chan JoinResult, 1)
	select {
	case l.inbox <- Join{Outbox: outbox, Reply: reply}:
	case <-l.ctx.Done():
		return engine.NotTaken, ErrClosed
	case <-ctx.Done():
		return engine.NotTaken, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.PlayerID, r.Err
	case <-l.done:
		return engine.NotTaken, ErrClosed
	}
}

// View returns a snapshot; after the lobby stops it returns the final one.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !l.Send(GetState{Reply: reply}) {
		<-l.done
		return l.final, nil
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return l.final, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (l *Lobby) loop() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- l.admit(msg.Outbox)

			case Leave:
				l.removePlayer(msg.PlayerID)

			case FromClient:
				l.handle(msg.PlayerID, msg.Line)

			case GetState:
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}

			l.reap()
			if l.state.Phase == engine.PhaseOver {
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) view() View {
	return View{
		Code:       l.code,
		Version:    l.version,
		NumClients: len(l.clients),
		State:      l.state.Clone(),
	}
}

func (l *Lobby) admit(outbox chan string) JoinResult {
	id := l.nextID
	events, next, err := engine.Apply(l.state, engine.Command{Type: engine.CmdJoin, Player: id})
	if err != nil {
		l.log.Info("admission refused", zap.Error(err))
		return JoinResult{Err: err}
	}
	l.nextID++
	l.clients[id] = outbox
	l.commit(next)
	l.log.Info("player admitted", zap.Int("player", int(id)),
		zap.Int("seated", len(l.clients)), zap.Int("seats", l.state.Players))

	l.deliver(id, protocol.Encode(protocol.Welcome{PlayerID: int(id)}))
	l.apply(events)
	return JoinResult{PlayerID: id}
}

// handle is the single entry point for client input. Bad input never fails
// the table; it is logged and dropped.
func (l *Lobby) handle(id engine.PlayerID, line string) {
	if _, ok := l.clients[id]; !ok {
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	msg, err := protocol.Decode(line)
	if err != nil {
		l.log.Warn("dropping bad command", zap.Int("player", int(id)), zap.String("line", line), zap.Error(err))
		return
	}
	l.log.Debug("command", zap.Int("player", int(id)), zap.String("line", line))

	switch m := msg.(type) {
	case protocol.Quit:
		l.log.Info("player quit", zap.Int("player", int(id)))
		l.deliver(id, protocol.Encode(protocol.Quit{}))
		l.removePlayer(id)

	case protocol.Submit:
		l.submit(id, engine.Claim{Part: m.Part, Index: m.Category, Value: m.Value})

	case protocol.ScoreRequest:
		// Always answer with the sender's own total.
		l.deliver(id, protocol.Encode(protocol.ScoreResponse{
			PlayerID: int(id),
			Score:    engine.Score(l.state, id),
		}))

	default:
		l.log.Warn("ignoring server-bound verb from client", zap.Int("player", int(id)), zap.String("line", line))
	}
}

func (l *Lobby) submit(id engine.PlayerID, claim engine.Claim) {
	outcome, events, next, err := engine.SubmitClaim(l.state, id, claim)
	switch outcome {
	case engine.OutcomeConflict:
		l.log.Info("category taken, asking for retry", zap.Int("player", int(id)),
			zap.Stringer("category", claim.Category()))
		l.deliver(id, protocol.Encode(protocol.Retry{PlayerID: int(id)}))
		return
	case engine.OutcomeRejected:
		l.log.Warn("submission rejected", zap.Int("player", int(id)), zap.Error(err))
		return
	}

	l.commit(next)
	l.apply(events)
}

// removePlayer is idempotent. The departure may complete the current round.
func (l *Lobby) removePlayer(id engine.PlayerID) {
	ch, ok := l.clients[id]
	if !ok {
		return
	}
	delete(l.clients, id)
	close(ch)

	events, next, err := engine.Apply(l.state, engine.Command{Type: engine.CmdLeave, Player: id})
	if err != nil {
		// the game already ended; only the session bookkeeping mattered
		return
	}
	l.commit(next)
	l.log.Info("player removed", zap.Int("player", int(id)), zap.Int("remaining", len(l.clients)))
	l.apply(events)
}

func (l *Lobby) commit(next engine.State) {
	l.state = next
	l.version++
}

// apply turns engine events into protocol traffic and trace points.
func (l *Lobby) apply(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtGameStarted:
			l.startTrace()
			l.log.Info("game started", zap.Int("players", len(l.clients)))
			l.broadcast(protocol.Start{})

		case engine.EvtClaimAccepted:
			l.game.Score(ev.Round, int(ev.Player), ev.Claim.Category(), ev.Claim.Value)
			l.broadcast(protocol.Update{
				PlayerID: int(ev.Player),
				Part:     ev.Claim.Part,
				Category: ev.Claim.Index,
				Value:    ev.Claim.Value,
			})

		case engine.EvtForfeited:
			l.game.Forfeit(ev.Round, int(ev.Player))
			l.broadcast(protocol.Update{PlayerID: int(ev.Player), Part: ev.Claim.Part})

		case engine.EvtPlayerLeft:
			if l.game != nil {
				l.game.PlayerDropped(int(ev.Player))
			}

		case engine.EvtRoundStarted:
			l.log.Info("round complete", zap.Int("next_round", ev.Round))
			l.broadcast(protocol.RoundStart{})

		case engine.EvtGameOver:
			l.gameOver(ev.Player)
		}
	}
}

func (l *Lobby) startTrace() {
	g, err := l.tracer.StartGame(l.ctx, l.code, l.state.Players)
	if err != nil {
		l.log.Warn("tracer failed to start", zap.Error(err))
	}
	if g == nil {
		g = nopGame()
	}
	l.game = g
}

func (l *Lobby) gameOver(winner engine.PlayerID) {
	l.log.Info("game over", zap.Int("winner", int(winner)), zap.Int("round", l.state.Round))
	for _, id := range l.state.ActivePlayers() {
		l.game.PlayerTotal(int(id), engine.Score(l.state, id))
	}
	l.broadcast(protocol.Over{WinnerID: int(winner)})
	l.endTrace(winner)
}

func (l *Lobby) endTrace(winner engine.PlayerID) {
	if l.game == nil {
		return
	}
	if err := l.game.End(int(winner)); err != nil {
		l.log.Warn("tracer failed to close", zap.Error(err))
	}
	l.game = nil
}

func (l *Lobby) sortedClients() []engine.PlayerID {
	ids := make([]engine.PlayerID, 0, len(l.clients))
	for id := range l.clients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// broadcast never blocks; a session that cannot take the line is queued for
// removal once the current message is done.
func (l *Lobby) broadcast(m protocol.Message) {
	line := protocol.Encode(m)
	for _, id := range l.sortedClients() {
		l.deliver(id, line)
	}
}

func (l *Lobby) deliver(id engine.PlayerID, line string) {
	ch, ok := l.clients[id]
	if !ok || slices.Contains(l.dead, id) {
		return
	}
	select {
	case ch <- line:
		// ok
	default:
		l.log.Warn("session is not keeping up, dropping it", zap.Int("player", int(id)))
		l.dead = append(l.dead, id)
	}
}

// reap removes sessions whose delivery failed. Removal can broadcast again
// and fail more deliveries, so it runs until the queue is empty.
func (l *Lobby) reap() {
	for len(l.dead) > 0 {
		id := l.dead[0]
		l.dead = l.dead[1:]
		l.removePlayer(id)
	}
}

func (l *Lobby) shutdown() {
	if l.state.Phase != engine.PhaseOver {
		// Shutting down mid-game: tell everybody and close the trace without a winner.
		l.broadcast(protocol.Quit{})
		l.endTrace(engine.NotTaken)
	}
	for _, id := range l.sortedClients() {
		close(l.clients[id]) // Tell client no more lines
		delete(l.clients, id)
	}
	l.dead = nil
	l.final = l.view()
	l.cancel()
}

func nopGame() trace.Game {
	g, _ := trace.Nop{}.StartGame(context.Background(), "", 0)
	return g
}
