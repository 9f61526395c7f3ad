package hub

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/engine"
	"github.com/DoyleJ11/yahtzee-backend/internal/lobby"
	"github.com/DoyleJ11/yahtzee-backend/internal/trace"
)

var ErrClosed = errors.New("hub closed")
var ErrNoTables = errors.New("no table available")
var ErrUnknownTable = errors.New("unknown table")
var ErrTableExists = errors.New("table code already in use")

type Config struct {
	Players   int
	MaxTables int // concurrent tables, 0 = unlimited
	Games     int // tables to host before Done closes, 0 = unlimited
	Tracer    trace.Tracer
	Logger    *zap.Logger
}

type HubMsg interface{ isHubMsg() }

type TableResult struct {
	Table *lobby.Lobby
	Err   error
}

// CreateTable opens an empty table. An empty Code generates one.
type CreateTable struct {
	Code  string
	Reply chan TableResult
}

type GetTable struct {
	Code  string
	Reply chan *lobby.Lobby // nil when unknown
}

// OpenTable returns the table currently waiting for players, creating one if
// needed. Full names a table the caller found already started.
type OpenTable struct {
	Full  string
	Reply chan TableResult
}

type ListTables struct {
	Reply chan []*lobby.Lobby
}

type RemoveTable struct {
	Code string
}

type ShutdownHub struct{}

func (CreateTable) isHubMsg() {}
func (GetTable) isHubMsg()    {}
func (OpenTable) isHubMsg()   {}
func (ListTables) isHubMsg()  {}
func (RemoveTable) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	cfg      Config
	inbox    chan HubMsg
	tables   map[string]*lobby.Lobby
	open     string // code of the table seating newcomers
	created  int
	finished int
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Players < 1 {
		cfg.Players = 1
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &Hub{
		cfg:    cfg,
		inbox:  make(chan HubMsg, 64),
		tables: make(map[string]*lobby.Lobby),
		log:    cfg.Logger.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed when the hub stops, either by shutdown or because the
// configured number of games has been played.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) Send(m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Shutdown() {
	h.Send(ShutdownHub{})
}

func request[T any](ctx context.Context, h *Hub, m HubMsg, reply chan T) (T, error) {
	var zero T
	if !h.Send(m) {
		return zero, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) CreateTable(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan TableResult, 1)
	res, err := request(ctx, h, CreateTable{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return res.Table, res.Err
}

func (h *Hub) Table(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := request(ctx, h, GetTable{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, fmt.Errorf("%s: %w", code, ErrUnknownTable)
	}
	return lb, nil
}

// Tables lists the live tables ordered by code.
func (h *Hub) Tables(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	return request(ctx, h, ListTables{Reply: reply}, reply)
}

// Seat admits a session. With a code it joins that table only; otherwise it
// takes the open table, moving on to a fresh one when the open table has
// already started.
func (h *Hub) Seat(ctx context.Context, code string, outbox chan string) (*lobby.Lobby, engine.PlayerID, error) {
	if code != "" {
		lb, err := h.Table(ctx, code)
		if err != nil {
			return nil, engine.NotTaken, err
		}
		id, err := lb.Admit(ctx, outbox)
		if err != nil {
			return nil, engine.NotTaken, err
		}
		return lb, id, nil
	}

	full := ""
	for {
		reply := make(chan TableResult, 1)
		res, err := request(ctx, h, OpenTable{Full: full, Reply: reply}, reply)
		if err == nil {
			err = res.Err
		}
		if err != nil {
			return nil, engine.NotTaken, err
		}

		id, err := res.Table.Admit(ctx, outbox)
		switch {
		case err == nil:
			return res.Table, id, nil
		case errors.Is(err, engine.ErrGameStarted), errors.Is(err, engine.ErrLobbyFull), errors.Is(err, lobby.ErrClosed):
			full = res.Table.Code()
		default:
			return nil, engine.NotTaken, err
		}
	}
}

func (h *Hub) loop() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateTable:
				lb, err := h.create(msg.Code)
				msg.Reply <- TableResult{Table: lb, Err: err}

			case GetTable:
				msg.Reply <- h.tables[msg.Code] // May be nil

			case OpenTable:
				if msg.Full != "" && msg.Full == h.open {
					h.open = ""
				}
				if lb := h.tables[h.open]; lb != nil {
					msg.Reply <- TableResult{Table: lb}
					break
				}
				lb, err := h.create("")
				if err == nil {
					h.open = lb.Code()
				}
				msg.Reply <- TableResult{Table: lb, Err: err}

			case ListTables:
				out := make([]*lobby.Lobby, 0, len(h.tables))
				for _, code := range slices.Sorted(maps.Keys(h.tables)) {
					out = append(out, h.tables[code])
				}
				msg.Reply <- out

			case RemoveTable:
				h.remove(msg.Code)
				if h.cfg.Games > 0 && h.finished >= h.cfg.Games {
					h.log.Info("all games played", zap.Int("games", h.finished))
					h.shutdown()
					return
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(code string) (*lobby.Lobby, error) {
	if h.cfg.Games > 0 && h.created >= h.cfg.Games {
		return nil, fmt.Errorf("all %d games already hosted: %w", h.cfg.Games, ErrNoTables)
	}
	if h.cfg.MaxTables > 0 && len(h.tables) >= h.cfg.MaxTables {
		return nil, fmt.Errorf("%d tables running: %w", len(h.tables), ErrNoTables)
	}

	if code == "" {
		for {
			c, err := GenerateCode()
			if err != nil {
				return nil, err
			}
			if h.tables[c] == nil {
				code = c
				break
			}
			h.log.Debug("collision on code, regenerating", zap.String("code", c))
		}
	} else if h.tables[code] != nil {
		return nil, fmt.Errorf("%s: %w", code, ErrTableExists)
	}

	lb := lobby.NewLobby(h.ctx, lobby.Config{
		Code:    code,
		Players: h.cfg.Players,
		Tracer:  h.cfg.Tracer,
		Logger:  h.cfg.Logger,
	})
	h.tables[code] = lb
	h.created++
	h.log.Info("table opened", zap.String("table", code), zap.Int("seats", h.cfg.Players))

	go func() {
		<-lb.Done()
		h.Send(RemoveTable{Code: code})
	}()
	return lb, nil
}

func (h *Hub) remove(code string) {
	lb := h.tables[code]
	if lb == nil {
		return
	}
	delete(h.tables, code)
	if h.open == code {
		h.open = ""
	}
	h.finished++
	lb.Send(lobby.Shutdown{})
	h.log.Info("table closed", zap.String("table", code), zap.Int("finished", h.finished))
}

func (h *Hub) shutdown() {
	for _, lb := range h.tables {
		lb.Send(lobby.Shutdown{})
	}
	clear(h.tables)
	h.open = ""
	h.cancel()
}
