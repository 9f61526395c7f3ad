// Package transport carries the line protocol between a network connection
// and a table. Serve is shared by the TCP listener and the WebSocket handler.
package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/engine"
	"github.com/DoyleJ11/yahtzee-backend/internal/lobby"
	"github.com/DoyleJ11/yahtzee-backend/internal/protocol"
)

// Conn is one client connection speaking whole lines without terminators.
type Conn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
	RemoteAddr() string
}

// Seater finds a table for a new session. *hub.Hub implements it.
type Seater interface {
	Seat(ctx context.Context, code string, outbox chan string) (*lobby.Lobby, engine.PlayerID, error)
}

// Serve runs one session until the client goes away or its table drops it.
// code selects a table; empty means any open table.
func Serve(ctx context.Context, s Seater, code string, conn Conn, log *zap.Logger) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log = log.With(zap.String("remote", conn.RemoteAddr()))

	outbox := make(chan string, lobby.OutboxSize)
	lb, id, err := s.Seat(ctx, code, outbox)
	if err != nil {
		log.Info("no seat for connection", zap.Error(err))
		_ = conn.WriteLine(ctx, protocol.Encode(protocol.Quit{}))
		return err
	}
	log = log.With(zap.String("table", lb.Code()), zap.Int("player", int(id)))
	log.Info("session started")

	// Writer goroutine. The lobby closes the outbox when it drops the
	// session; whatever is queued is still written first.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for line := range outbox {
			if err := conn.WriteLine(ctx, line); err != nil {
				log.Info("write failed", zap.Error(err))
				conn.Close()
				for range outbox {
				}
				return
			}
		}
		conn.Close()
	}()

	// Reader loop
	for {
		line, err := conn.ReadLine(ctx)
		if err != nil {
			log.Debug("read ended", zap.Error(err))
			lb.Send(lobby.Leave{PlayerID: id})
			break
		}
		if !lb.Send(lobby.FromClient{PlayerID: id, Line: line}) {
			break
		}
	}

	<-writerDone
	log.Info("session ended")
	return nil
}
