package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MaxLineLength caps a single inbound line. Longer input ends the session.
const MaxLineLength = 4096

type tcpConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func NewTCPConn(c net.Conn, writeTimeout time.Duration) Conn {
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, 512), MaxLineLength)
	return &tcpConn{conn: c, scanner: sc, writeTimeout: writeTimeout}
}

// ReadLine blocks until a full line arrives. ctx is honored by closing the
// connection, which Serve arranges.
func (c *tcpConn) ReadLine(_ context.Context) (string, error) {
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *tcpConn) WriteLine(_ context.Context, line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Listener accepts TCP clients and hands each one to Serve.
type Listener struct {
	Addr         string
	Seater       Seater
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

func (l *Listener) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.Addr, err)
	}
	return l.Serve(ctx, ln)
}

// Serve owns ln and closes it when ctx is done. It returns after every
// session it started has ended.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("tcp")
	log.Info("listening", zap.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info("listener stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		log.Debug("accepted", zap.String("remote", c.RemoteAddr().String()))

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Serve(ctx, l.Seater, "", NewTCPConn(c, l.WriteTimeout), log)
		}()
	}
}
