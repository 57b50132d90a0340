// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command prlsc-bridge joins a local serial bus with a remote peer over TCP,
// relaying datagrams in both directions through two cooperative Links.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarm/serial"
	"golang.org/x/time/rate"

	"github.com/fragmuffin/prlsc"
	"github.com/fragmuffin/prlsc/internal/config"
	"github.com/fragmuffin/prlsc/internal/logging"
)

func main() {
	configPath := flag.String("config", "/etc/prlsc/bridge.yaml", "path to bridge config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bridge stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Bridge, logger *slog.Logger) error {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}
	defer port.Close()

	conn, err := connectPeer(ctx, cfg.Peer, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	services := make([]prlsc.ServiceConfig, len(cfg.Services))
	for i, s := range cfg.Services {
		services[i] = prlsc.ServiceConfig{
			Stream:       s.Stream,
			RateLimit:    prlsc.Time(s.RateLimit),
			OnlyTxLatest: s.OnlyTxLatest,
			BufferSize:   s.BufferSize,
		}
	}
	opts := []prlsc.Option{
		prlsc.WithFrameLengthMax(cfg.Framing.FrameLengthMax),
		prlsc.WithDatagramLengthMax(cfg.Framing.DatagramLengthMax),
	}

	var serialWriter io.Writer = port
	if cfg.Serial.ByteBudget > 0 {
		serialWriter = &pacedWriter{
			w:   port,
			lim: rate.NewLimiter(rate.Limit(cfg.Serial.ByteBudget), cfg.Serial.ByteBudget),
			ctx: ctx,
		}
	}

	serialLink, err := prlsc.NewLink(
		&serialReader{r: port}, serialWriter,
		logHandler(logger, "serial"), services, opts...)
	if err != nil {
		return fmt.Errorf("building serial link: %w", err)
	}
	peerLink, err := prlsc.NewLink(
		&connReader{c: conn, timeout: 10 * time.Millisecond}, conn,
		logHandler(logger, "peer"), services, opts...)
	if err != nil {
		return fmt.Errorf("building peer link: %w", err)
	}

	toPeer := prlsc.NewForwarder(peerLink, serialLink)
	toSerial := prlsc.NewForwarder(serialLink, peerLink)

	logger.Info("bridge running",
		"device", cfg.Serial.Device,
		"peer", conn.RemoteAddr().String(),
		"services", len(services))

	// Single cooperative loop: the engine never blocks, so one goroutine can
	// interleave both directions at datagram granularity.
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		default:
		}

		idle := true
		for _, dir := range []struct {
			name string
			fwd  *prlsc.Forwarder
			link *prlsc.Link
		}{
			{"serial->peer", toPeer, serialLink},
			{"peer->serial", toSerial, peerLink},
		} {
			n, err := dir.fwd.ForwardOnce()
			if n > 0 {
				idle = false
			}
			switch {
			case err == nil:
			case errors.Is(err, prlsc.ErrWouldBlock), errors.Is(err, prlsc.ErrMore):
				// Expected back-pressure; the next pass retries.
			case errors.Is(err, io.EOF):
				return fmt.Errorf("%s: peer closed the connection", dir.name)
			default:
				return fmt.Errorf("%s: %w", dir.name, err)
			}
			if code := dir.link.Engine().LastError(); code != prlsc.ErrorNone {
				logger.Warn("protocol error", "direction", dir.name, "code", code.String())
				dir.link.Engine().ClearError()
			}
			if dropped := dir.fwd.Dropped(); dropped > 0 {
				logger.Debug("relay queue overflow", "direction", dir.name, "dropped", dropped)
			}
		}
		if idle {
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func connectPeer(ctx context.Context, peer config.Peer, logger *slog.Logger) (net.Conn, error) {
	if peer.Dial != "" {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", peer.Dial)
		if err != nil {
			return nil, fmt.Errorf("dialing peer: %w", err)
		}
		return conn, nil
	}
	ln, err := net.Listen("tcp", peer.Listen)
	if err != nil {
		return nil, fmt.Errorf("listening: %w", err)
	}
	defer ln.Close()
	logger.Info("waiting for peer", "listen", peer.Listen)
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting peer: %w", err)
	}
	return conn, nil
}

func logHandler(logger *slog.Logger, side string) prlsc.Handler {
	return func(d prlsc.Datagram) prlsc.ResponseCode {
		logger.Debug("datagram",
			"side", side,
			"service", d.ServiceIndex,
			"sub_service", d.SubServiceIndex,
			"len", len(d.Data))
		return prlsc.ResponsePositive
	}
}

// serialReader adapts the serial port's timeout behavior (0, nil on an empty
// read window) to the Link layer's would-block contract.
type serialReader struct {
	r io.Reader
}

func (s *serialReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n == 0 && err == nil {
		return 0, prlsc.ErrWouldBlock
	}
	return n, err
}

// connReader reads with a short deadline so one goroutine can interleave both
// bridge directions; deadline expiry surfaces as would-block.
type connReader struct {
	c       net.Conn
	timeout time.Duration
}

func (c *connReader) Read(p []byte) (int, error) {
	if err := c.c.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	n, err := c.c.Read(p)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() && n == 0 {
			return 0, prlsc.ErrWouldBlock
		}
	}
	return n, err
}

// pacedWriter spreads serial writes over the configured byte budget so the
// bridge cannot outrun the physical link's drain rate.
type pacedWriter struct {
	w   io.Writer
	lim *rate.Limiter
	ctx context.Context
}

func (p *pacedWriter) Write(b []byte) (int, error) {
	if len(b) > p.lim.Burst() {
		// Oversized bursts are split by the caller's short-write handling.
		b = b[:p.lim.Burst()]
	}
	if err := p.lim.WaitN(p.ctx, len(b)); err != nil {
		return 0, err
	}
	return p.w.Write(b)
}
