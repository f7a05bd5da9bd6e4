// devserver is a local realtime server for exercising clients by hand. It
// answers parent_view with parent_view_success for known tokens and with an
// error otherwise, and ignores ping.
// Usage: go run ./cmd/devserver --addr :8081 --tokens demo=42,other=7
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/athlete-live/internal/model"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	path := flag.String("path", "/ws", "websocket path")
	tokens := flag.String("tokens", "demo=42", "comma-separated token=athleteId pairs")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	known, err := parseTokens(*tokens)
	if err != nil {
		logger.Error("invalid -tokens", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle(*path, &server{
		tokens:   known,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("devserver listening", "addr", *addr, "path", *path, "tokens", len(known))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("devserver failed", "error", err)
		os.Exit(1)
	}
}

func parseTokens(s string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tok, id, ok := strings.Cut(pair, "=")
		if !ok || tok == "" {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("athlete id for %q: %w", tok, err)
		}
		out[tok] = n
	}
	return out, nil
}

type server struct {
	tokens   map[string]int64
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("session", uuid.NewString(), "remote", r.RemoteAddr)
	logger.Info("session opened", "origin", r.Header.Get("Origin"))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("session closed", "error", err)
			return
		}

		msg, err := model.Decode(data)
		if err != nil {
			logger.Warn("bad frame", "error", err)
			continue
		}

		reply := s.handle(msg)
		if reply == nil {
			continue
		}
		out, err := reply.Encode()
		if err != nil {
			logger.Error("encode reply", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			logger.Info("write failed", "error", err)
			return
		}
		logger.Debug("replied", "request", msg.Type(), "reply", reply.Type())
	}
}

// handle returns the reply for msg, or nil when none is sent.
func (s *server) handle(msg model.Message) model.Message {
	switch msg.Type() {
	case model.TypePing:
		return nil
	case model.TypeParentView:
		token, _ := msg["token"].(string)
		if token == "" {
			return model.NewMessage(model.TypeError, map[string]any{"message": "missing token"})
		}
		id, ok := s.tokens[token]
		if !ok {
			return model.NewMessage(model.TypeError, map[string]any{"message": "invalid or expired token"})
		}
		return model.NewMessage(model.TypeParentViewSuccess, map[string]any{
			"data": map[string]any{"athleteId": id},
		})
	default:
		return model.NewMessage(model.TypeError, map[string]any{
			"message": fmt.Sprintf("unsupported message type %q", msg.Type()),
		})
	}
}
