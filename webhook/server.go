// Package webhook serves the CMS webhook and push endpoints.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ridoystarlord/discontented/pull"
	"github.com/ridoystarlord/discontented/push"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/ridoystarlord/discontented/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	TopicHeader = "X-Contentful-Topic"
	entryTopic  = "ContentManagement.Entry."
	maxBodySize = 10 << 20
)

// Importer applies entry events to the database.
type Importer interface {
	ImportEntry(ctx context.Context, entry schema.Entry, published bool) (*pull.Result, error)
	RefreshEntry(ctx context.Context, id string) (*pull.Result, error)
	Delete(ctx context.Context, entry schema.Entry) error
}

// Pusher writes a database row back to the CMS.
type Pusher interface {
	Push(ctx context.Context, u push.Update) (*schema.Entry, error)
}

type Server struct {
	Importer Importer
	Pusher   Pusher
	SpaceID  string
	Logger   *slog.Logger

	events metric.Int64Counter
}

func NewServer(importer Importer, pusher Pusher, spaceID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Importer: importer,
		Pusher:   pusher,
		SpaceID:  spaceID,
		Logger:   logger,
		events:   telemetry.Counter("dcf.webhook.events", "Webhook events received, by action"),
	}
}

type fault struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeFault(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, fault{Type: "fault", Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, fault{Type: "bad_request", Message: message})
}

// Handler returns the routes wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("PATCH /push", s.handlePush)

	return Chain(mux,
		WithRequestID(),
		Recovery(s.Logger),
		Logging(s.Logger),
	)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("server shutdown error", "error", err)
		}
	}()

	s.Logger.Info("starting webhook server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":    "discontented",
		"contentful": map[string]string{"spaceId": s.SpaceID},
	})
}

// Action extracts the entry action from a topic such as
// ContentManagement.Entry.publish. ok is false for non-entry topics.
func Action(topic string) (action string, ok bool) {
	if !strings.HasPrefix(topic, entryTopic) {
		return "", false
	}
	return strings.TrimPrefix(topic, entryTopic), true
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.Logger.With("request_id", RequestID(ctx))

	topic := r.Header.Get(TopicHeader)
	action, ok := Action(topic)
	if !ok {
		log.Info("ignoring webhook", "topic", topic)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if s.events != nil {
		s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		badRequest(w, "reading body: "+err.Error())
		return
	}
	var entry schema.Entry
	if len(body) == 0 || json.Unmarshal(body, &entry) != nil || entry.Sys.ID == "" {
		badRequest(w, "request body must be an entry")
		return
	}

	log = log.With("entry", entry.Sys.ID, "action", action)
	statements := 0
	switch action {
	case "publish":
		res, err := s.Importer.ImportEntry(ctx, entry, true)
		if err != nil {
			s.fail(w, log, err)
			return
		}
		statements = len(res.Statements)
	case "create", "save", "auto_save":
		res, err := s.Importer.ImportEntry(ctx, entry, false)
		if err != nil {
			s.fail(w, log, err)
			return
		}
		statements = len(res.Statements)
	case "unpublish", "archive", "unarchive":
		res, err := s.Importer.RefreshEntry(ctx, entry.Sys.ID)
		if err != nil {
			s.fail(w, log, err)
			return
		}
		statements = len(res.Statements)
	case "delete":
		if err := s.Importer.Delete(ctx, entry); err != nil {
			s.fail(w, log, err)
			return
		}
	default:
		log.Info("ignoring webhook action")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	log.Info("webhook applied", "statements", statements)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "statements": statements})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.Logger.With("request_id", RequestID(ctx))

	var u push.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&u); err != nil {
		badRequest(w, "invalid push request: "+err.Error())
		return
	}
	if u.TableName == "" || u.Cfid == "" {
		badRequest(w, "tableName and cfid are required")
		return
	}

	updated, err := s.Pusher.Push(ctx, u)
	if err != nil {
		s.fail(w, log.With("table", u.TableName, "cfid", u.Cfid), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "version": updated.Sys.Version})
}

func (s *Server) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	log.Error("request failed", "error", err)
	writeFault(w, err.Error())
}
