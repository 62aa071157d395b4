// Package server exposes the classification pipeline over a NATS
// request/reply subject. The protocol is strict rendezvous: one request is
// processed end to end before the next is picked up, and every request
// gets exactly one reply, even when handling fails internally.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/magicfolder/brain/pipeline"
)

// DefaultSubject is the endpoint the server binds by default.
const DefaultSubject = "brain.classify"

// Server owns the classification endpoint for its lifetime.
type Server struct {
	nc      *nats.Conn
	subject string
	pipe    *pipeline.Pipeline
	logger  *slog.Logger
	sub     *nats.Subscription
}

// New creates a server over an established NATS connection.
func New(nc *nats.Conn, subject string, pipe *pipeline.Pipeline, logger *slog.Logger) *Server {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		nc:      nc,
		subject: subject,
		pipe:    pipe,
		logger:  logger,
	}
}

// Start subscribes to the endpoint. NATS dispatches messages to a single
// subscription callback serially, which gives the one-request-in-flight
// rendezvous the protocol requires without extra locking.
func (s *Server) Start() error {
	sub, err := s.nc.Subscribe(s.subject, s.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub

	s.logger.Info("classification server listening", slog.String("subject", s.subject))
	return nil
}

// Stop drains the subscription, letting an in-flight request finish and
// reply before the endpoint is released.
func (s *Server) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Server) handle(msg *nats.Msg) {
	reply := s.HandleRequest(context.Background(), msg.Data)
	if err := msg.Respond(reply); err != nil {
		// The caller may have disconnected while we were processing; the
		// work is already done, so the failed send is only logged.
		s.logger.Debug("reply send failed", slog.String("error", err.Error()))
	}
}

// HandleRequest processes one raw request and always returns a reply
// payload. Any internal panic is converted into a best-effort error reply
// so a single bad request can never take the server down.
func (s *Server) HandleRequest(ctx context.Context, data []byte) (reply []byte) {
	requestID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request handling panicked",
				slog.String("request_id", requestID),
				slog.Any("panic", r))
			requestsTotal.WithLabelValues("panic").Inc()
			reply = errorReply("internal error")
		}
	}()

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("malformed request",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		requestsTotal.WithLabelValues("protocol_error").Inc()
		return errorReply("invalid request: " + err.Error())
	}

	paths := req.Paths()
	if len(paths) == 0 {
		requestsTotal.WithLabelValues("protocol_error").Inc()
		return errorReply(errNoPath)
	}

	s.logger.Info("classification request",
		slog.String("request_id", requestID),
		slog.Int("files", len(paths)))

	results := s.pipe.Process(ctx, paths)

	out, err := json.Marshal(toResponse(results))
	if err != nil {
		// Response values are plain strings; this should be unreachable.
		s.logger.Error("marshal response failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		requestsTotal.WithLabelValues("panic").Inc()
		return errorReply("internal error")
	}

	s.logger.Info("classification reply",
		slog.String("request_id", requestID),
		slog.Int("results", len(results)))
	requestsTotal.WithLabelValues("ok").Inc()
	return out
}

func errorReply(message string) []byte {
	out, err := json.Marshal(Response{Error: message})
	if err != nil {
		return []byte(`{"error": "internal error"}`)
	}
	return out
}
