// File: internal/infra/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/infra/logging"
	"journal-ai-coach/internal/infra/queue"
	"journal-ai-coach/internal/infra/security"
	"journal-ai-coach/internal/infra/worker"
	"journal-ai-coach/internal/usecase"
)

const requestTimeout = 15 * time.Second

// Server exposes the pipeline over HTTP. Submission always returns
// immediately; the worker pool gets a best-effort immediate attempt and the
// periodic claimer is the safety net.
type Server struct {
	chat     usecase.ChatUseCase
	pending  usecase.PendingUseCase
	jobs     usecase.JobUseCase
	notif    usecase.NotificationUseCase
	verifier *security.JWTVerifier
	callback *queue.CallbackVerifier
	pool     *worker.Pool
	log      *zerolog.Logger
}

func NewServer(
	chat usecase.ChatUseCase,
	pending usecase.PendingUseCase,
	jobs usecase.JobUseCase,
	notif usecase.NotificationUseCase,
	verifier *security.JWTVerifier,
	callback *queue.CallbackVerifier,
	pool *worker.Pool,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		chat: chat, pending: pending, jobs: jobs, notif: notif,
		verifier: verifier, callback: callback, pool: pool, log: &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The queue authenticates with its callback signature, not a user
		// token. The callback runs generation inline, so it stays outside
		// the request timeout; the generator enforces its own.
		r.Post("/queue/callback", s.handleQueueCallback)

		r.Group(func(r chi.Router) {
			r.Use(Auth(s.verifier))

			// The stream holds its connection open for the whole
			// generation; everything else is a short store read/write.
			r.Get("/conversations/{id}/stream", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(Timeout(requestTimeout))

				r.Post("/conversations", s.handleStartConversation)
				r.Get("/conversations", s.handleListConversations)
				r.Get("/conversations/{id}", s.handleGetConversation)
				r.Post("/conversations/{id}/messages", s.handleSubmitMessage)
				r.Get("/messages/{id}", s.handleGetMessage)

				r.Post("/jobs", s.handleCreateJob)
				r.Get("/jobs/{id}", s.handleGetJob)
				r.Post("/jobs/{id}/detach", s.handleDetachJob)

				r.Post("/push/subscriptions", s.handleRegisterPush)
				r.Delete("/push/subscriptions", s.handleUnregisterPush)
			})
		})
	})
	return r
}

// ---- conversations & messages ----

type startConversationRequest struct {
	Title   string `json:"title"`
	Seed    string `json:"seed"`
	Message string `json:"message"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	conv, pendingID, err := s.chat.StartConversation(r.Context(), logging.UserID(r.Context()), req.Title, req.Seed, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.kick(pendingID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"conversation_id":    conv.ID,
		"pending_message_id": pendingID,
	})
}

type submitMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	convID := chi.URLParam(r, "id")
	pendingID, err := s.chat.SubmitMessage(r.Context(), logging.UserID(r.Context()), convID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.kick(pendingID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"conversation_id":    convID,
		"pending_message_id": pendingID,
	})
}

// kick schedules an immediate processing attempt. Saturation is fine; the
// periodic claimer will pick the message up.
func (s *Server) kick(pendingID string) {
	if s.pool == nil || pendingID == "" {
		return
	}
	if err := s.pool.Submit(func(ctx context.Context) error {
		return s.pending.ProcessMessage(ctx, pendingID, nil)
	}); err != nil {
		s.log.Debug().Err(err).Str("message_id", pendingID).Msg("immediate attempt not scheduled")
	}
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.chat.GetMessage(r.Context(), logging.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse(m))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.GetConversation(r.Context(), logging.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msgs := make([]map[string]any, 0, len(conv.Messages))
	for i := range conv.Messages {
		msgs = append(msgs, messageResponse(&conv.Messages[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         conv.ID,
		"title":      conv.Title,
		"created_at": conv.CreatedAt,
		"updated_at": conv.UpdatedAt,
		"messages":   msgs,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chat.ListConversations(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(convs))
	for _, c := range convs {
		out = append(out, map[string]any{
			"id": c.ID, "title": c.Title,
			"created_at": c.CreatedAt, "updated_at": c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func messageResponse(m *model.Message) map[string]any {
	return map[string]any{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"role":            m.Role,
		"content":         m.Content,
		"status":          m.Status,
		"created_at":      m.CreatedAt,
		"updated_at":      m.UpdatedAt,
	}
}

// ---- SSE streaming ----

// handleStream streams the reply for a pending message over SSE. When this
// connection wins the claim it relays live model chunks; when another worker
// already owns the message it falls back to polling until terminal.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := logging.UserID(ctx)
	convID := chi.URLParam(r, "id")
	messageID := r.URL.Query().Get("message_id")
	if messageID == "" {
		http.Error(w, "message_id is required", http.StatusBadRequest)
		return
	}

	m, err := s.chat.GetMessage(ctx, userID, messageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if m.ConversationID != convID {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	if !m.Terminal() {
		err := s.pending.ProcessMessage(ctx, messageID, func(chunk string) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sendSSE(w, flusher, "chunk", map[string]string{"content": chunk})
			return nil
		})
		if err != nil {
			s.log.Warn().Err(err).Str("message_id", messageID).Msg("stream processing")
		}
	}

	final, err := s.waitTerminal(ctx, userID, messageID)
	if err != nil {
		sendSSE(w, flusher, "error", map[string]string{"message": "reply unavailable"})
		return
	}
	sendSSE(w, flusher, "done", messageResponse(final))
}

// waitTerminal polls until the message reaches a terminal state. Covers the
// claim-lost path where some other worker is generating right now.
func (s *Server) waitTerminal(ctx context.Context, userID, messageID string) (*model.Message, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		m, err := s.chat.GetMessage(ctx, userID, messageID)
		if err != nil {
			return nil, err
		}
		if m.Terminal() {
			return m, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	flusher.Flush()
}

// ---- jobs ----

type createJobRequest struct {
	Kind            string `json:"kind"`
	RelatedEntityID string `json:"related_entity_id"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	job, err := s.jobs.CreateJob(r.Context(), logging.UserID(r.Context()), model.JobKind(req.Kind), req.RelatedEntityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"job_id":           job.ID,
		"queue_message_id": job.QueueMessageID,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), logging.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"buffer":     job.Buffer,
		"error":      job.LastError,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	})
}

func (s *Server) handleDetachJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Detach(r.Context(), logging.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- queue callback ----

type queueCallbackRequest struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleQueueCallback(w http.ResponseWriter, r *http.Request) {
	if err := s.callback.Verify(r.Header.Get("X-Queue-Signature")); err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req queueCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.jobs.HandleCallback(r.Context(), req.JobID)
	switch {
	case err == nil:
		// 2xx stops queue retries; terminal re-deliveries land here too.
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "unknown job", http.StatusNotFound)
	default:
		// Non-2xx asks the queue to redeliver later.
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}

// ---- push subscriptions ----

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

func (s *Server) handleRegisterPush(w http.ResponseWriter, r *http.Request) {
	var req pushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sub, err := s.notif.RegisterSubscription(r.Context(), logging.UserID(r.Context()), req.Endpoint, req.P256dh, req.Auth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": sub.ID})
}

func (s *Server) handleUnregisterPush(w http.ResponseWriter, r *http.Request) {
	var req pushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.notif.UnregisterSubscription(r.Context(), logging.UserID(r.Context()), req.Endpoint); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
