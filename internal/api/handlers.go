package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/khroma-labs/khroma/internal/core"
	"github.com/khroma-labs/khroma/internal/store"
)

// autoErrorResolvedHeader flags a turn as an automatic resubmission after a
// failed one; such turns bypass the rate limit.
const autoErrorResolvedHeader = "X-Auto-Error-Resolved"

// questionSuggester is the blocking completion call backing POST /api/questions.
type questionSuggester interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

type APIHandler struct {
	chatService *core.ChatService
	store       *store.Store
	llm         questionSuggester
	logger      *zap.Logger
}

func NewAPIHandler(cs *core.ChatService, st *store.Store, llm questionSuggester, logger *zap.Logger) *APIHandler {
	return &APIHandler{chatService: cs, store: st, llm: llm, logger: logger}
}

type CreateChatRequest struct {
	Question   string   `json:"question"`
	FileName   string   `json:"file_name"`
	CSVHeaders []string `json:"csv_headers"`
}

type CreateChatResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	id, title := h.store.Create(r.Context(), req.Question, req.FileName, req.CSVHeaders)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateChatResponse{ID: id, Title: title})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []store.ConversationSummary{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

type GetChatDetailsResponse struct {
	ID string `json:"id"`
	*store.Conversation
}

func (h *APIHandler) GetChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	conv := h.store.Load(r.Context(), chatID)
	if conv == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetChatDetailsResponse{ID: conv.ID, Conversation: conv})
}

type PostMessageRequest struct {
	Content    string   `json:"content"`
	Model      string   `json:"model,omitempty"`
	FileName   string   `json:"file_name,omitempty"`
	CSVHeaders []string `json:"csv_headers,omitempty"`
}

// PostMessageHandler runs one turn and streams the answer back as plain
// text. Tool-backed intents arrive as a single flush; the general question
// path arrives token-by-token.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	turn := core.TurnRequest{
		ConversationID:    chatID,
		Content:           req.Content,
		ModelSlug:         req.Model,
		AutoErrorResolved: r.Header.Get(autoErrorResolvedHeader) == "true",
		CallerID:          callerID(r),
		FileName:          req.FileName,
		CSVHeaders:        req.CSVHeaders,
	}

	sink := newStreamSink(w)
	err := h.chatService.HandleTurn(r.Context(), turn, sink)
	if err == nil {
		return
	}
	if sink.wrote {
		// The stream already started; the status line is gone. All we can
		// do is log and close the connection.
		h.logger.Error("turn failed after streaming began",
			zap.String("chatID", chatID), zap.Error(err))
		return
	}

	switch {
	case errors.Is(err, core.ErrQuotaExceeded):
		http.Error(w, "Too many messages. Daily limit reached.", http.StatusTooManyRequests)
	case core.IsMalformedClassification(err):
		h.logger.Error("classification output unparseable",
			zap.String("chatID", chatID), zap.Error(err))
		http.Error(w, "Error: Could not parse the router's response.", http.StatusInternalServerError)
	default:
		h.logger.Error("failed to generate response",
			zap.String("chatID", chatID), zap.Error(err))
		http.Error(w, "Error generating response", http.StatusInternalServerError)
	}
}

type SuggestQuestionsRequest struct {
	CSVHeaders []string `json:"csv_headers"`
}

func (h *APIHandler) SuggestQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req SuggestQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.CSVHeaders) == 0 {
		http.Error(w, "csv_headers are required", http.StatusBadRequest)
		return
	}

	questions, err := core.SuggestQuestions(r.Context(), h.llm, req.CSVHeaders)
	if err != nil {
		h.logger.Error("failed to suggest questions", zap.Error(err))
		http.Error(w, "Failed to generate questions", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(questions)
}

// streamSink writes response chunks straight to the client, flushing after
// each one so tokens arrive as they are generated.
type streamSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

func newStreamSink(w http.ResponseWriter) *streamSink {
	flusher, _ := w.(http.Flusher)
	return &streamSink{w: w, flusher: flusher}
}

func (s *streamSink) WriteChunk(text string) error {
	if !s.wrote {
		s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.wrote = true
	}
	if _, err := s.w.Write([]byte(text)); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// callerID is the network identity used for rate limiting: the first hop in
// X-Forwarded-For when present, otherwise the remote address.
func callerID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
