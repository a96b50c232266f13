package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khroma-labs/khroma/internal/config"
	"github.com/khroma-labs/khroma/internal/pricing"
	"github.com/khroma-labs/khroma/internal/store"
	"github.com/khroma-labs/khroma/internal/vectorindex"
)

const searchTopK = 3

const priceModelUnavailableMessage = "The price prediction model is not available. Please contact an administrator."

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	ConversationID string
	Content        string
	ModelSlug      string
	// AutoErrorResolved marks an automatic resubmission after a failed turn.
	// Such turns skip the rate limit so error-repair loops cannot wedge.
	AutoErrorResolved bool
	CallerID          string

	// Fallback metadata used when the conversation record does not exist yet.
	FileName   string
	CSVHeaders []string
}

// TurnSink receives the response stream for one turn. Tool-backed paths
// deliver a single chunk; the general path delivers one chunk per token
// batch.
type TurnSink interface {
	WriteChunk(text string) error
}

// Capability interfaces consumed by the dispatcher. Production wiring uses
// LLMService, vectorindex.Client, pricing.Client and ratelimit.DailyLimiter.
type (
	intentClassifier interface {
		Classify(ctx context.Context, userText string) (Classification, error)
	}
	embedder interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}
	vectorSearcher interface {
		Query(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error)
	}
	pricePredictor interface {
		Predict(ctx context.Context, description string) (float64, error)
	}
	chatStreamer interface {
		StreamChat(ctx context.Context, model string, csvHeaders []string, history []*genai.Content, onChunk func(text string) error) error
	}
	limiter interface {
		Allow(callerID string) error
	}
)

// ChatService is the per-turn orchestrator: it admits the turn, records the
// user message, classifies intent, dispatches to exactly one of the four
// paths, streams the answer and records the assistant message. One turn is
// handled by one task; concurrency exists only across turns.
type ChatService struct {
	store      *store.Store
	classifier intentClassifier
	embedder   embedder
	index      vectorSearcher
	predictor  pricePredictor
	streamer   chatStreamer
	limiter    limiter
	logger     *zap.Logger
}

func NewChatService(
	st *store.Store,
	classifier intentClassifier,
	emb embedder,
	index vectorSearcher,
	predictor pricePredictor,
	streamer chatStreamer,
	lim limiter,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		store:      st,
		classifier: classifier,
		embedder:   emb,
		index:      index,
		predictor:  predictor,
		streamer:   streamer,
		limiter:    lim,
		logger:     logger,
	}
}

// HandleTurn processes one turn end to end. The order is fixed: rate limit,
// user-message persistence, classification, dispatch, assistant-message
// persistence. A returned error means the turn failed and no assistant
// message was persisted for it.
func (s *ChatService) HandleTurn(ctx context.Context, req TurnRequest, sink TurnSink) error {
	if !req.AutoErrorResolved {
		if err := s.limiter.Allow(req.CallerID); err != nil {
			return err
		}
	}

	conv := s.store.Load(ctx, req.ConversationID)

	userMsg := store.Message{
		ID:                    uuid.NewString(),
		Role:                  store.RoleUser,
		Content:               req.Content,
		CreatedAt:             time.Now(),
		IsAutoErrorResolution: req.AutoErrorResolved,
	}
	s.store.AppendMessage(ctx, req.ConversationID, userMsg, &store.FallbackMetadata{
		FileName:   req.FileName,
		CSVHeaders: req.CSVHeaders,
	})

	cls, err := s.classifier.Classify(ctx, req.Content)
	if err != nil {
		return err
	}

	switch cls.Intent {
	case IntentSemanticSearch, IntentImageSearch:
		// Visual lookups ride the same text-embedding pipeline as semantic
		// search; there is no separate image-modality path.
		return s.runSearch(ctx, req, cls.Query, sink)
	case IntentPricePrediction:
		return s.runPricePrediction(ctx, req, cls.Query, sink)
	default:
		return s.runGeneralQuestion(ctx, req, conv, userMsg, sink)
	}
}

func (s *ChatService) runSearch(ctx context.Context, req TurnRequest, query string, sink TurnSink) error {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed search query: %w", err)
	}
	matches, err := s.index.Query(ctx, vector, searchTopK)
	if err != nil {
		return fmt.Errorf("failed to query vector index: %w", err)
	}

	text := RenderMatches(matches)
	s.persistAssistant(ctx, req, text, "", 0)
	return sink.WriteChunk(text)
}

func (s *ChatService) runPricePrediction(ctx context.Context, req TurnRequest, query string, sink TurnSink) error {
	var text string
	price, err := s.predictor.Predict(ctx, query)
	switch {
	case errors.Is(err, pricing.ErrModelNotFound):
		s.logger.Warn("price prediction model unavailable, degrading",
			zap.String("conversationID", req.ConversationID))
		text = priceModelUnavailableMessage
	case err != nil:
		return fmt.Errorf("failed to predict price: %w", err)
	default:
		text = fmt.Sprintf("Based on the provided specifications, the predicted price is around $%d.", int(math.Round(price)))
	}

	s.persistAssistant(ctx, req, text, "", 0)
	return sink.WriteChunk(text)
}

func (s *ChatService) runGeneralQuestion(ctx context.Context, req TurnRequest, conv *store.Conversation, userMsg store.Message, sink TurnSink) error {
	model := config.ResolveModel(req.ModelSlug)

	csvHeaders := req.CSVHeaders
	var prior []store.Message
	if conv != nil {
		prior = conv.Messages
		if len(conv.CSVHeaders) > 0 {
			csvHeaders = conv.CSVHeaders
		}
	}

	history := make([]*genai.Content, 0, len(prior)+1)
	for _, msg := range prior {
		history = append(history, &genai.Content{
			Role:  genaiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	history = append(history, &genai.Content{
		Role:  "user",
		Parts: []genai.Part{genai.Text(userMsg.Content)},
	})

	start := time.Now()
	var assembled []byte
	err := s.streamer.StreamChat(ctx, model, csvHeaders, history, func(text string) error {
		assembled = append(assembled, text...)
		return sink.WriteChunk(text)
	})
	if err != nil {
		return fmt.Errorf("failed to stream generation: %w", err)
	}

	// Persisted only after the caller has the full stream: a crash in
	// between loses this one assistant turn without the caller noticing.
	s.persistAssistant(ctx, req, string(assembled), model, time.Since(start).Seconds())
	return nil
}

func (s *ChatService) persistAssistant(ctx context.Context, req TurnRequest, content, model string, duration float64) {
	s.store.AppendMessage(ctx, req.ConversationID, store.Message{
		ID:                    uuid.NewString(),
		Role:                  store.RoleAssistant,
		Content:               content,
		CreatedAt:             time.Now(),
		Duration:              duration,
		Model:                 model,
		IsAutoErrorResolution: req.AutoErrorResolved,
	}, &store.FallbackMetadata{
		FileName:   req.FileName,
		CSVHeaders: req.CSVHeaders,
	})
}

func genaiRole(role string) string {
	if role == store.RoleAssistant {
		return "model"
	}
	return "user"
}
