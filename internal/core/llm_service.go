package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/khroma-labs/khroma/internal/config"
)

const (
	titleSystemInstruction = "You are an expert assistant that creates short, concise titles for chat conversations. " +
		"Return ONLY the title, with no quotes or extra text, and keep it super short (maximum 5 words)."

	analystSystemInstructionTemplate = "You are an expert data scientist assistant that writes python code to answer questions about a dataset. " +
		"The dataset has been pre-loaded into a pandas DataFrame called `df`. Do NOT try to load the data from a file. " +
		"The dataset has the following columns: %s. " +
		"Use the provided columns for analysis, never output more than one graph per response, keep graphs readable " +
		"(limit displayed values to a reasonable amount), and never generate HTML output. " +
		"Always return the python code in a single unique code block."

	noHeadersPlaceholder = "[NO HEADERS PROVIDED]"
)

// LLMService wraps the Gemini client behind the three call shapes the rest
// of the service needs: blocking completion, streaming chat, and query
// embeddings. The client is stateless and shared across concurrent turns.
type LLMService struct {
	client *genai.Client
	logger *zap.Logger
}

func NewLLMService(logger *zap.Logger) (*LLMService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client, logger: logger}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

// Complete issues one blocking generation call and returns the concatenated
// text of the first candidate.
func (s *LLMService) Complete(ctx context.Context, model, prompt string) (string, error) {
	m := s.client.GenerativeModel(model)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	text := candidateText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// Embed returns the embedding vector for text.
func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(config.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// GenerateTitle produces a short conversation title from the first user
// question.
func (s *LLMService) GenerateTitle(ctx context.Context, userQuestion string) (string, error) {
	m := s.client.GenerativeModel(config.TitleModel)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(titleSystemInstruction)},
	}

	temp := float32(0.3)
	maxTokens := int32(20)
	m.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	prompt := fmt.Sprintf("Create a title for a conversation that starts with: %q", userQuestion)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini title generation request failed: %w", err)
	}
	title := strings.Trim(candidateText(resp), "\"'\n\r\t .")
	if title == "" {
		return "", fmt.Errorf("gemini generated an empty title")
	}
	return title, nil
}

// StreamChat streams a chat completion token-by-token. The last entry in
// history must be the current user turn; everything before it is prior
// context. onChunk is called for each text fragment in order; an error from
// onChunk aborts the stream.
func (s *LLMService) StreamChat(ctx context.Context, model string, csvHeaders []string, history []*genai.Content, onChunk func(text string) error) error {
	if len(history) == 0 {
		return fmt.Errorf("prompt history is empty for chat completion")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}

	m := s.client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(analystInstruction(csvHeaders))},
	}

	session := m.StartChat()
	session.History = history[:len(history)-1]

	iter := session.SendMessageStream(ctx, last.Parts...)
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}
		chunk := candidateText(resp)
		if chunk == "" {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
}

func analystInstruction(csvHeaders []string) string {
	headers := noHeadersPlaceholder
	if len(csvHeaders) > 0 {
		headers = strings.Join(csvHeaders, ", ")
	}
	return fmt.Sprintf(analystSystemInstructionTemplate, headers)
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
