package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khroma-labs/khroma/internal/config"
)

const questionsPromptTemplate = `You are an AI assistant that generates questions for data analysis.

Given the CSV columns: %s

Generate exactly 3 insightful questions that can be asked to analyze this data. Focus on questions that would reveal trends, comparisons, or insights.

Each question should be:
- Direct and concise
- Short enough to fit in a single row
- Without phrases like "in the dataset", "from the data", or "in the CSV file"

Return ONLY a JSON array of objects, each with "id" (unique string) and "text" (the question string). Do not include any other text, explanations, or the JSON schema.

Example format:
[{"id": "q1", "text": "What is the average price by category?"}, {"id": "q2", "text": "How many items sold per month?"}]

Do not wrap the array in any additional object or key like "elements". Return the array directly.`

// Question is one suggested starter question for an uploaded catalog.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SuggestQuestions asks the language model for three starter questions based
// on the catalog's column names. Models occasionally fence the array in a
// markdown code block, so fences are stripped before decoding.
func SuggestQuestions(ctx context.Context, llm completer, csvHeaders []string) ([]Question, error) {
	if len(csvHeaders) == 0 {
		return nil, fmt.Errorf("no csv headers provided")
	}

	prompt := fmt.Sprintf(questionsPromptTemplate, strings.Join(csvHeaders, ", "))
	out, err := llm.Complete(ctx, config.RouterModel, prompt)
	if err != nil {
		return nil, fmt.Errorf("question generation failed: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &questions); err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}
	return questions, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
