package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Intent is the classified purpose of a turn.
type Intent string

const (
	IntentSemanticSearch  Intent = "semantic_search"
	IntentImageSearch     Intent = "image_search"
	IntentPricePrediction Intent = "price_prediction"
	IntentGeneralQuestion Intent = "general_question"
)

// Classification is the ephemeral result of routing one turn. It is never
// persisted; the dispatcher derives messages from it and persists those.
type Classification struct {
	Intent Intent
	Query  string
}

const routerPromptTemplate = `You are an intelligent routing agent. Your purpose is to analyze a user's question about a product catalog and determine the best tool to answer it.

Based on the user's question, you must classify the intent and extract any relevant parameters.

The available intents are:
- "semantic_search": Use this when the user is asking to find items that are similar in meaning to a given product name or description. For example: "Find products similar to the 'Compact Printer Air'".
- "image_search": Use this when the user is asking to find items based on a visual description. For example: "Show me items that look like a 'red and black gaming chair'".
- "price_prediction": Use this when the user asks for a price prediction based on new or modified product specifications. For example: "What would be the price of a 'Smart Blender' but with a steel finish?".
- "general_question": Use this for any other question that does not fit the above categories, such as asking for python code, general data analysis, or a simple greeting.

You must return a single JSON object with the following structure:
{
  "intent": "...",
  "parameters": {
    "query": "..."
  }
}

The "query" in the parameters object should be the core subject of the user's question.

User's question: %q

Return ONLY the JSON object. Do not include any other text or explanations.`

// completer is the blocking language-model call the classifier needs.
type completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Classifier routes a single turn to one of the four intents with exactly
// one blocking language-model call. It is stateless between turns: only the
// current turn's text is considered, never conversation history.
type Classifier struct {
	llm    completer
	model  string
	logger *zap.Logger
}

func NewClassifier(llm completer, model string, logger *zap.Logger) *Classifier {
	return &Classifier{llm: llm, model: model, logger: logger}
}

type rawClassification struct {
	Intent     *string `json:"intent"`
	Parameters struct {
		Query string `json:"query"`
	} `json:"parameters"`
}

func (c *Classifier) Classify(ctx context.Context, userText string) (Classification, error) {
	prompt := fmt.Sprintf(routerPromptTemplate, userText)

	out, err := c.llm.Complete(ctx, c.model, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("router model call failed: %w", err)
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &raw); err != nil {
		return Classification{}, &MalformedClassificationError{Raw: out, Err: err}
	}
	if raw.Intent == nil {
		return Classification{}, &MalformedClassificationError{Raw: out, Err: fmt.Errorf("missing intent field")}
	}

	cls := Classification{Intent: Intent(*raw.Intent), Query: raw.Parameters.Query}
	switch cls.Intent {
	case IntentSemanticSearch, IntentImageSearch, IntentPricePrediction:
		if strings.TrimSpace(cls.Query) == "" {
			return Classification{}, &MalformedClassificationError{
				Raw: out,
				Err: fmt.Errorf("intent %q requires a non-empty query", cls.Intent),
			}
		}
	case IntentGeneralQuestion:
	default:
		// Any unrecognized intent falls through to the default path.
		c.logger.Warn("unrecognized intent, defaulting to general_question",
			zap.String("intent", string(cls.Intent)))
		cls.Intent = IntentGeneralQuestion
	}
	return cls, nil
}
