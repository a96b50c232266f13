package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	out    string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func TestClassify_ValidIntents(t *testing.T) {
	cases := []struct {
		name string
		out  string
		want Classification
	}{
		{
			name: "semantic search",
			out:  `{"intent": "semantic_search", "parameters": {"query": "Compact Printer Air"}}`,
			want: Classification{Intent: IntentSemanticSearch, Query: "Compact Printer Air"},
		},
		{
			name: "image search",
			out:  `{"intent": "image_search", "parameters": {"query": "red and black gaming chair"}}`,
			want: Classification{Intent: IntentImageSearch, Query: "red and black gaming chair"},
		},
		{
			name: "price prediction",
			out:  `{"intent": "price_prediction", "parameters": {"query": "steel version of the Smart Blender"}}`,
			want: Classification{Intent: IntentPricePrediction, Query: "steel version of the Smart Blender"},
		},
		{
			name: "general question with empty query",
			out:  `{"intent": "general_question", "parameters": {"query": ""}}`,
			want: Classification{Intent: IntentGeneralQuestion},
		},
		{
			name: "surrounding whitespace tolerated",
			out:  "  {\"intent\": \"semantic_search\", \"parameters\": {\"query\": \"lamp\"}}\n",
			want: Classification{Intent: IntentSemanticSearch, Query: "lamp"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClassifier(&fakeCompleter{out: tc.out}, "router-model", zap.NewNop())
			got, err := c.Classify(context.Background(), "some question")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify_UnrecognizedIntentDefaultsToGeneral(t *testing.T) {
	c := NewClassifier(&fakeCompleter{
		out: `{"intent": "order_pizza", "parameters": {"query": "pepperoni"}}`,
	}, "router-model", zap.NewNop())

	got, err := c.Classify(context.Background(), "order me a pizza")
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralQuestion, got.Intent)
}

func TestClassify_MalformedOutput(t *testing.T) {
	cases := []struct {
		name string
		out  string
	}{
		{"not json", "I think the user wants a semantic search."},
		{"missing intent field", `{"parameters": {"query": "lamp"}}`},
		{"empty tool query", `{"intent": "semantic_search", "parameters": {"query": "  "}}`},
		{"empty output", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClassifier(&fakeCompleter{out: tc.out}, "router-model", zap.NewNop())
			_, err := c.Classify(context.Background(), "question")
			require.Error(t, err)
			assert.True(t, IsMalformedClassification(err))

			var mce *MalformedClassificationError
			require.ErrorAs(t, err, &mce)
			assert.Equal(t, tc.out, mce.Raw)
		})
	}
}

func TestClassify_ModelFailureIsNotMalformed(t *testing.T) {
	c := NewClassifier(&fakeCompleter{err: errors.New("upstream timeout")}, "router-model", zap.NewNop())
	_, err := c.Classify(context.Background(), "question")
	require.Error(t, err)
	assert.False(t, IsMalformedClassification(err))
}

func TestClassify_PromptContainsOnlyCurrentTurn(t *testing.T) {
	fake := &fakeCompleter{out: `{"intent": "general_question", "parameters": {"query": ""}}`}
	c := NewClassifier(fake, "router-model", zap.NewNop())

	_, err := c.Classify(context.Background(), "what is pandas?")
	require.NoError(t, err)
	assert.Contains(t, fake.prompt, `"what is pandas?"`)
}
