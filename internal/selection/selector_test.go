package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxdesk/internal/llm/llmtest"
	"github.com/hyperjump/taxdesk/internal/models"
)

func templates() []models.Template {
	return []models.Template{
		{ID: 1, Title: "Vollmacht", Placeholders: []models.Placeholder{{Name: "a"}}},
		{ID: 2, Title: "Einspruch", Description: "Einspruch gegen Steuerbescheid", Placeholders: []models.Placeholder{{Name: "a"}, {Name: "b"}, {Name: "c"}}},
		{ID: 3, Title: "Fristverlängerung", Placeholders: []models.Placeholder{{Name: "x"}, {Name: "y"}, {Name: "z"}}},
	}
}

func TestSelect_noTemplates(t *testing.T) {
	sel := New(&llmtest.Fake{}, 0, 0, nil).Select(context.Background(), Request{Text: "x", AIAvailable: true})
	assert.Nil(t, sel.Template)
	assert.Equal(t, 0.0, sel.Confidence)
	assert.Equal(t, "no templates available", sel.Reason)
}

func TestSelect_singleTemplate(t *testing.T) {
	fake := &llmtest.Fake{}
	for _, text := range []string{"", "anything", "Steuerbescheid 2024"} {
		sel := New(fake, 0, 0, nil).Select(context.Background(), Request{Text: text, Templates: templates()[:1], AIAvailable: true})
		require.NotNil(t, sel.Template)
		assert.Equal(t, int64(1), sel.Template.ID)
		assert.Equal(t, 1.0, sel.Confidence)
		assert.Equal(t, "only option", sel.Reason)
	}
	assert.Empty(t, fake.Calls())
}

func TestSelect_AI(t *testing.T) {
	fake := &llmtest.Fake{Responses: []string{`<think>...</think>{"selected_template_index": 0, "confidence": 0.9, "reasoning": "Vollmacht erkannt", "matching_fields": ["a"]}`}}
	sel := New(fake, 0, 0, nil).Select(context.Background(), Request{
		Text: "Hiermit bevollmächtige ich", Hints: []string{"Vollmacht"}, Templates: templates(), AIAvailable: true,
	})
	require.NotNil(t, sel.Template)
	assert.Equal(t, int64(1), sel.Template.ID)
	assert.Equal(t, 0.9, sel.Confidence)
	assert.Equal(t, MethodAI, sel.Method)
	assert.Equal(t, []string{"a"}, sel.MatchingFields)

	prompt := fake.Calls()[0].Prompt
	assert.Contains(t, prompt, "DOCUMENT TYPE HINTS: Vollmacht")
	assert.Contains(t, prompt, "Keine Beschreibung")
	assert.Contains(t, prompt, `"placeholder_count": 3`)
}

func TestSelect_fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		fake     *llmtest.Fake
		aiAvail  bool
		wantID   int64
		wantConf float64
	}{
		{"ai unavailable", &llmtest.Fake{Down: true}, false, 2, 0.5},
		{"index out of range", &llmtest.Fake{Responses: []string{`{"selected_template_index": 5, "confidence": 0.9}`}}, true, 2, 0.5},
		{"negative index", &llmtest.Fake{Responses: []string{`{"selected_template_index": -1}`}}, true, 2, 0.5},
		{"missing index", &llmtest.Fake{Responses: []string{`{"confidence": 0.9}`}}, true, 2, 0.5},
		{"unparseable", &llmtest.Fake{Responses: []string{"Template two looks best"}}, true, 2, 0.5},
		{"generate error", &llmtest.Fake{Down: true}, true, 2, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := New(tt.fake, 0, 0, nil).Select(context.Background(), Request{Text: "x", Templates: templates(), AIAvailable: tt.aiAvail})
			require.NotNil(t, sel.Template)
			assert.Equal(t, tt.wantID, sel.Template.ID)
			assert.Equal(t, tt.wantConf, sel.Confidence)
			assert.Equal(t, MethodFallback, sel.Method)
		})
	}
}

func TestSelect_AIWithoutConfidence(t *testing.T) {
	fake := &llmtest.Fake{Responses: []string{`{"selected_template_index": 2}`}}
	sel := New(fake, 0, 0, nil).Select(context.Background(), Request{Text: "x", Templates: templates(), AIAvailable: true})
	assert.Equal(t, int64(3), sel.Template.ID)
	assert.Equal(t, 0.5, sel.Confidence)
	assert.Equal(t, "AI selection", sel.Reason)
}

func TestFallback_tieKeepsFirst(t *testing.T) {
	sel := Fallback(templates())
	assert.Equal(t, int64(2), sel.Template.ID)
	assert.Nil(t, Fallback(nil).Template)
}
