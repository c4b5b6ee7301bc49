package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/types"
)

func newTestOpenAiService(t *testing.T, handler http.HandlerFunc) OpenAiService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("AZURE_OPENAI_ENDPOINT", srv.URL+"/")
	t.Setenv("AZURE_OPENAI_API_KEY", "test-key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-test")

	svc, err := NewOpenAiService(logger.NewNop())
	require.NoError(t, err)
	return svc
}

func completionWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ChatCompletionResponse{}
		resp.Choices = []struct {
			Index        int    `json:"index"`
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		}{{}}
		resp.Choices[0].Message.Role = "assistant"
		resp.Choices[0].Message.Content = content
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestNewOpenAiServiceRequiresEndpointAndDeployment(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "")
	_, err := NewOpenAiService(logger.NewNop())
	require.Error(t, err)

	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	_, err = NewOpenAiService(logger.NewNop())
	require.Error(t, err)
}

func TestAskSendsApiKeyAndDeploymentPath(t *testing.T) {
	var gotPath, gotKey string
	svc := newTestOpenAiService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		completionWith("ok")(w, r)
	})

	_, err := svc.Ask(context.Background(), ChatCompletionRequest{
		Messages: []ChatCompletionMessage{{Role: "user", Content: "oi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "/openai/deployments/gpt-test/chat/completions", gotPath)
	assert.Equal(t, "test-key", gotKey)
}

func TestAskErrorsOnNon2xx(t *testing.T) {
	svc := newTestOpenAiService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := svc.Ask(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAskErrorsOnNoChoices(t *testing.T) {
	svc := newTestOpenAiService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{})
	})

	_, err := svc.Ask(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
}

func TestGenerateTitleTrimsAndDefaults(t *testing.T) {
	svc := newTestOpenAiService(t, completionWith("  Vendas do dia  "))
	title, err := svc.GenerateTitle(context.Background(), "Quem vendeu mais hoje?")
	require.NoError(t, err)
	assert.Equal(t, "Vendas do dia", title)

	svc = newTestOpenAiService(t, completionWith("   "))
	title, err = svc.GenerateTitle(context.Background(), "Quem vendeu mais hoje?")
	require.NoError(t, err)
	assert.Equal(t, defaultChatTitle, title)
}

func TestGenerateQueryParsesIntent(t *testing.T) {
	svc := newTestOpenAiService(t, completionWith(
		`{"intent": "total_liters_sold", "mongo_query_pipeline": [{"$match": {"supplyDate": "TODAY"}}, {"$group": {"_id": null, "totalLitros": {"$sum": "$quantity"}}}]}`,
	))

	intent, err := svc.GenerateQuery(context.Background(), "Quantos litros hoje?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentTotalLitersSold, intent.Intent)
	require.Len(t, intent.MongoQueryPipeline, 2)
	match, ok := intent.MongoQueryPipeline[0]["$match"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "TODAY", match["supplyDate"])
}

func TestGenerateQueryDegradesInvalidJSONToErrorIntent(t *testing.T) {
	for _, content := range []string{
		"desculpe, não entendi",
		`{"mongo_query_pipeline": []}`,
		`{"intent": `,
	} {
		svc := newTestOpenAiService(t, completionWith(content))
		intent, err := svc.GenerateQuery(context.Background(), "???", nil)
		require.NoError(t, err, content)
		assert.Equal(t, IntentError, intent.Intent, content)
		assert.Equal(t, invalidModelJSONMessage, intent.Message, content)
	}
}

func TestGenerateQueryPropagatesProviderFailure(t *testing.T) {
	svc := newTestOpenAiService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := svc.GenerateQuery(context.Background(), "Quantos litros hoje?", nil)
	require.Error(t, err)
}

func TestGenerateQuerySendsHistoryBetweenSystemAndUser(t *testing.T) {
	var got ChatCompletionRequest
	svc := newTestOpenAiService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		completionWith(`{"intent": "average_price", "mongo_query_pipeline": [{"$group": {"_id": null}}]}`)(w, r)
	})

	history := []types.ChatMessage{
		{Role: "assistant", Content: "João vendeu mais."},
		{Role: "user", Content: "Quem vendeu mais?"},
	}
	_, err := svc.GenerateQuery(context.Background(), "E a média de preço?", history)
	require.NoError(t, err)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "E a média de preço?", got.Messages[3].Content)
}

func TestHumanizeResponseReturnsProse(t *testing.T) {
	svc := newTestOpenAiService(t, completionWith("João Silva vendeu R$ 15.000,00 hoje."))
	answer := svc.HumanizeResponse(context.Background(), "Quem vendeu mais hoje?",
		[]bson.M{{"_id": "João Silva", "totalSalesValue": 15000.0}}, nil)
	assert.Equal(t, "João Silva vendeu R$ 15.000,00 hoje.", answer)
}

func TestHumanizeResponseFallsBackOnProviderFailure(t *testing.T) {
	svc := newTestOpenAiService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	answer := svc.HumanizeResponse(context.Background(), "Quem vendeu mais?", []bson.M{}, nil)
	assert.Equal(t, humanizeFallbackMessage, answer)
}

func TestHumanizeResponseEmptyContentGetsFixedMessage(t *testing.T) {
	svc := newTestOpenAiService(t, completionWith("  "))
	answer := svc.HumanizeResponse(context.Background(), "Quem vendeu mais?", []bson.M{}, nil)
	assert.Equal(t, emptyAnswerMessage, answer)
}
