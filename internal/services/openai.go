package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/types"
	"github.com/intec-ai/intec-backend/internal/utils"
)

const (
	IntentTopEmployeeSales    = "top_employee_sales"
	IntentTotalLitersSold     = "total_liters_sold"
	IntentAveragePrice        = "average_price"
	IntentTopProductSales     = "top_product_sales"
	IntentClarificationNeeded = "clarification_needed"
	IntentError               = "error"
)

const (
	defaultChatTitle = "Novo Chat"

	invalidModelJSONMessage = "Houve um erro ao processar sua solicitação devido a um JSON inválido da IA. Por favor, tente novamente."
	humanizeFallbackMessage = "Desculpe, não consegui formatar a resposta no momento. Por favor, tente novamente mais tarde."
	emptyAnswerMessage      = "Não foi possível gerar uma resposta."
)

// QueryIntent is the validated shape of the query generator's output:
// either an executable pipeline skeleton or a user-facing message.
type QueryIntent struct {
	Intent             string   `json:"intent"`
	MongoQueryPipeline []bson.M `json:"mongo_query_pipeline,omitempty"`
	Message            string   `json:"message,omitempty"`
}

type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Messages         []ChatCompletionMessage `json:"messages"`
	MaxTokens        int                     `json:"max_tokens,omitempty"`
	Temperature      float64                 `json:"temperature"`
	FrequencyPenalty float64                 `json:"frequency_penalty"`
	PresencePenalty  float64                 `json:"presence_penalty"`
	TopP             float64                 `json:"top_p,omitempty"`
	Stop             []string                `json:"stop,omitempty"`
}

type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
		PromptTokens     int `json:"prompt_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAiService is the gateway to the Azure OpenAI deployment. Three
// call sites: chat title generation, aggregation-query generation and
// result humanization, each with its own prompt and sampling params.
type OpenAiService interface {
	Ask(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
	GenerateTitle(ctx context.Context, content string) (string, error)
	GenerateQuery(ctx context.Context, userMessage string, chatHistory []types.ChatMessage) (QueryIntent, error)
	HumanizeResponse(ctx context.Context, userQuestion string, queryResult []bson.M, chatHistory []types.ChatMessage) string
}

type openAiService struct {
	log            *logger.Logger
	client         *http.Client
	endpoint       string
	apiKey         string
	deploymentName string
}

func NewOpenAiService(log *logger.Logger) (OpenAiService, error) {
	serviceLog := log.With("service", "OpenAiService")
	endpoint := utils.GetEnv("AZURE_OPENAI_ENDPOINT", "", log)
	if endpoint == "" {
		return nil, fmt.Errorf("missing AZURE_OPENAI_ENDPOINT environment variable")
	}
	apiKey := utils.GetEnv("AZURE_OPENAI_API_KEY", "", log)
	if apiKey == "" {
		serviceLog.Warn("AZURE_OPENAI_API_KEY not set; calls might fail or be unauthorized")
	}
	deploymentName := utils.GetEnv("AZURE_OPENAI_DEPLOYMENT", "", log)
	if deploymentName == "" {
		return nil, fmt.Errorf("missing AZURE_OPENAI_DEPLOYMENT environment variable")
	}
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}
	return &openAiService{
		log:            serviceLog,
		client:         httpClient,
		endpoint:       endpoint,
		apiKey:         apiKey,
		deploymentName: deploymentName,
	}, nil
}

func (oa *openAiService) Ask(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	var out ChatCompletionResponse

	reqURL := fmt.Sprintf("%sopenai/deployments/%s/chat/completions?api-version=2024-08-01-preview", oa.endpoint, oa.deploymentName)
	body, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		oa.log.Warn("failed to build chat completion request", "error", err)
		return out, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", oa.apiKey)

	resp, err := oa.client.Do(httpReq)
	if err != nil {
		oa.log.Warn("failed to call Azure OpenAI", "error", err)
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		oa.log.Warn("Azure OpenAI responded with non-2xx", "statusCode", resp.StatusCode, "body", string(bodyBytes))
		return out, fmt.Errorf("azure openai HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		oa.log.Warn("failed to decode Azure OpenAI response body", "error", err)
		return out, err
	}
	if len(out.Choices) == 0 {
		return out, fmt.Errorf("azure openai returned no choices")
	}
	return out, nil
}

// GenerateTitle asks for a short chat title derived from the opening
// user message.
func (oa *openAiService) GenerateTitle(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(`
- Você vai gerar um título curto baseado na primeira mensagem que o usuário inicia uma conversa.
- Certifique-se de que não tem mais de 80 caracteres.
- O título deve ser um resumo da mensagem do usuário.
- Não use aspas ou dois pontos.
- Mensagem do usuário: %q

- Responda em português, e apenas o título sem nenhum outro complemento.
`, content)

	resp, err := oa.Ask(ctx, ChatCompletionRequest{
		Messages: []ChatCompletionMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:        100,
		Temperature:      0.5,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0,
		TopP:             0.95,
	})
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	if title == "" {
		title = defaultChatTitle
	}
	return title, nil
}

// GenerateQuery turns a user question plus conversation context into a
// typed intent with an aggregation-pipeline skeleton. Model output that
// does not parse as the expected JSON becomes a well-formed error
// intent instead of an error return; only provider failures propagate.
func (oa *openAiService) GenerateQuery(ctx context.Context, userMessage string, chatHistory []types.ChatMessage) (QueryIntent, error) {
	messagesToSend := make([]ChatCompletionMessage, 0, len(chatHistory)+2)
	messagesToSend = append(messagesToSend, ChatCompletionMessage{Role: "system", Content: queryGenerationSystemPrompt(userMessage)})
	for _, h := range chatHistory {
		messagesToSend = append(messagesToSend, ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	messagesToSend = append(messagesToSend, ChatCompletionMessage{Role: "user", Content: userMessage})

	resp, err := oa.Ask(ctx, ChatCompletionRequest{
		Messages:         messagesToSend,
		MaxTokens:        700,
		Temperature:      0.1,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		TopP:             0.95,
	})
	if err != nil {
		oa.log.Error("failed to generate aggregation query", "error", err)
		return QueryIntent{}, err
	}

	responseContent := strings.TrimSpace(resp.Choices[0].Message.Content)
	oa.log.Debug("raw query generation response", "content", responseContent)

	var intent QueryIntent
	if err := json.Unmarshal([]byte(responseContent), &intent); err != nil || intent.Intent == "" {
		oa.log.Error("failed to parse model JSON, degrading to error intent", "error", err, "content", responseContent)
		return QueryIntent{
			Intent:  IntentError,
			Message: invalidModelJSONMessage,
		}, nil
	}
	return intent, nil
}

// HumanizeResponse renders an aggregation result as concise Portuguese
// prose. It never fails: once a query result exists the turn must not
// abort over prose, so any model problem yields the fixed fallback.
func (oa *openAiService) HumanizeResponse(ctx context.Context, userQuestion string, queryResult []bson.M, chatHistory []types.ChatMessage) string {
	resultJSON, err := json.Marshal(queryResult)
	if err != nil {
		oa.log.Warn("failed to marshal query result for humanization", "error", err)
		return humanizeFallbackMessage
	}

	messagesToSend := make([]ChatCompletionMessage, 0, len(chatHistory)+3)
	messagesToSend = append(messagesToSend, ChatCompletionMessage{Role: "system", Content: humanizeSystemPrompt(userQuestion, string(resultJSON))})
	for _, h := range chatHistory {
		messagesToSend = append(messagesToSend, ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	messagesToSend = append(messagesToSend,
		ChatCompletionMessage{Role: "user", Content: userQuestion},
		ChatCompletionMessage{Role: "assistant", Content: "Resultado da consulta: " + string(resultJSON)},
	)

	resp, err := oa.Ask(ctx, ChatCompletionRequest{
		Messages:         messagesToSend,
		MaxTokens:        150,
		Temperature:      0.7,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		TopP:             0.95,
	})
	if err != nil {
		oa.log.Error("failed to humanize response", "error", err)
		return humanizeFallbackMessage
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return emptyAnswerMessage
	}
	return answer
}

func queryGenerationSystemPrompt(userMessage string) string {
	return fmt.Sprintf(`
Você é um assistente especializado em gerar queries de agregação do MongoDB para dados de transações de postos de combustível.
Seu objetivo é analisar a pergunta do usuário e o CONTEXTO da conversa (histórico de mensagens) para retornar APENAS um objeto JSON.

**IMPORTANTE: A SAÍDA DEVE SER SEMPRE UM JSON VÁLIDO E PERFEITAMENTE FORMATADO, SEM VÍRGULAS EXTRAS OU ERROS DE SINTAXE.**
**USE APENAS OS PLACEHOLDERS DE DATA SIMPLIFICADOS FORNECIDOS ABAIXO.**

**ESQUEMA DE DADOS DA COLEÇÃO 'transactions':**
{
  "supplyDate": "Date (data e hora do abastecimento, em UTC)",
  "supplyTime": "String (hora do abastecimento)",
  "fiscalDate": "Date (Data Fiscal, em UTC)",
  "fiscalTime": "String (Hora Fiscal)",
  "supplyVsSale": "String (Abast. x Venda)",
  "nozzle": "String (Bico)",
  "coupon": "String (Cupom)",
  "employeeName": "String (Funcionario)",
  "product": "String (Produto)(\"GASOLINA C COMUM\", \"ETANOL HIDRATADO COMUM\", \"GASOLINA ADITIVADA GRID\", \"ETANOL ADITIVADO\", \"GASOLINA PODIUM\")",
  "quantity": "Number (Quantidade em litros)",
  "unitPrice": "Number (Preço unitário)",
  "value": "Number (Valor total da venda)",
  "initialCounter": "Number (Encerrante Inicial)",
  "finalCounter": "Number (Encerrante Final)",
  "calibration": "Boolean (Aferição)",
  "movementDate": "Date (Data Movimento, em UTC)",
  "priceA": "Number (Preço A)",
  "priceB": "Number (Preço B)",
  "priceC": "Number (Preço C)",
  "record": "String (Registro)",
  "substitution": "String (Substituição)"
}

**REGRAS IMPORTANTES para o objeto JSON de resposta:**
- O objeto JSON deve ter as chaves 'intent' e 'mongo_query_pipeline' (ou 'message' se for 'clarification_needed').
- 'intent': Uma string que classifica a intenção do usuário. As intenções suportadas são:
    - 'top_employee_sales': Para perguntas sobre quem vendeu mais (por valor).
    - 'total_liters_sold': Para perguntas sobre a quantidade total de litros vendidos.
    - 'average_price': Para perguntas sobre a média de preço unitário.
    - 'top_product_sales': Para perguntas sobre qual combustível/produto vendeu mais (por quantidade de litros).
    - 'clarification_needed': Se a pergunta for ambígua, incompleta ou requerer mais informações que não podem ser inferidas do contexto.
- 'mongo_query_pipeline': Um array JSON que representa o pipeline de agregação do MongoDB.
  - A coleção é sempre 'transactions'.
  - Use $match, $group, $sort, $limit conforme necessário.
  - Utilize os campos do esquema de dados fornecido (ex: 'employeeName', 'value', 'quantity', 'product', 'supplyDate', 'unitPrice').

**REGRAS ESPECÍFICAS PARA FILTROS DE DATA ('supplyDate'):**
1. Se a pergunta especificar um período, inclua um estágio '$match' no pipeline.
2. **PLACEHOLDERS SIMPLIFICADOS (o backend converterá para UTC):**
   - "TODAY": Para o dia atual (ex: "hoje").
   - "YESTERDAY": Para o dia de ontem (ex: "ontem").
   - "SPECIFIC_DATE_DD/MM/YYYY": Para uma data exata (ex: "14/04/2025" -> "SPECIFIC_DATE_14/04/2025").
   - "MONTH_MM/YYYY": Para um mês específico (ex: "mês 04/2025" -> "MONTH_04/2025").
   - "YEAR_YYYY": Para um ano específico (ex: "ano 2024" -> "YEAR_2024").
3. Se a pergunta sobre um total (litros, vendas, etc.) não especificar data/período, retorne 'clarification_needed'.
4. Se a pergunta sobre um "top" (quem vendeu mais, qual produto mais vendido) não especificar data/período, OMITA o estágio '$match' de data para consultar o total geral.

**REGRAS ESPECÍFICAS PARA FILTROS DE PRODUTO ('product'):**
- Se a pergunta especificar um tipo de combustível/produto (ex: "gasolina", "etanol"), inclua um filtro no estágio '$match' para o campo 'product'. Use um regex para ser mais flexível, ex: '{ "product": { "$regex": "gasolina", "$options": "i" } }' (case-insensitive).
- Lembrando que os produtos são da seguinte variação: "GASOLINA C COMUM", "ETANOL HIDRATADO COMUM", "GASOLINA ADITIVADA GRID", "ETANOL ADITIVADO", "GASOLINA PODIUM".

**Exemplos de Perguntas e Respostas JSON:**

--- TOP EMPLOYEE SALES ---
Pergunta: "Quem vendeu mais?"
Resposta: {"intent": "top_employee_sales", "mongo_query_pipeline": [{ "$group": { "_id": "$employeeName", "totalSalesValue": { "$sum": "$value" } } }, { "$sort": { "totalSalesValue": -1 } }, { "$limit": 1 }]}

Pergunta: "Quem vendeu mais hoje?"
Resposta: {"intent": "top_employee_sales", "mongo_query_pipeline": [{ "$match": { "supplyDate": "TODAY" } }, { "$group": { "_id": "$employeeName", "totalSalesValue": { "$sum": "$value" } } }, { "$sort": { "totalSalesValue": -1 } }, { "$limit": 1 }]}

Pergunta: "Quem vendeu mais no dia 14/04/2025?"
Resposta: {"intent": "top_employee_sales", "mongo_query_pipeline": [{ "$match": { "supplyDate": "SPECIFIC_DATE_14/04/2025" } }, { "$group": { "_id": "$employeeName", "totalSalesValue": { "$sum": "$value" } } }, { "$sort": { "totalSalesValue": -1 } }, { "$limit": 1 }]}

Pergunta: "Qual frentista vendeu mais gasolina em 2024?"
Resposta: {"intent": "top_employee_sales", "mongo_query_pipeline": [{ "$match": { "supplyDate": "YEAR_2024", "product": { "$regex": "gasolina", "$options": "i" } } }, { "$group": { "_id": "$employeeName", "totalSalesValue": { "$sum": "$value" } } }, { "$sort": { "totalSalesValue": -1 } }, { "$limit": 1 }]}

Pergunta: "E do dia 15/04?" (com histórico de "Quem vendeu mais gasolina no dia 14/04/2025?")
Resposta: {"intent": "top_employee_sales", "mongo_query_pipeline": [{ "$match": { "supplyDate": "SPECIFIC_DATE_15/04/2025", "product": { "$regex": "gasolina", "$options": "i" } } }, { "$group": { "_id": "$employeeName", "totalSalesValue": { "$sum": "$value" } } }, { "$sort": { "totalSalesValue": -1 } }, { "$limit": 1 }]}

--- TOTAL LITERS SOLD ---
Pergunta: "Quantos litros foram vendidos?"
Resposta: {"intent": "clarification_needed", "message": "Por favor, especifique a data ou o período para qual você deseja essa informação."}

Pergunta: "Quantos litros de etanol foram vendidos hoje?"
Resposta: {"intent": "total_liters_sold", "mongo_query_pipeline": [{ "$match": { "supplyDate": "TODAY", "product": { "$regex": "etanol", "$options": "i" } } }, { "$group": { "_id": null, "totalLitros": { "$sum": "$quantity" } } }]}

Pergunta: "Quantos litros no mês de maio de 2025?"
Resposta: {"intent": "total_liters_sold", "mongo_query_pipeline": [{ "$match": { "supplyDate": "MONTH_05/2025" } }, { "$group": { "_id": null, "totalLitros": { "$sum": "$quantity" } } }]}

--- AVERAGE PRICE ---
Pergunta: "Qual foi a média de preço?"
Resposta: {"intent": "average_price", "mongo_query_pipeline": [{ "$group": { "_id": null, "averageUnitPrice": { "$avg": "$unitPrice" } } }]}

Pergunta: "Qual a média de preço da gasolina em 2024?"
Resposta: {"intent": "average_price", "mongo_query_pipeline": [{ "$match": { "supplyDate": "YEAR_2024", "product": { "$regex": "gasolina", "$options": "i" } } }, { "$group": { "_id": null, "averageUnitPrice": { "$avg": "$unitPrice" } } }]}

--- TOP PRODUCT SALES ---
Pergunta: "Qual combustível vendeu mais?"
Resposta: {"intent": "top_product_sales", "mongo_query_pipeline": [{ "$group": { "_id": "$product", "totalQuantity": { "$sum": "$quantity" } } }, { "$sort": { "totalQuantity": -1 } }, { "$limit": 1 }]}

Pergunta: "Qual produto vendeu mais no dia 14/04/2025?"
Resposta: {"intent": "top_product_sales", "mongo_query_pipeline": [{ "$match": { "supplyDate": "SPECIFIC_DATE_14/04/2025" } }, { "$group": { "_id": "$product", "totalQuantity": { "$sum": "$quantity" } } }, { "$sort": { "totalQuantity": -1 } }, { "$limit": 1 }]}

Sua resposta para a pergunta do usuário: %q
`, userMessage)
}

func humanizeSystemPrompt(userQuestion, resultJSON string) string {
	return fmt.Sprintf(`
Você é um assistente de IA.
A pergunta original do usuário foi: %q.
O resultado da consulta ao banco de dados foi: %s.
Com base nessas informações e no histórico da conversa, forneça uma resposta clara, concisa e amigável em português para o usuário.
Não adicione introduções como "De acordo com os dados..." ou "A resposta é...". Vá direto ao ponto, humanizando a informação.
Se o resultado for vazio, um array vazio ou indicar que não há dados relevantes (ex: "totalSalesValue": 0), responda de forma apropriada, como "Não foi possível encontrar informações para a sua solicitação." ou "Nenhum dado encontrado para [período/critério]".
Se o resultado tiver valores numéricos, formate-os com duas casas decimais para valores monetários (ex: R$ 15.000,00) e use ponto para milhar e vírgula para decimal (ex: 5.500 litros).

Exemplos de humanização:
Pergunta: "Quem vendeu mais?"
Resultado: [{"_id": "João Silva", "totalSalesValue": 15000}]
Resposta Humanizada: O funcionário que mais vendeu foi João Silva, com um total de R$ 15.000,00 em vendas.

Pergunta: "Quem vendeu mais no dia 14/04/2025?"
Resultado: [{"_id": "ROBERTO SOUZA LIMA", "totalSalesValue": 989.47}]
Resposta Humanizada: No dia 14/04/2025, o funcionário que mais vendeu foi ROBERTO SOUZA LIMA, com um total de R$ 989,47 em vendas.

Pergunta: "E ontem?"
Resultado: []
Resposta Humanizada: Não foi possível encontrar dados de vendas para ontem.

Resposta para o usuário:
`, userQuestion, resultJSON)
}
