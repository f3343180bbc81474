package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/processing"
)

const tslaReply = "```json\n" + `{
  "symbol": "TSLA",
  "companyName": "Tesla, Inc.",
  "price": 242.1,
  "currency": "USD",
  "change": 3.4,
  "changePercent": 1.42,
  "marketCap": "770B",
  "volume": "98M",
  "high": 244.0,
  "low": 237.9,
  "open": 238.7,
  "analysis": "Tesla rose after delivery numbers beat estimates. Momentum carried through the session.",
  "chartData": [{"time": "09:30", "price": 238.7}, {"time": "16:00", "price": 242.1}],
  "news": [{"title": "Tesla deliveries beat", "source": "Reuters", "timeAgo": "1h ago"}]
}` + "\n```"

type fakeChatModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

func (f *fakeChatModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

type stubGrounder struct {
	text    string
	symbols []string
}

func (g *stubGrounder) Ground(_ context.Context, symbol string) string {
	g.symbols = append(g.symbols, symbol)
	return g.text
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.LLMProvider = config.ProviderDeepSeek
	cfg.LLMAPIKey = "sk-test"
	cfg.SearchGrounding = true
	cfg.ChartPoints = config.DefaultChartPoints
	return *cfg
}

func factoryFor(cm model.ChatModel) ModelFactory {
	return func(context.Context, config.Config) (model.ChatModel, error) {
		return cm, nil
	}
}

func TestBuildQuoteMessagesUpperCasesSymbol(t *testing.T) {
	msgs, err := BuildQuoteMessages(context.Background(), " tsla ", "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	system := msgs[0].Content
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, system, `stock ticker "tsla"`)
	assert.Contains(t, system, `"symbol": "TSLA"`)
	assert.Contains(t, system, "Exactly 20 points")
	assert.Contains(t, system, "No search results are available")
	assert.Contains(t, msgs[1].Content, `"TSLA"`)
}

func TestBuildQuoteMessagesEmbedsGrounding(t *testing.T) {
	msgs, err := BuildQuoteMessages(context.Background(), "AAPL", "Apple closes higher (Reuters)")
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "## Search results")
	assert.Contains(t, msgs[0].Content, "Apple closes higher (Reuters)")
	assert.NotContains(t, msgs[0].Content, "No search results are available")
}

func TestFetchQuoteParsesModelReply(t *testing.T) {
	cm := &fakeChatModel{reply: tslaReply}
	grounder := &stubGrounder{text: "Tesla deliveries beat (Reuters)"}
	agent := NewQuoteAgent(testConfig(),
		WithModelFactory(factoryFor(cm)),
		WithGrounder(grounder),
		WithLogger(zerolog.Nop()),
	)

	quote, err := agent.FetchQuote(context.Background(), " tsla ")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", quote.Symbol)
	assert.Equal(t, 242.1, quote.Price)
	assert.NotEmpty(t, quote.LastUpdated)

	assert.Equal(t, []string{"tsla"}, grounder.symbols)
	input := cm.lastInput()
	require.Len(t, input, 2)
	assert.Contains(t, input[0].Content, "Tesla deliveries beat (Reuters)")
}

func TestFetchQuoteSkipsGroundingWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.SearchGrounding = false
	grounder := &stubGrounder{text: "unused"}
	agent := NewQuoteAgent(cfg,
		WithModelFactory(factoryFor(&fakeChatModel{reply: tslaReply})),
		WithGrounder(grounder),
		WithLogger(zerolog.Nop()),
	)

	_, err := agent.FetchQuote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Empty(t, grounder.symbols)
}

func TestFetchQuoteMissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLMAPIKey = ""
	agent := NewQuoteAgent(cfg, WithLogger(zerolog.Nop()))

	_, err := agent.FetchQuote(context.Background(), "AAPL")
	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, processing.IsParserError(err))
}

func TestFetchQuoteModelFailure(t *testing.T) {
	agent := NewQuoteAgent(testConfig(),
		WithModelFactory(factoryFor(&fakeChatModel{err: errors.New("503 upstream")})),
		WithLogger(zerolog.Nop()),
	)

	_, err := agent.FetchQuote(context.Background(), "AAPL")
	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, "AAPL", modelErr.Symbol)
	assert.Contains(t, err.Error(), "503 upstream")
}

func TestFetchQuoteUnparseableReply(t *testing.T) {
	agent := NewQuoteAgent(testConfig(),
		WithModelFactory(factoryFor(&fakeChatModel{reply: "Sorry, I could not find that ticker."})),
		WithLogger(zerolog.Nop()),
	)

	_, err := agent.FetchQuote(context.Background(), "ZZZZ")
	var extractErr *processing.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.True(t, processing.IsParserError(err))
}

func TestFetchQuoteRetriesModelCreation(t *testing.T) {
	cm := &fakeChatModel{reply: tslaReply}
	attempts := 0
	factory := func(context.Context, config.Config) (model.ChatModel, error) {
		attempts++
		if attempts == 1 {
			return nil, ErrMissingAPIKey
		}
		return cm, nil
	}
	agent := NewQuoteAgent(testConfig(), WithModelFactory(factory), WithLogger(zerolog.Nop()))

	_, err := agent.FetchQuote(context.Background(), "TSLA")
	require.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = agent.FetchQuote(context.Background(), "TSLA")
	require.NoError(t, err)

	_, err = agent.FetchQuote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestFetchQuoteRejectsEmptySymbol(t *testing.T) {
	agent := NewQuoteAgent(testConfig(), WithModelFactory(factoryFor(&fakeChatModel{})), WithLogger(zerolog.Nop()))
	_, err := agent.FetchQuote(context.Background(), "   ")
	var modelErr *ModelError
	assert.ErrorAs(t, err, &modelErr)
}

type deadlineModel struct {
	fakeChatModel
	remaining time.Duration
}

func (d *deadlineModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		d.remaining = time.Until(deadline)
	}
	return d.fakeChatModel.Generate(ctx, input, opts...)
}

func (d *deadlineModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := d.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

type slowGrounder struct {
	delay time.Duration
}

func (g slowGrounder) Ground(context.Context, string) string {
	time.Sleep(g.delay)
	return "Tesla deliveries beat (Reuters)"
}

func TestFetchQuoteModelBudgetStartsAfterGrounding(t *testing.T) {
	cfg := testConfig()
	cfg.LLMTimeoutSeconds = 1

	cm := &deadlineModel{fakeChatModel: fakeChatModel{reply: tslaReply}}
	agent := NewQuoteAgent(cfg,
		WithModelFactory(factoryFor(cm)),
		WithGrounder(slowGrounder{delay: 300 * time.Millisecond}),
		WithLogger(zerolog.Nop()),
	)

	quote, err := agent.FetchQuote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", quote.Symbol)
	assert.Greater(t, cm.remaining, 800*time.Millisecond)
}
