package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"catalyst/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearchClient struct {
	items   map[string][]WebItem // keyed by substring of the query
	err     error
	queries []string
}

func (f *fakeSearchClient) Search(ctx context.Context, query string, opts SearchOptions) ([]WebItem, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	for key, items := range f.items {
		if strings.Contains(query, key) {
			return items, nil
		}
	}
	return nil, nil
}

type fakeLLMClient struct {
	completion *Completion
	err        error
	lastPrompt string
}

func (f *fakeLLMClient) Chat(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	return f.completion, f.err
}

const validReply = `分析如下：
{
  "analysis": "公司主营产品涨价，订单饱满",
  "catalysts": ["产品涨价", "重大订单"],
  "expectedNews": ["Q3财报超预期"],
  "businessInfo": "主营特种材料",
  "orderCertainty": 8,
  "performanceContribution": "涨价直接增厚利润",
  "technicalBarriers": "产能和专利壁垒",
  "themeRelevance": "与新材料热点强关联",
  "isCoreStock": true,
  "marketPosition": "细分龙头",
  "catalystScore": 9
}`

func TestAnalyzeStockParsesCompletion(t *testing.T) {
	search := &fakeSearchClient{items: map[string][]WebItem{
		"主营业务": {
			{Title: "公司简介", URL: "https://a.example/1", Snippet: "主营特种材料", PublishTime: "2025-08-01"},
		},
		"涨价": {
			{Title: "产品提价公告", URL: "https://a.example/2", Snippet: "上调出厂价"},
			{Title: "重复来源", URL: "https://a.example/1", Snippet: "再次报道"},
		},
	}}
	llm := &fakeLLMClient{completion: &Completion{Content: validReply, TotalTokens: 1234}}
	a := NewAnalyzer(search, llm, zerolog.Nop())

	stock := model.StockInfo{Name: "测试股份", Code: "600001"}
	result, searches, tokens, err := a.AnalyzeStock(context.Background(), stock)
	require.NoError(t, err)

	assert.Equal(t, "测试股份", result.Name)
	assert.Equal(t, "600001", result.Code)
	assert.Equal(t, 9, result.CatalystScore)
	assert.True(t, result.IsCoreStock)
	assert.Equal(t, []string{"产品涨价", "重大订单"}, result.Catalysts)

	// One search per category, sources deduplicated across categories.
	assert.Equal(t, len(searchCategories), searches)
	assert.Equal(t, 1234, tokens)
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, result.Sources)

	// The prompt carries the stock identity and the gathered context.
	assert.Contains(t, llm.lastPrompt, "测试股份")
	assert.Contains(t, llm.lastPrompt, "600001")
	assert.Contains(t, llm.lastPrompt, "产品提价公告")
}

func TestAnalyzeStockSearchFailureDegradesContext(t *testing.T) {
	search := &fakeSearchClient{err: errors.New("search provider down")}
	llm := &fakeLLMClient{completion: &Completion{Content: validReply}}
	a := NewAnalyzer(search, llm, zerolog.Nop())

	result, searches, _, err := a.AnalyzeStock(context.Background(), model.StockInfo{Name: "测试股份", Code: "600001"})
	require.NoError(t, err)
	assert.Equal(t, len(searchCategories), searches)
	assert.Empty(t, result.Sources)
}

func TestAnalyzeStockCompletionFailure(t *testing.T) {
	search := &fakeSearchClient{}
	llm := &fakeLLMClient{err: errors.New("rate limited")}
	a := NewAnalyzer(search, llm, zerolog.Nop())

	_, searches, _, err := a.AnalyzeStock(context.Background(), model.StockInfo{Name: "测试股份", Code: "600001"})
	require.Error(t, err)
	assert.Equal(t, len(searchCategories), searches)
}

func TestParseCompletionDegradedFallback(t *testing.T) {
	a := NewAnalyzer(&fakeSearchClient{}, &fakeLLMClient{}, zerolog.Nop())
	stock := model.StockInfo{Name: "测试股份", Code: "600001"}

	long := strings.Repeat("很长的非JSON回复", 100)
	result := a.parseCompletion(long, stock)

	assert.Equal(t, "测试股份", result.Name)
	assert.Equal(t, 5, result.CatalystScore)
	assert.Equal(t, 5, result.OrderCertainty)
	assert.Equal(t, "数据解析失败", result.MarketPosition)
	// Truncation counts runes, not bytes, so CJK text is never split.
	assert.Equal(t, 500, len([]rune(result.Analysis)))
	assert.Equal(t, long, result.BusinessInfo)
}

func TestParseCompletionInvalidJSONFallsBack(t *testing.T) {
	a := NewAnalyzer(&fakeSearchClient{}, &fakeLLMClient{}, zerolog.Nop())
	result := a.parseCompletion(`{"catalystScore": "not a number"}`, model.StockInfo{Name: "n", Code: "c"})
	assert.Equal(t, 5, result.CatalystScore)
	assert.Equal(t, "数据解析失败", result.ThemeRelevance)
}
