package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"catalyst/internal/model"

	"github.com/rs/zerolog"
)

// searchCategory is one dimension of the per-stock research sweep.
type searchCategory struct {
	name      string
	query     string // format with name, code
	count     int
	timeRange string
}

// Six research dimensions per stock. Queries are in Chinese because the
// product targets A-share listings and the search corpus is Chinese.
var searchCategories = []searchCategory{
	{name: "公司基本信息", query: "%s %s 主营业务 核心产品 产能 市场份额 行业地位", count: 8, timeRange: "3m"},
	{name: "价格和业绩", query: "%s %s 产品价格 涨价 价格变动 财报 业绩 2024 2025", count: 8, timeRange: "1m"},
	{name: "订单和客户", query: "%s %s 订单 签约 客户 重大项目 合同 中标", count: 6, timeRange: "1m"},
	{name: "政策和行业", query: "%s %s 政策 行业政策 产业政策 支持政策 2024 2025", count: 6, timeRange: "2m"},
	{name: "热点题材", query: "%s %s 热点题材 概念板块 炒作预期 市场热点 A股 2025", count: 8, timeRange: "2w"},
	{name: "竞品和供需", query: "%s %s 供需 产能利用率 行业供需 竞争对手 市场格局", count: 6, timeRange: "1m"},
}

const analystSystemPrompt = `你是一位资深A股市场分析师，擅长识别核心个股和催化因素。

核心个股判断标准：
1. 稀缺性：在产业链中具有独特地位或稀缺资源
2. 垄断性：在细分领域具有较高市场份额或技术壁垒
3. 竞争力：产品价格对业绩影响大，定价能力强
4. 成长性：订单确定，产能利用率高，业绩增长预期明确

催化评分标准（1-10分）：
- 9-10分（极高催化）：核心个股+产品涨价/重大订单+行业景气度高
- 7-8分（高催化）：核心个股+业绩超预期/政策利好+订单确定
- 5-6分（中等催化）：一般个股+概念炒作+政策支持
- 3-4分（低催化）：一般个股+市场热点+不确定性
- 1-2分（无催化）：无明确催化因素

请严格按照以下 JSON 格式返回分析结果：
{
  "analysis": "综合分析摘要（300字以内）",
  "catalysts": ["催化因素1（核心因素优先）", "催化因素2"],
  "expectedNews": ["可炒作预期1（具体时间点和事件）", "可炒作预期2"],
  "businessInfo": "业务信息：主营业务、核心产品、产能、市场份额、行业地位",
  "orderCertainty": 订单确定性评分(1-10整数),
  "performanceContribution": "业绩贡献：分析当前业务对业绩的潜在贡献，量化影响",
  "technicalBarriers": "技术壁垒：核心技术、专利、产能壁垒、成本优势、客户壁垒",
  "themeRelevance": "热点关联：与当前A股热点题材的关联性分析",
  "isCoreStock": true/false,
  "marketPosition": "市场地位：在行业中的位置和竞争力",
  "catalystScore": 催化概率评分(1-10整数)
}

分析要求：
1. 核心个股识别：根据稀缺性、垄断性、竞争力、成长性判断是否为核心个股
2. 产品价格敏感度：重点关注产品价格变动对业绩的影响
3. 订单确定性：分析订单的可执行性、客户质量、合同金额和交付周期
4. 业绩贡献量化：尽可能量化分析对业绩的影响
5. 技术壁垒评估：分析核心竞争优势
6. 热点关联性：分析与当前市场热点的关联
7. 信息源标注：所有分析必须基于搜索到的信息，不得编造
8. 催化排序：催化因素按重要性和确定性排序，核心因素放首位`

// Analyzer runs the research-and-score pipeline for a single stock.
type Analyzer struct {
	search SearchClient
	llm    LLMClient
	logger zerolog.Logger
}

// NewAnalyzer creates an Analyzer with a scoped logger.
func NewAnalyzer(search SearchClient, llm LLMClient, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		search: search,
		llm:    llm,
		logger: logger.With().Str("service", "Analyzer").Logger(),
	}
}

// AnalyzeStock researches one stock across all categories, asks the model to
// score it, and returns the analysis plus search and token accounting. A
// failed search category degrades the context; only a failed completion fails
// the stock.
func (a *Analyzer) AnalyzeStock(ctx context.Context, stock model.StockInfo) (*model.StockAnalysis, int, int, error) {
	var contextSections []string
	var sources []string
	seen := make(map[string]bool)
	searches := 0

	for _, cat := range searchCategories {
		query := fmt.Sprintf(cat.query, stock.Name, stock.Code)
		items, err := a.search.Search(ctx, query, SearchOptions{
			Count:       cat.count,
			TimeRange:   cat.timeRange,
			NeedSummary: true,
		})
		searches++
		if err != nil {
			a.logger.Warn().Err(err).Str("category", cat.name).Str("stock", stock.Code).Msg("Search category failed")
			continue
		}
		if len(items) == 0 {
			continue
		}

		var lines []string
		for _, item := range items {
			lines = append(lines, fmt.Sprintf("[%s] %s\n摘要: %s", orUnknown(item.PublishTime), item.Title, item.Snippet))
			if item.URL != "" && !seen[item.URL] {
				seen[item.URL] = true
				sources = append(sources, item.URL)
			}
		}
		contextSections = append(contextSections, fmt.Sprintf("【%s】\n%s", cat.name, strings.Join(lines, "\n\n")))
	}

	userPrompt := fmt.Sprintf(`股票信息：
名称：%s
代码：%s

【多维度搜索结果】
%s

请基于以上信息，进行深度分析，特别关注：
1. 是否为核心个股（稀缺性、垄断性、竞争力、成长性）
2. 产品价格变动对业绩的影响
3. 订单确定性和产能利用率
4. 行业供需格局和竞争态势
5. 与当前热点题材的关联性
6. 综合评估催化概率和确定性`, stock.Name, stock.Code, strings.Join(contextSections, "\n\n---\n\n"))

	completion, err := a.llm.Chat(ctx, []ChatMessage{
		{Role: "system", Content: analystSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, searches, 0, fmt.Errorf("analyzing %s (%s): %w", stock.Name, stock.Code, err)
	}

	result := a.parseCompletion(completion.Content, stock)
	result.Sources = sources
	return result, searches, completion.TotalTokens, nil
}

// parseCompletion decodes the model's JSON reply, falling back to a degraded
// result carrying the raw text when the reply is not parseable.
func (a *Analyzer) parseCompletion(content string, stock model.StockInfo) *model.StockAnalysis {
	var result model.StockAnalysis

	raw, err := ExtractJSON(content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &result)
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("stock", stock.Code).Msg("Completion was not valid JSON, storing degraded result")
		summary := content
		if runes := []rune(summary); len(runes) > 500 {
			summary = string(runes[:500])
		}
		result = model.StockAnalysis{
			Analysis:                summary,
			Catalysts:               []string{"数据解析失败，请查看完整分析"},
			BusinessInfo:            content,
			OrderCertainty:          5,
			PerformanceContribution: "数据解析失败",
			TechnicalBarriers:       "数据解析失败",
			ThemeRelevance:          "数据解析失败",
			MarketPosition:          "数据解析失败",
			CatalystScore:           5,
		}
	}

	result.Name = stock.Name
	result.Code = stock.Code
	return &result
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}
