package synth

import (
	"encoding/json"
	"strings"

	"github.com/FranksOps/shopwise/internal/model"
)

const linkHint = "直接從產品資訊中複製完整的購買連結，不要修改或創造連結"

// exampleResult shows the model the exact shape expected back.
var exampleResult = model.ComparisonResult{
	Picks: model.Picks{
		BestChoice:   "最佳商品名稱",
		BestValue:    "最高性價比商品",
		BestQuality:  "最佳品質商品",
		MostFeatures: "功能最齊全商品",
	},
	Comparisons: []model.ProductComparison{
		{
			ProductName:       "商品名稱",
			Brand:             "品牌名稱",
			Price:             "價格",
			Pros:              []string{"優點 1", "優點 2"},
			Cons:              []string{"缺點 1", "缺點 2"},
			KeyFeatures:       []string{"特色 1", "特色 2"},
			SuitableScenarios: []string{"適用場景 1", "適用場景 2"},
			Rating:            8.5,
			Link:              linkHint,
		},
		{
			ProductName:       "商品名稱",
			Brand:             "品牌名稱",
			Price:             "價格",
			Pros:              []string{"優點 1", "優點 2"},
			Cons:              []string{"缺點 1", "缺點 2"},
			KeyFeatures:       []string{"特色 1", "特色 2"},
			SuitableScenarios: []string{"適用場景 1", "適用場景 2"},
			Rating:            7.8,
			Link:              linkHint,
		},
	},
	Analysis: "整體比較分析和建議",
}

var exampleJSON = func() string {
	b, err := json.MarshalIndent(exampleResult, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}()

// Prompt renders the comparison prompt for query over the assembled context.
func Prompt(query string, c model.AssembledContext) string {
	var b strings.Builder
	b.WriteString("你是專業的產品顧問，幫助用戶做出最佳購買決策。請用繁體中文，根據用戶需求與下方產品資訊進行比較分析。\n\n")
	b.WriteString("# 輸出格式\n")
	b.WriteString("只輸出一個 ```json 區塊，內容必須完全符合以下結構，不要加任何其他文字：\n")
	b.WriteString("```json\n" + exampleJSON + "\n```\n\n")
	b.WriteString("# 規則\n")
	b.WriteString("- key 使用上面的英文名稱，內容使用繁體中文。\n")
	b.WriteString("- product_comparisons 中的商品不限兩個，上面只是舉例；請比較所有相關商品，超過4種時至少比較4種最相關的。\n")
	b.WriteString("- link 必須從產品資訊的「購買連結」原樣複製，不可修改或自行編造。\n")
	b.WriteString("- rating 為 0 到 10 的數字，反映整體品質、性價比、功能完整性與使用體驗。\n")
	b.WriteString("- 不要提及參考了哪些資料，也不要列入與需求無關的商品。\n\n")
	b.WriteString("# 用戶需求\n")
	b.WriteString(query + "\n\n")
	b.WriteString("# 產品資訊\n")
	if strings.TrimSpace(c.Text) == "" {
		b.WriteString("（查無產品資訊）\n")
	} else {
		b.WriteString(c.Text)
	}
	return b.String()
}
