package planner

import "strings"

type example struct {
	query    string
	brand    string
	category string
	traits   string
	specs    string
	answer   string
}

var examples = []example{
	{
		query:    "比較電競筆電",
		brand:    "未指定",
		category: "筆電",
		traits:   "電競",
		specs:    "無",
		answer:   "電競 筆電",
	},
	{
		query:    "我需要一台適合辦公室使用的電腦，預算15000元以內，主要是處理文書工作和瀏覽網頁。",
		brand:    "未指定",
		category: "桌機",
		traits:   "辦公室使用、文書處理 → 文書機 商用",
		specs:    "預算不放入關鍵字",
		answer:   "桌機 文書機 商用",
	},
	{
		query:    "想找一台MSI的電競筆電，需要有i9處理器和RTX 4080顯卡，螢幕要有165Hz的更新率。",
		brand:    "MSI",
		category: "電競筆電",
		traits:   "電競",
		specs:    "i9處理器 → i9、RTX 4080顯卡 → RTX4080、165Hz更新率 → 165Hz",
		answer:   "MSI 電競筆電 i9 RTX4080 165Hz",
	},
	{
		query:    "推薦一款可以遠端控制的掃地機器人，要能連接APP並能自動倒垃圾，預算10000元左右。",
		brand:    "未指定",
		category: "掃地機器人",
		traits:   "遠端控制 → APP控制、自動倒垃圾 → 自動集塵",
		specs:    "預算不放入關鍵字",
		answer:   "掃地機器人 APP控制 自動集塵",
	},
	{
		query:    "我想找一款Sony的降噪藍牙耳機，希望電池續航力長，可以運動時使用，預算5000元以內。",
		brand:    "Sony",
		category: "藍牙耳機",
		traits:   "降噪、運動時使用 → 運動 防水",
		specs:    "預算不放入關鍵字",
		answer:   "Sony 藍牙耳機 降噪 運動 防水",
	},
}

// Prompt renders the keyword-generation prompt for query.
func Prompt(query string) string {
	var b strings.Builder
	b.WriteString("你是購物搜尋的關鍵字專家。請根據用戶的購物需求產生1到5個最相關的搜尋關鍵字，用於Google搜尋PChome商品。\n")
	b.WriteString("依序判斷品牌、商品種類、需求特徵（轉換為電商常用描述，例如「方便攜帶」→「輕薄」、「打電動」→「電競」）、關鍵規格（例如「16G記憶體」→「16GB」），預算不列入關鍵字。\n")
	b.WriteString("最後一行必須是「" + answerMarker + ": 關鍵字1 關鍵字2 ...」，關鍵字之間以空格分隔，不要加任何解釋。\n\n")

	for _, ex := range examples {
		b.WriteString("提問: " + ex.query + "\n")
		b.WriteString("品牌: " + ex.brand + "\n")
		b.WriteString("商品種類: " + ex.category + "\n")
		b.WriteString("需求特徵: " + ex.traits + "\n")
		b.WriteString("規格參數: " + ex.specs + "\n")
		b.WriteString(answerMarker + ": " + ex.answer + "\n\n")
	}

	b.WriteString("提問: " + query + "\n")
	return b.String()
}
