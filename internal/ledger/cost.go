package ledger

// Credit prices.
const (
	// KeywordBlockCost is charged per started block of KeywordBlockSize keywords.
	KeywordBlockCost = 20
	KeywordBlockSize = 10
	// DeepDiveCost is the flat price of one deep dive report.
	DeepDiveCost = 30
)

// CostForKeywords prices mining and translation runs: 20 credits per started
// block of ten keywords. Zero keywords cost nothing.
func CostForKeywords(n int) int {
	if n <= 0 {
		return 0
	}
	blocks := (n + KeywordBlockSize - 1) / KeywordBlockSize
	return blocks * KeywordBlockCost
}
