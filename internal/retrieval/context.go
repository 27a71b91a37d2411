package retrieval

import (
	"fmt"
	"strings"
)

// BuildOrderContext renders matched order records as prompt context, one
// line per match. Returns "" when nothing matched.
func BuildOrderContext(matches []Match) string {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Metadata == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("Order ID: %v, Product ID: %v, Price: $%v, Created: %v",
			m.Metadata["order_id"], m.Metadata["product_id"], m.Metadata["price_usd"], m.Metadata["created_at"]))
	}
	return strings.Join(lines, "\n")
}
