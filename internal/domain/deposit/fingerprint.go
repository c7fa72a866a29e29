package deposit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint identifies a commit by its content: the current order, the sorted
// (order_id, item_id, quantity) triples and the settlement mode.
func Fingerprint(currentOrderID string, mode SettlementMode, lines []CommitLine) string {
	parts := make([]string, 0, len(lines))
	sorted := append([]CommitLine(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool { return lessKey(sorted[i].Key(), sorted[j].Key()) })
	for _, l := range sorted {
		if l.Quantity <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%d", l.OrderID, l.ItemID, l.Quantity))
	}

	canonical := fmt.Sprintf("DEPOSIT_COMMIT|v1|%s|%s|%s", currentOrderID, mode, strings.Join(parts, ";"))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
