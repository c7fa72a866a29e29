package deposit

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Catalog is the read-only set of deduction item types, keyed by type id.
type Catalog map[string]DeductionItemType

func NewCatalog(items []DeductionItemType) Catalog {
	c := make(Catalog, len(items))
	for _, it := range items {
		c[it.TypeID] = it
	}
	return c
}

// Items returns the catalog entries ordered by type id.
func (c Catalog) Items() []DeductionItemType {
	out := make([]DeductionItemType, 0, len(c))
	for _, it := range c {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// ComputeDeduction sums count * unit_amount over the configured types.
// Type ids missing from the catalog are ignored so catalog edits never break a session.
func ComputeDeduction(missing map[string]int, catalog Catalog) decimal.Decimal {
	total := decimal.Zero
	for typeID, count := range missing {
		if count <= 0 {
			continue
		}
		item, ok := catalog[typeID]
		if !ok {
			continue
		}
		total = total.Add(item.UnitAmount.Mul(decimalFromInt(count)))
	}
	return total.Round(2)
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
