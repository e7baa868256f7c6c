// Package reconcile derives allocation aggregates from posting history.
// Nothing here is stored; every read recomputes from the postings.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

type Totals struct {
	Consumed       decimal.Decimal
	Remaining      decimal.Decimal
	UtilizationPct int
	Status         domain.SettlementStatus
	LiveCount      int
	VoidedCount    int
}

// Compute aggregates non-voided postings against total.
func Compute(total decimal.Decimal, postings []domain.Posting) Totals {
	consumed := decimal.Zero
	var live, voided int
	for _, p := range postings {
		if p.Voided {
			voided++
			continue
		}
		live++
		consumed = consumed.Add(p.Amount)
	}
	return fromConsumed(total, consumed, live, voided)
}

func fromConsumed(total, consumed decimal.Decimal, live, voided int) Totals {
	return Totals{
		Consumed:       consumed,
		Remaining:      total.Sub(consumed),
		UtilizationPct: utilization(total, consumed),
		Status:         status(total, consumed),
		LiveCount:      live,
		VoidedCount:    voided,
	}
}

// utilization is for display only; over-allocation is reported by Status.
func utilization(total, consumed decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	pct := consumed.Mul(hundred).Div(total).Round(0).IntPart()
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return int(pct)
	}
}

func status(total, consumed decimal.Decimal) domain.SettlementStatus {
	switch {
	case consumed.IsZero():
		return domain.SettlementUnconsumed
	case consumed.LessThan(total):
		return domain.SettlementPartial
	case consumed.Equal(total):
		return domain.SettlementSettled
	default:
		return domain.SettlementOverAllocated
	}
}

// Headroom reports whether amount fits on top of the live postings.
func Headroom(total decimal.Decimal, postings []domain.Posting, amount decimal.Decimal) (Totals, bool) {
	t := Compute(total, postings)
	return t, t.Consumed.Add(amount).LessThanOrEqual(total)
}

// Summarize builds the read model for one allocation.
func Summarize(alloc domain.Allocation, postings []domain.Posting) domain.Summary {
	t := Compute(alloc.TotalAmount, postings)
	return domain.Summary{
		Allocation:     alloc,
		Consumed:       t.Consumed,
		Remaining:      t.Remaining,
		UtilizationPct: t.UtilizationPct,
		Status:         t.Status,
		Active:         !alloc.IsSuperseded(),
		PostingCount:   t.LiveCount,
		VoidedCount:    t.VoidedCount,
	}
}
