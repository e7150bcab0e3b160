package core

import (
	"sort"
	"time"
)

// RecentProposalsLimit is how many proposals the dashboard lists.
const RecentProposalsLimit = 5

// TrailingMonths is the width of the dashboard histogram.
const TrailingMonths = 6

var monthLabels = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// MonthLabel returns the short Portuguese name of a month.
func MonthLabel(m time.Month) string {
	return monthLabels[m-1]
}

type MonthBucket struct {
	Label      string
	Year       int
	Month      time.Month
	Proposals  int
	Commission Money
}

type CommissionSummary struct {
	Count   int
	Total   Money
	Paid    Money
	Pending Money
}

type BrokerStats struct {
	TotalProposals int
	Approved       int
	UnderReview    int
	Rejected       int

	TotalCommission     Money
	PaidCommission      Money
	PendingCommission   Money
	CommissionThisMonth Money

	// Oldest month first, ending at the reference month.
	Monthly         []MonthBucket
	RecentProposals []Proposal
}

// ComputeBrokerStats derives the dashboard figures of one broker from already
// loaded records. now fixes the current month and its location.
func ComputeBrokerStats(proposals []Proposal, commissions []Commission, now time.Time) BrokerStats {
	var st BrokerStats
	st.TotalProposals = len(proposals)

	st.Monthly = make([]MonthBucket, TrailingMonths)
	index := make(map[int]int, TrailingMonths)
	for i := 0; i < TrailingMonths; i++ {
		first := time.Date(now.Year(), now.Month()-time.Month(TrailingMonths-1-i), 1, 0, 0, 0, 0, now.Location())
		st.Monthly[i] = MonthBucket{Label: MonthLabel(first.Month()), Year: first.Year(), Month: first.Month()}
		index[monthKey(first)] = i
	}

	for _, p := range proposals {
		switch p.Status {
		case ProposalApproved:
			st.Approved++
		case ProposalPending:
			st.UnderReview++
		case ProposalRejected:
			st.Rejected++
		}
		if i, ok := index[monthKey(p.CreatedAt.In(now.Location()))]; ok {
			st.Monthly[i].Proposals++
		}
	}

	sum := SummarizeCommissions(commissions)
	st.TotalCommission = sum.Total
	st.PaidCommission = sum.Paid
	st.PendingCommission = sum.Pending

	current := monthKey(now)
	for _, c := range commissions {
		key := monthKey(c.CreatedAt.In(now.Location()))
		if key == current {
			st.CommissionThisMonth = st.CommissionThisMonth.Add(c.Amount)
		}
		if i, ok := index[key]; ok {
			st.Monthly[i].Commission = st.Monthly[i].Commission.Add(c.Amount)
		}
	}

	st.RecentProposals = RecentProposals(proposals, RecentProposalsLimit)
	return st
}

// MaxMonthlyProposals is the tallest histogram bar, at least 1.
func (s BrokerStats) MaxMonthlyProposals() int {
	tallest := 1
	for _, b := range s.Monthly {
		if b.Proposals > tallest {
			tallest = b.Proposals
		}
	}
	return tallest
}

// SummarizeCommissions totals commissions by payment status.
func SummarizeCommissions(commissions []Commission) CommissionSummary {
	var s CommissionSummary
	for _, c := range commissions {
		s.Count++
		s.Total = s.Total.Add(c.Amount)
		switch c.Status {
		case CommissionPaid:
			s.Paid = s.Paid.Add(c.Amount)
		case CommissionPending:
			s.Pending = s.Pending.Add(c.Amount)
		}
	}
	return s
}

// RecentProposals returns up to limit proposals, newest first.
func RecentProposals(proposals []Proposal, limit int) []Proposal {
	sorted := make([]Proposal, len(proposals))
	copy(sorted, proposals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// JoinProducts attaches each proposal's product by id. Proposals whose product
// is missing keep a nil Product.
func JoinProducts(proposals []Proposal, products []Product) []Proposal {
	byID := make(map[string]*Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	out := make([]Proposal, len(proposals))
	for i, p := range proposals {
		p.Product = byID[p.ProductID]
		out[i] = p
	}
	return out
}

func monthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}
