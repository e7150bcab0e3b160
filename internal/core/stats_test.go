package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func TestComputeBrokerStats_NoRecords(t *testing.T) {
	st := ComputeBrokerStats(nil, nil, statsNow)

	assert.Zero(t, st.TotalProposals)
	assert.Zero(t, st.Approved)
	assert.Zero(t, st.UnderReview)
	assert.Zero(t, st.Rejected)
	assert.Empty(t, st.RecentProposals)
	assert.Zero(t, st.TotalCommission.Cents)
	assert.Zero(t, st.PaidCommission.Cents)
	assert.Zero(t, st.PendingCommission.Cents)
	assert.Zero(t, st.CommissionThisMonth.Cents)

	require.Len(t, st.Monthly, TrailingMonths)
	labels := make([]string, 0, len(st.Monthly))
	for _, b := range st.Monthly {
		labels = append(labels, b.Label)
		assert.Zero(t, b.Proposals)
		assert.Zero(t, b.Commission.Cents)
	}
	assert.Equal(t, []string{"Out", "Nov", "Dez", "Jan", "Fev", "Mar"}, labels)
	assert.Equal(t, 2023, st.Monthly[0].Year)
	assert.Equal(t, 2024, st.Monthly[5].Year)
}

func TestComputeBrokerStats_Counts(t *testing.T) {
	proposals := []Proposal{
		{ID: "p1", Status: ProposalApproved, CreatedAt: statsNow.AddDate(0, 0, -1)},
		{ID: "p2", Status: ProposalApproved, CreatedAt: statsNow.AddDate(0, -1, 0)},
		{ID: "p3", Status: ProposalPending, CreatedAt: statsNow.AddDate(0, -2, 0)},
		{ID: "p4", Status: ProposalRejected, CreatedAt: statsNow.AddDate(0, -7, 0)},
	}
	st := ComputeBrokerStats(proposals, nil, statsNow)

	assert.Equal(t, 4, st.TotalProposals)
	assert.Equal(t, 2, st.Approved)
	assert.Equal(t, 1, st.UnderReview)
	assert.Equal(t, 1, st.Rejected)

	// p4 falls outside the six month window.
	total := 0
	for _, b := range st.Monthly {
		total += b.Proposals
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, st.Monthly[5].Proposals) // Mar
	assert.Equal(t, 1, st.Monthly[4].Proposals) // Fev
	assert.Equal(t, 1, st.Monthly[3].Proposals) // Jan
}

func TestComputeBrokerStats_CommissionThisMonth(t *testing.T) {
	commissions := []Commission{
		{Amount: Money{Cents: 1000}, Status: CommissionPending, CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: Money{Cents: 2500}, Status: CommissionPaid, CreatedAt: time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)},
		{Amount: Money{Cents: 7000}, Status: CommissionPaid, CreatedAt: time.Date(2024, time.February, 28, 23, 0, 0, 0, time.UTC)},
		{Amount: Money{Cents: 9000}, Status: CommissionPending, CreatedAt: time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC)},
	}
	st := ComputeBrokerStats(nil, commissions, statsNow)

	assert.Equal(t, int64(3500), st.CommissionThisMonth.Cents)
	assert.Equal(t, int64(19500), st.TotalCommission.Cents)
	assert.Equal(t, int64(9500), st.PaidCommission.Cents)
	assert.Equal(t, int64(10000), st.PendingCommission.Cents)
	assert.Equal(t, int64(3500), st.Monthly[5].Commission.Cents)
	assert.Equal(t, int64(7000), st.Monthly[4].Commission.Cents)
}

func TestComputeBrokerStats_RecentProposals(t *testing.T) {
	var proposals []Proposal
	for i := 0; i < 8; i++ {
		proposals = append(proposals, Proposal{
			ID:        string(rune('a' + i)),
			Status:    ProposalPending,
			CreatedAt: statsNow.AddDate(0, 0, -i),
		})
	}
	proposals[0], proposals[7] = proposals[7], proposals[0]

	st := ComputeBrokerStats(proposals, nil, statsNow)
	require.Len(t, st.RecentProposals, RecentProposalsLimit)
	assert.Equal(t, "a", st.RecentProposals[0].ID)
	assert.Equal(t, "e", st.RecentProposals[4].ID)
	// input order untouched
	assert.Equal(t, "h", proposals[0].ID)
}

func TestSummarizeCommissions_Empty(t *testing.T) {
	s := SummarizeCommissions(nil)
	assert.Zero(t, s.Total.Cents)
	assert.Zero(t, s.Paid.Cents)
	assert.Zero(t, s.Pending.Cents)
	assert.Zero(t, s.Count)
}

func TestJoinProducts(t *testing.T) {
	products := []Product{{ID: "prod-1", Name: "Saúde Plus"}, {ID: "prod-2", Name: "Dental"}}
	proposals := []Proposal{{ID: "p1", ProductID: "prod-2"}, {ID: "p2", ProductID: "missing"}}

	joined := JoinProducts(proposals, products)
	require.Len(t, joined, 2)
	require.NotNil(t, joined[0].Product)
	assert.Equal(t, "Dental", joined[0].Product.Name)
	assert.Nil(t, joined[1].Product)
	assert.Nil(t, proposals[0].Product)
}

func TestMaxMonthlyProposals(t *testing.T) {
	assert.Equal(t, 1, BrokerStats{}.MaxMonthlyProposals())
	st := BrokerStats{Monthly: []MonthBucket{{Proposals: 2}, {Proposals: 7}}}
	assert.Equal(t, 7, st.MaxMonthlyProposals())
}
