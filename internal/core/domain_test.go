package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProposal() Proposal {
	return Proposal{
		BrokerID:    "b1",
		ProductID:   "prod1",
		ClientName:  "Maria Souza",
		ClientCPF:   "529.982.247-25",
		ClientEmail: "maria@example.com",
		ClientPhone: "11987654321",
		Value:       Money{Cents: 45990},
		Status:      ProposalPending,
	}
}

func TestProposalValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Proposal)
		want   error
	}{
		{"valid", func(p *Proposal) {}, nil},
		{"missing broker", func(p *Proposal) { p.BrokerID = "" }, ErrMissingReference},
		{"missing product", func(p *Proposal) { p.ProductID = " " }, ErrMissingReference},
		{"empty client", func(p *Proposal) { p.ClientName = "" }, ErrEmptyName},
		{"bad cpf", func(p *Proposal) { p.ClientCPF = "123.456.789-00" }, ErrInvalidCPF},
		{"bad email", func(p *Proposal) { p.ClientEmail = "maria" }, ErrInvalidEmail},
		{"optional email", func(p *Proposal) { p.ClientEmail = "" }, nil},
		{"bad phone", func(p *Proposal) { p.ClientPhone = "123" }, ErrInvalidPhone},
		{"zero value", func(p *Proposal) { p.Value = Money{} }, ErrInvalidAmount},
		{"bad status", func(p *Proposal) { p.Status = "cancelado" }, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProposal()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tt.want)
		})
	}
}

func TestLeadValidate(t *testing.T) {
	lead := Lead{Name: "João", Email: "joao@example.com", Phone: "(11) 3333-4444", PlanType: PlanFamily, Lives: 3}
	require.NoError(t, lead.Validate())

	lead.Lives = 0
	assert.ErrorIs(t, lead.Validate(), ErrInvalidLives)

	lead.Lives = 2
	lead.PlanType = "premium"
	assert.ErrorIs(t, lead.Validate(), ErrInvalidPlanType)
}

func TestBrokerValidate(t *testing.T) {
	b := Broker{Name: "Ana", Email: "ana@example.com", CPF: "11144477735", Phone: "11987654321", Status: BrokerPending}
	require.NoError(t, b.Validate())
	assert.False(t, b.Approved())

	b.Email = "Ana <ana@example.com>"
	assert.ErrorIs(t, b.Validate(), ErrInvalidEmail)
}

func TestParsePriceRows(t *testing.T) {
	rows, err := ParsePriceRows("0-18;189,90\n\n19-23; 245,00\n59+;1.234,56\n")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0-18", rows[0].AgeRange)
	assert.Equal(t, int64(18990), rows[0].Price.Cents)
	assert.Equal(t, int64(123456), rows[2].Price.Cents)

	_, err = ParsePriceRows("0-18 189,90")
	assert.ErrorIs(t, err, ErrInvalidPriceRow)

	_, err = ParsePriceRows("  \n ")
	assert.ErrorIs(t, err, ErrEmptyPriceTable)
}

func TestPriceTableValidate(t *testing.T) {
	pt := PriceTable{Name: "Tabela PME", Carrier: "Unimed", Rows: []PriceRow{{AgeRange: "0-18", Price: Money{Cents: 100}}}}
	require.NoError(t, pt.Validate())

	pt.Rows = nil
	assert.ErrorIs(t, pt.Validate(), ErrEmptyPriceTable)
}

func TestProductCommissionLabel(t *testing.T) {
	assert.Equal(t, "3,50%", Product{CommissionBps: 350}.CommissionLabel())
	assert.Equal(t, "10,00%", Product{CommissionBps: 1000}.CommissionLabel())
	assert.Equal(t, "0,05%", Product{CommissionBps: 5}.CommissionLabel())
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "Em análise", ProposalPending.Label())
	assert.Equal(t, "Aprovada", ProposalApproved.Label())
	assert.Equal(t, "Paga", CommissionPaid.Label())
	assert.Equal(t, "Reprovado", BrokerRejected.Label())
	assert.Equal(t, "Jan", MonthLabel(1))
	assert.Equal(t, "Dez", MonthLabel(12))
}
