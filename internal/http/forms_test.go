package http

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/services"
)

func TestBindForm(t *testing.T) {
	values := url.Values{
		"nome":       {"  Maria\x00 Lima  "},
		"email":      {"maria@example.com"},
		"telefone":   {"11987654321"},
		"tipo_plano": {"individual"},
		"vidas":      {"abc"},
		"mensagem":   {"linha 1\nlinha 2"},
	}
	var form leadForm
	bindForm(values, &form)

	assert.Equal(t, "Maria Lima", form.Name)
	assert.Equal(t, 0, form.Lives, "unparseable ints stay zero")
	assert.Equal(t, "linha 1\nlinha 2", form.Message)

	values.Set("vidas", "4")
	bindForm(values, &form)
	assert.Equal(t, 4, form.Lives)
}

func TestValidateForm_Messages(t *testing.T) {
	tests := []struct {
		name  string
		form  any
		field string
		want  string
	}{
		{
			name:  "required name",
			form:  leadForm{Email: "a@b.com", Phone: "11987654321", PlanType: "individual", Lives: 1},
			field: "nome",
			want:  "Campo obrigatório",
		},
		{
			name:  "bad phone",
			form:  leadForm{Name: "A", Email: "a@b.com", Phone: "123", PlanType: "individual", Lives: 1},
			field: "telefone",
			want:  "Telefone inválido",
		},
		{
			name:  "unknown plan",
			form:  leadForm{Name: "A", Email: "a@b.com", Phone: "11987654321", PlanType: "vip", Lives: 1},
			field: "tipo_plano",
			want:  "Opção inválida",
		},
		{
			name:  "too many lives",
			form:  leadForm{Name: "A", Email: "a@b.com", Phone: "11987654321", PlanType: "individual", Lives: 1000},
			field: "vidas",
			want:  "O valor máximo é 999",
		},
		{
			name:  "short password",
			form:  registerForm{Name: "A", Email: "a@b.com", Phone: "11987654321", CPF: "52998224725", Password: "curta", Confirm: "curta"},
			field: "senha",
			want:  "Mínimo de 8 caracteres",
		},
		{
			name:  "invalid cpf",
			form:  registerForm{Name: "A", Email: "a@b.com", Phone: "11987654321", CPF: "12345678900", Password: "segredo123", Confirm: "segredo123"},
			field: "cpf",
			want:  "CPF inválido",
		},
		{
			name:  "bad amount",
			form:  proposalForm{ProductID: "p", ClientName: "João", ClientCPF: "52998224725", Value: "abc"},
			field: "valor",
			want:  "Valor inválido",
		},
		{
			name:  "bad birth date",
			form:  proposalForm{ProductID: "p", ClientName: "João", ClientCPF: "52998224725", Value: "100", BirthDate: "31/12/1990"},
			field: "cliente_nascimento",
			want:  "Data inválida",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateForm(tt.form)
			require.True(t, errs.Any())
			assert.Equal(t, tt.want, errs[tt.field])
		})
	}
}

func TestValidateForm_Valid(t *testing.T) {
	form := proposalForm{
		ProductID:   "p1",
		ClientName:  "João Silva",
		ClientCPF:   "529.982.247-25",
		ClientPhone: "(11) 98765-4321",
		BirthDate:   "1990-12-31",
		Value:       "1.234,56",
	}
	assert.False(t, validateForm(form).Any())

	p := form.proposal("b1")
	assert.Equal(t, "52998224725", p.ClientCPF)
	assert.Equal(t, "11987654321", p.ClientPhone)
	assert.Equal(t, int64(123456), p.Value.Cents)
	require.NotNil(t, p.ClientBirthDate)
	assert.Equal(t, 1990, p.ClientBirthDate.Year())
}

func TestFormErrors_AddKeepsFirst(t *testing.T) {
	errs := FormErrors{}
	errs.Add("email", "primeiro")
	errs.Add("email", "segundo")
	assert.Equal(t, "primeiro", errs["email"])
}

func TestCommissionBps(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"3,5", 350, true},
		{"3.50", 350, true},
		{"4,25%", 425, true},
		{"0", 0, true},
		{"0,00", 0, true},
		{"100", 10000, true},
		{"100,01", 0, false},
		{"abc", 0, false},
		{"-1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := productForm{Commission: tt.in}.commissionBps()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDomainMessage(t *testing.T) {
	field, msg := domainMessage(fmt.Errorf("register: %w", services.ErrEmailTaken))
	assert.Equal(t, "email", field)
	assert.Equal(t, "E-mail já cadastrado", msg)

	field, msg = domainMessage(fmt.Errorf("row 2: %w", core.ErrInvalidPriceRow))
	assert.Equal(t, "faixas", field)
	assert.Contains(t, msg, "faixa;preço")

	field, _ = domainMessage(core.ErrFileTooLarge)
	assert.Equal(t, "_form", field)

	field, msg = domainMessage(assert.AnError)
	assert.Empty(t, field)
	assert.Empty(t, msg)
}
