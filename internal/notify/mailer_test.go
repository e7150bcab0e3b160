package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"contratandoplanos/internal/core"
)

func testLead() core.Lead {
	return core.Lead{
		ID: "l1", Name: "João <script>", Email: "joao@example.com", Phone: "1133334444",
		City: "Santos", PlanType: core.PlanBusiness, Lives: 12, Message: "Empresa com 12 funcionários",
	}
}

func TestNotifyLead(t *testing.T) {
	var sent []*gomail.Message
	m := &Mailer{from: "site@example.com", to: []string{"vendas@example.com"}, send: func(msgs ...*gomail.Message) error {
		sent = append(sent, msgs...)
		return nil
	}}

	require.NoError(t, m.NotifyLead(context.Background(), testLead()))
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, []string{"vendas@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"joao@example.com"}, msg.GetHeader("Reply-To"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(11) 3333-4444")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestNotifyLeadWithoutRecipients(t *testing.T) {
	m := &Mailer{send: func(...*gomail.Message) error {
		t.Fatal("send must not be called")
		return nil
	}}
	assert.NoError(t, m.NotifyLead(context.Background(), testLead()))
}

func TestNotifyLeadError(t *testing.T) {
	m := &Mailer{to: []string{"a@example.com"}, send: func(...*gomail.Message) error {
		return errors.New("smtp down")
	}}
	err := m.NotifyLead(context.Background(), testLead())
	assert.ErrorContains(t, err, "smtp down")
}

func TestParseRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, ParseRecipients(" a@x.com, ,b@x.com "))
	assert.Nil(t, ParseRecipients(""))
}
