package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"11987654321", "(11) 98765-4321"},
		{"1133334444", "(11) 3333-4444"},
		{"(21) 99876-5432", "(21) 99876-5432"},
		{"21 3232-1010", "(21) 3232-1010"},
		{"987654321", "987654321"},
		{"119876543210", "119876543210"},
		{"", ""},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhone(tt.in))
		})
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("(11) 98765-4321"))
	assert.True(t, ValidPhone("1133334444"))
	assert.False(t, ValidPhone("12345"))
	assert.Equal(t, "11987654321", NormalizePhone("(11) 98765-4321"))
}
