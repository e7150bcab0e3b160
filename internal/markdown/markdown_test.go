package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToHTML("**Cobertura nacional**\n\n- consultas\n- exames")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>Cobertura nacional</strong>")
	assert.Contains(t, out, "<li>consultas</li>")
}

func TestToHTMLStripsScripts(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToHTML("Olá <script>alert(1)</script> [link](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestRender(t *testing.T) {
	r := NewRenderer()
	assert.True(t, strings.HasPrefix(string(r.Render("# Plano")), "<h1>"))
}

func TestPlainText(t *testing.T) {
	r := NewRenderer()
	assert.Equal(t, "Maria", r.PlainText("  <b>Maria</b> "))
	assert.Equal(t, "", r.PlainText("<script></script>"))
	assert.Equal(t, "Silva & Filhos", r.PlainText("Silva & Filhos"))
}
