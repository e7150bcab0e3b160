package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/core"
	"contratandoplanos/internal/markdown"
	"contratandoplanos/internal/objectstore"
	"contratandoplanos/internal/ports"
	"contratandoplanos/internal/services"
	"contratandoplanos/internal/storage"
)

type testEnv struct {
	srv      *Server
	repo     *storage.Repository
	objects  *objectstore.LocalStore
	sessions *auth.Sessions
	admins   *services.AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := storage.Open(ctx, storage.DriverSQLite, storage.SQLiteDSN(filepath.Join(dir, "app.db")))
	require.NoError(t, err)
	objects, err := objectstore.NewLocalStore(filepath.Join(dir, "arquivos"))
	require.NoError(t, err)
	authorizer, err := auth.NewAuthorizer()
	require.NoError(t, err)

	md := markdown.NewRenderer()
	hasher := auth.NewPasswordHasher(4)
	sessions := auth.NewSessions("test-secret-0123456789abcdef0123456789", time.Hour)
	admins := services.NewAdminService(repo, hasher)

	srv, err := NewServer(Options{Addr: ":0", RateLimitPerMinute: 1000}, Deps{
		Store:      repo,
		Objects:    objects,
		Leads:      services.NewLeadService(repo, nil, md),
		Proposals:  services.NewProposalService(repo, objects),
		Brokers:    services.NewBrokerService(repo, objects, hasher),
		Admins:     admins,
		Sessions:   sessions,
		Authorizer: authorizer,
		Markdown:   md,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		repo.Close()
	})
	return &testEnv{srv: srv, repo: repo, objects: objects, sessions: sessions, admins: admins}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) cookie(t *testing.T, p auth.Principal) *http.Cookie {
	t.Helper()
	token, err := e.sessions.Issue(p)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func (e *testEnv) seedBroker(t *testing.T, status core.BrokerStatus) core.Broker {
	t.Helper()
	b := core.Broker{
		ID:           uuid.NewString(),
		Name:         "Ana Souza",
		Email:        "ana-" + uuid.NewString()[:8] + "@example.com",
		Phone:        "11987654321",
		CPF:          "52998224725",
		PasswordHash: "unused",
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.repo.CreateBroker(context.Background(), b))
	return b
}

func (e *testEnv) seedProduct(t *testing.T, name string, active bool) core.Product {
	t.Helper()
	p := core.Product{
		ID:            uuid.NewString(),
		Name:          name,
		Carrier:       "Unimed",
		Description:   "Cobertura **nacional**",
		CommissionBps: 350,
		Active:        active,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, e.repo.CreateProduct(context.Background(), p))
	return p
}

func brokerPrincipal(b core.Broker) auth.Principal {
	return auth.Principal{ID: b.ID, Role: auth.RoleBroker, Name: b.Name}
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])

	rr = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
	assert.Regexp(t, `(?m)^http_response_time_avg_ms \d+$`, rr.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	csp := rr.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "https://unpkg.com")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestHome_ListsActiveProductsOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "Plano Ouro", true)
	env.seedProduct(t, "Plano Antigo", false)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Plano Ouro")
	assert.NotContains(t, rr.Body.String(), "Plano Antigo")
}

func TestProduct_InactiveIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	active := env.seedProduct(t, "Plano Ouro", true)
	inactive := env.seedProduct(t, "Plano Antigo", false)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/produtos/"+active.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<strong>nacional</strong>")

	rr = env.do(httptest.NewRequest(http.MethodGet, "/produtos/"+inactive.ID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Produto não encontrado")
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/nao-existe", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Página não encontrada")
}

func TestQuote_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(postForm("/cotacao", url.Values{"email": {"nope"}, "tipo_plano": {"individual"}, "vidas": {"1"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Campo obrigatório")
	assert.Contains(t, body, "E-mail inválido")

	leads, err := env.repo.ListLeads(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestQuote_HTMXSuccess(t *testing.T) {
	env := newTestEnv(t)

	req := postForm("/cotacao", url.Values{
		"nome":       {"Maria Lima"},
		"email":      {"maria@example.com"},
		"telefone":   {"(11) 98765-4321"},
		"tipo_plano": {"familiar"},
		"vidas":      {"3"},
		"mensagem":   {"<b>Quero</b> cotar"},
	})
	req.Header.Set("HX-Request", "true")
	rr := env.do(req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "lead-created")
	assert.Contains(t, rr.Body.String(), "Recebemos seu pedido")
	assert.NotContains(t, rr.Body.String(), "<html")

	leads, err := env.repo.ListLeads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "11987654321", leads[0].Phone)
	assert.Equal(t, 3, leads[0].Lives)
	assert.NotContains(t, leads[0].Message, "<b>")
	assert.Equal(t, int64(1), env.srv.appMetrics.leadsCreated.Load())
}

func TestBrokerGate_RedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/corretor/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/corretor/login?next=%2Fcorretor%2Fdashboard", rr.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/corretor/propostas", nil)
	req.Header.Set("HX-Request", "true")
	rr = env.do(req)
	assert.True(t, strings.HasPrefix(rr.Header().Get("HX-Redirect"), "/corretor/login"))

	// A forged cookie counts as no session.
	req = httptest.NewRequest(http.MethodGet, "/corretor/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "not-a-token"})
	rr = env.do(req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/admin/painel", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/admin/login"))
}

func TestBrokerGate_PendingWaitsForApproval(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerPending)
	c := env.cookie(t, brokerPrincipal(b))

	req := httptest.NewRequest(http.MethodGet, "/corretor/dashboard", nil)
	req.AddCookie(c)
	rr := env.do(req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/corretor/aguardando", rr.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/corretor/aguardando", nil)
	req.AddCookie(c)
	rr = env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `hx-get="/corretor/status"`)
	assert.Contains(t, rr.Body.String(), "every 30s")

	req = httptest.NewRequest(http.MethodGet, "/corretor/status", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(c)
	rr = env.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("HX-Redirect"))
	assert.Contains(t, rr.Body.String(), "Em análise")

	require.NoError(t, env.repo.SetBrokerStatus(context.Background(), b.ID, core.BrokerApproved, time.Now()))

	req = httptest.NewRequest(http.MethodGet, "/corretor/status", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(c)
	rr = env.do(req)
	assert.Equal(t, "/corretor/dashboard", rr.Header().Get("HX-Redirect"))
}

func TestBrokerGate_RejectedIsSignedOut(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerRejected)

	req := httptest.NewRequest(http.MethodGet, "/corretor/dashboard", nil)
	req.AddCookie(env.cookie(t, brokerPrincipal(b)))
	rr := env.do(req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/corretor/login?erro=reprovado", rr.Header().Get("Location"))
	assert.Contains(t, rr.Header().Get("Set-Cookie"), auth.CookieName+"=;")
}

func TestBrokerDashboard(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerApproved)

	req := httptest.NewRequest(http.MethodGet, "/corretor/dashboard", nil)
	req.AddCookie(env.cookie(t, brokerPrincipal(b)))
	rr := env.do(req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Olá, Ana Souza")
	assert.Contains(t, rr.Body.String(), "Você ainda não enviou propostas.")
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestBrokerTable_NotFound(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerApproved)

	req := httptest.NewRequest(http.MethodGet, "/corretor/tabelas/abc", nil)
	req.AddCookie(env.cookie(t, brokerPrincipal(b)))
	rr := env.do(req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Tabela não encontrada")
	assert.Contains(t, body, `disabled aria-disabled="true">Imprimir</button>`)
	assert.NotContains(t, body, "data-print")
}

func TestBrokerTable_Found(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerApproved)
	table := core.PriceTable{
		ID:        uuid.NewString(),
		Name:      "Tabela PME 2024",
		Carrier:   "Amil",
		CreatedAt: time.Now().UTC(),
		Rows: []core.PriceRow{
			{AgeRange: "0-18", Price: core.Money{Cents: 18990}},
			{AgeRange: "19-23", Price: core.Money{Cents: 23050}},
		},
	}
	require.NoError(t, env.repo.CreatePriceTable(context.Background(), table))

	req := httptest.NewRequest(http.MethodGet, "/corretor/tabelas/"+table.ID, nil)
	req.AddCookie(env.cookie(t, brokerPrincipal(b)))
	rr := env.do(req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Tabela PME 2024")
	assert.Contains(t, body, "data-print")
	assert.Contains(t, body, "R$ 189,90")
	assert.NotContains(t, body, "Tabela não encontrada")
}

func TestBrokerCannotOpenAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerApproved)

	req := httptest.NewRequest(http.MethodGet, "/admin/painel", nil)
	req.AddCookie(env.cookie(t, brokerPrincipal(b)))
	rr := env.do(req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestFiles_BrokerOwnership(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBroker(t, core.BrokerApproved)
	ctx := context.Background()

	own := "corretores/" + b.ID + "/foto.png"
	other := "corretores/someone-else/foto.png"
	for _, key := range []string{own, other} {
		_, err := env.objects.Put(ctx, key, "image/png", strings.NewReader("png"), 3)
		require.NoError(t, err)
	}
	c := env.cookie(t, brokerPrincipal(b))

	req := httptest.NewRequest(http.MethodGet, "/arquivos/"+own, nil)
	req.AddCookie(c)
	rr := env.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png", rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/arquivos/"+other, nil)
	req.AddCookie(c)
	rr = env.do(req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/arquivos/"+other, nil)
	req.AddCookie(env.cookie(t, auth.Principal{ID: "adm", Role: auth.RoleAdmin, Name: "Admin"}))
	rr = env.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBrokerRegister_SignsInToWaitingPage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(postForm("/corretor/cadastro", url.Values{
		"nome":            {"Carlos Pereira"},
		"email":           {"Carlos@Example.com"},
		"telefone":        {"11912345678"},
		"cpf":             {"529.982.247-25"},
		"senha":           {"segredo123"},
		"confirmar_senha": {"segredo123"},
	}))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/corretor/aguardando", rr.Header().Get("Location"))
	assert.Contains(t, rr.Header().Get("Set-Cookie"), auth.CookieName+"=")

	b, err := env.repo.GetBrokerByEmail(context.Background(), "carlos@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.BrokerPending, b.Status)
	assert.Equal(t, "52998224725", b.CPF)
}

func TestBrokerRegister_Mismatch(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(postForm("/corretor/cadastro", url.Values{
		"nome":            {"Carlos Pereira"},
		"email":           {"carlos@example.com"},
		"telefone":        {"11912345678"},
		"cpf":             {"111.111.111-11"},
		"senha":           {"segredo123"},
		"confirmar_senha": {"outra-senha"},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "CPF inválido")
	assert.Contains(t, rr.Body.String(), "As senhas não conferem")
	assert.NotContains(t, rr.Body.String(), "segredo123")
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.admins.CreateAdmin(context.Background(), "Admin", "admin@example.com", "supersecreta")
	require.NoError(t, err)

	rr := env.do(postForm("/admin/login", url.Values{"email": {"admin@example.com"}, "senha": {"errada123"}}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "E-mail ou senha incorretos.")

	rr = env.do(postForm("/admin/login", url.Values{"email": {"ADMIN@example.com"}, "senha": {"supersecreta"}}))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/painel", rr.Header().Get("Location"))
}

func TestAdminApprovesProposal_CreatesCommission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.seedBroker(t, core.BrokerApproved)
	product := env.seedProduct(t, "Plano Ouro", true)

	now := time.Now().UTC()
	proposal := core.Proposal{
		ID:          uuid.NewString(),
		BrokerID:    b.ID,
		ProductID:   product.ID,
		ClientName:  "João Silva",
		ClientCPF:   "52998224725",
		ClientPhone: "11987654321",
		Value:       core.Money{Cents: 100000},
		Status:      core.ProposalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, env.repo.CreateProposal(ctx, proposal, nil))

	admin := env.cookie(t, auth.Principal{ID: "adm", Role: auth.RoleAdmin, Name: "Admin"})
	req := postForm("/admin/propostas/"+proposal.ID+"/status", url.Values{"status": {"aprovado"}})
	req.AddCookie(admin)
	rr := env.do(req)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	got, err := env.repo.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProposalApproved, got.Status)

	commissions, err := env.repo.ListCommissions(ctx, ports.CommissionFilter{BrokerID: b.ID})
	require.NoError(t, err)
	require.Len(t, commissions, 1)
	assert.Equal(t, int64(3500), commissions[0].Amount.Cents)
	assert.Equal(t, core.CommissionPending, commissions[0].Status)

	req = httptest.NewRequest(http.MethodGet, "/admin/propostas/"+proposal.ID, nil)
	req.AddCookie(admin)
	rr = env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "R$ 35,00")
}

func TestAdminProductWriteInvalidatesCatalog(t *testing.T) {
	env := newTestEnv(t)
	admin := env.cookie(t, auth.Principal{ID: "adm", Role: auth.RoleAdmin, Name: "Admin"})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Plano Prata")

	req := postForm("/admin/produtos", url.Values{
		"nome":      {"Plano Prata"},
		"operadora": {"SulAmérica"},
		"descricao": {"Enfermaria"},
		"comissao":  {"4,25"},
		"ativo":     {"on"},
	})
	req.AddCookie(admin)
	rr = env.do(req)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rr.Body.String(), "Plano Prata")

	products, err := env.repo.ListProducts(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 425, products[0].CommissionBps)
}

func TestAdminTableCreate_InvalidRows(t *testing.T) {
	env := newTestEnv(t)
	admin := env.cookie(t, auth.Principal{ID: "adm", Role: auth.RoleAdmin, Name: "Admin"})

	req := postForm("/admin/tabelas", url.Values{
		"nome":      {"Tabela"},
		"operadora": {"Amil"},
		"faixas":    {"0-18;189,90\nsem preço"},
	})
	req.AddCookie(admin)
	rr := env.do(req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "faixa;preço")

	tables, err := env.repo.ListPriceTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}
