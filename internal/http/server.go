package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/cache"
	"contratandoplanos/internal/core"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/markdown"
	"contratandoplanos/internal/middleware/ratelimit"
	"contratandoplanos/internal/middleware/security"
	"contratandoplanos/internal/middleware/trace"
	"contratandoplanos/internal/ports"
	"contratandoplanos/internal/services"
	appweb "contratandoplanos/web"
)

const catalogKey = "produtos:ativos"

// Options are the server settings taken from config.
type Options struct {
	Addr               string
	SecureCookies      bool
	RateLimitPerMinute int
	StatusPollInterval time.Duration
	CatalogCacheTTL    time.Duration
	// ImageSources are origins allowed to serve <img> content (the bucket).
	ImageSources []string
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Store      ports.Store
	Objects    ports.ObjectStorage
	Leads      *services.LeadService
	Proposals  *services.ProposalService
	Brokers    *services.BrokerService
	Admins     *services.AdminService
	Sessions   *auth.Sessions
	Authorizer *auth.Authorizer
	Markdown   *markdown.Renderer
	Logger     *applog.Logger
}

type Server struct {
	http.Server

	logger     *applog.Logger
	store      ports.Store
	objects    ports.ObjectStorage
	leads      *services.LeadService
	proposals  *services.ProposalService
	brokers    *services.BrokerService
	admins     *services.AdminService
	sessions   *auth.Sessions
	authorizer *auth.Authorizer
	markdown   *markdown.Renderer

	pages    map[string]*template.Template
	partials *template.Template

	catalog          *cache.Loader[[]core.Product]
	cacheManager     *cache.Manager
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	opts         Options
	appMetrics   *appMetrics
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer parses templates, wires the middleware chain and registers routes.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Objects == nil || deps.Sessions == nil || deps.Authorizer == nil {
		return nil, errors.New("http server: store, objects, sessions and authorizer are required")
	}
	if opts.StatusPollInterval <= 0 {
		opts.StatusPollInterval = 30 * time.Second
	}
	if opts.CatalogCacheTTL <= 0 {
		opts.CatalogCacheTTL = 5 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	md := deps.Markdown
	if md == nil {
		md = markdown.NewRenderer()
	}

	catalogCache := cache.NewLRUCache[[]core.Product](4, opts.CatalogCacheTTL)
	manager := cache.NewManager()
	manager.Register(catalogCache)

	s := &Server{
		logger:           logger.WithComponent(applog.ComponentHTTP),
		store:            deps.Store,
		objects:          deps.Objects,
		leads:            deps.Leads,
		proposals:        deps.Proposals,
		brokers:          deps.Brokers,
		admins:           deps.Admins,
		sessions:         deps.Sessions,
		authorizer:       deps.Authorizer,
		markdown:         md,
		catalog:          cache.NewLoader[[]core.Product](catalogCache),
		cacheManager:     manager,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute, Methods: []string{http.MethodPost}}),
		securityDetector: security.NewDetector(),
		opts:             opts,
		appMetrics:       &appMetrics{uptime: time.Now()},
		now:              time.Now,
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, quietPath)

	if err := s.parseTemplates(appweb.TemplatesFS); err != nil {
		s.rateLimiter.Stop()
		return nil, err
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.ImageSources = opts.ImageSources

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(headersCfg).Middleware(handler)
	handler = applog.Middleware(s.logger, trace.RequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	manager.StartCleanup(10 * time.Minute)
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServerFS(sub))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Public site
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /produtos/{id}", s.handleProduct)
	mux.HandleFunc("GET /cotacao", s.handleQuoteForm)
	mux.HandleFunc("POST /cotacao", s.handleQuoteSubmit)

	// Broker session
	mux.HandleFunc("GET /corretor/login", s.handleBrokerLoginForm)
	mux.HandleFunc("POST /corretor/login", s.handleBrokerLogin)
	mux.HandleFunc("GET /corretor/cadastro", s.handleBrokerRegisterForm)
	mux.HandleFunc("POST /corretor/cadastro", s.handleBrokerRegister)
	mux.HandleFunc("POST /corretor/sair", s.handleLogout)
	mux.Handle("GET /corretor/aguardando", s.brokerAny(s.handleBrokerWaiting))
	mux.Handle("GET /corretor/status", s.brokerAny(s.handleBrokerStatus))

	// Broker portal
	mux.Handle("GET /corretor/{$}", s.brokerOnly(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/corretor/dashboard", http.StatusSeeOther)
	}))
	mux.Handle("GET /corretor/dashboard", s.brokerOnly(s.handleBrokerDashboard))
	mux.Handle("GET /corretor/propostas", s.brokerOnly(s.handleBrokerProposals))
	mux.Handle("GET /corretor/propostas/nova", s.brokerOnly(s.handleBrokerProposalForm))
	mux.Handle("POST /corretor/propostas", s.brokerOnly(s.handleBrokerProposalCreate))
	mux.Handle("GET /corretor/comissoes", s.brokerOnly(s.handleBrokerCommissions))
	mux.Handle("GET /corretor/tabelas", s.brokerOnly(s.handleBrokerTables))
	mux.Handle("GET /corretor/tabelas/{id}", s.brokerOnly(s.handleBrokerTable))
	mux.Handle("GET /corretor/perfil", s.brokerOnly(s.handleBrokerProfile))
	mux.Handle("POST /corretor/perfil/foto", s.brokerOnly(s.handleBrokerPhoto))

	// Admin back-office
	mux.HandleFunc("GET /admin/login", s.handleAdminLoginForm)
	mux.HandleFunc("POST /admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /admin/sair", s.handleLogout)
	mux.Handle("GET /admin/{$}", s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/painel", http.StatusSeeOther)
	}))
	mux.Handle("GET /admin/painel", s.adminOnly(s.handleAdminOverview))
	mux.Handle("GET /admin/corretores", s.adminOnly(s.handleAdminBrokers))
	mux.Handle("POST /admin/corretores/{id}/status", s.adminOnly(s.handleAdminBrokerStatus))
	mux.Handle("POST /admin/corretores/{id}/excluir", s.adminOnly(s.handleAdminBrokerDelete))
	mux.Handle("GET /admin/propostas", s.adminOnly(s.handleAdminProposals))
	mux.Handle("GET /admin/propostas/{id}", s.adminOnly(s.handleAdminProposal))
	mux.Handle("POST /admin/propostas/{id}/status", s.adminOnly(s.handleAdminProposalStatus))
	mux.Handle("POST /admin/propostas/{id}/excluir", s.adminOnly(s.handleAdminProposalDelete))
	mux.Handle("GET /admin/comissoes", s.adminOnly(s.handleAdminCommissions))
	mux.Handle("POST /admin/comissoes/{id}/pagar", s.adminOnly(s.handleAdminCommissionPaid))
	mux.Handle("GET /admin/documentos", s.adminOnly(s.handleAdminDocuments))
	mux.Handle("GET /admin/documentos/{id}/download", s.adminOnly(s.handleAdminDocumentDownload))
	mux.Handle("POST /admin/documentos/{id}/excluir", s.adminOnly(s.handleAdminDocumentDelete))
	mux.Handle("GET /admin/leads", s.adminOnly(s.handleAdminLeads))
	mux.Handle("GET /admin/produtos", s.adminOnly(s.handleAdminProducts))
	mux.Handle("GET /admin/produtos/novo", s.adminOnly(s.handleAdminProductNew))
	mux.Handle("POST /admin/produtos", s.adminOnly(s.handleAdminProductCreate))
	mux.Handle("POST /admin/produtos/preview", s.adminOnly(s.handleAdminProductPreview))
	mux.Handle("GET /admin/produtos/{id}/editar", s.adminOnly(s.handleAdminProductEdit))
	mux.Handle("POST /admin/produtos/{id}", s.adminOnly(s.handleAdminProductUpdate))
	mux.Handle("POST /admin/produtos/{id}/ativo", s.adminOnly(s.handleAdminProductToggle))
	mux.Handle("GET /admin/tabelas", s.adminOnly(s.handleAdminTables))
	mux.Handle("GET /admin/tabelas/nova", s.adminOnly(s.handleAdminTableNew))
	mux.Handle("POST /admin/tabelas", s.adminOnly(s.handleAdminTableCreate))
	mux.Handle("POST /admin/tabelas/{id}/excluir", s.adminOnly(s.handleAdminTableDelete))

	// Stored files, for the local backend and for streaming from S3.
	mux.Handle("GET /arquivos/{key...}", security.NoStore(s.authorize("", http.HandlerFunc(s.handleFile))))

	mux.HandleFunc("/", s.handleNotFound)
}

// quietPath keeps probes and assets out of the request log.
func quietPath(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/static/")
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, "Muitas tentativas. Aguarde um minuto e tente novamente.").Write(w)
		return
	}
	s.renderError(w, r, http.StatusTooManyRequests, "Muitas tentativas. Aguarde um minuto e tente novamente.")
}

// activeProducts reads the public catalog through the cache.
func (s *Server) activeProducts(ctx context.Context) ([]core.Product, error) {
	return s.catalog.Get(ctx, catalogKey, func(ctx context.Context) ([]core.Product, error) {
		s.appMetrics.catalogLoads.Add(1)
		products, err := s.store.ListProducts(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("list active products: %w", err)
		}
		return products, nil
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
