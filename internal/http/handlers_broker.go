package http

import (
	"errors"
	"io"
	"net/http"

	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/core"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/ports"
	"contratandoplanos/internal/services"
)

// maxProposalBody bounds the multipart body: three documents plus the fields.
const maxProposalBody = 3*core.MaxUploadBytes + 1<<20

type waitingView struct {
	Broker      core.Broker
	PollSeconds int
}

type proposalFormView struct {
	Form     proposalForm
	Errors   FormErrors
	Products []core.Product
}

type profileView struct {
	Broker core.Broker
	Error  string
}

type tableView struct {
	Table    core.PriceTable
	Product  *core.Product
	NotFound bool
}

func (s *Server) currentBroker(w http.ResponseWriter, r *http.Request) (core.Broker, bool) {
	b, ok := brokerFrom(r.Context())
	if !ok {
		s.serverError(w, r, "broker context", errors.New("broker missing from context"))
	}
	return b, ok
}

// handleBrokerWaiting shows the pending page, which polls handleBrokerStatus.
func (s *Server) handleBrokerWaiting(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	b, err := s.store.GetBroker(r.Context(), p.ID)
	if errors.Is(err, core.ErrNotFound) {
		s.clearSession(w)
		s.redirect(w, r, "/corretor/login")
		return
	}
	if err != nil {
		s.serverError(w, r, "load broker", err)
		return
	}
	switch b.Status {
	case core.BrokerApproved:
		http.Redirect(w, r, "/corretor/dashboard", http.StatusSeeOther)
		return
	case core.BrokerRejected:
		s.clearSession(w)
		http.Redirect(w, r, "/corretor/login?erro=reprovado", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "broker_waiting.html", "Cadastro em análise", waitingView{
		Broker:      b,
		PollSeconds: int(s.opts.StatusPollInterval.Seconds()),
	})
}

// handleBrokerStatus answers the waiting page poll.
func (s *Server) handleBrokerStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	b, err := s.store.GetBroker(r.Context(), p.ID)
	if errors.Is(err, core.ErrNotFound) {
		s.clearSession(w)
		s.redirect(w, r, "/corretor/login")
		return
	}
	if err != nil {
		s.serverError(w, r, "broker status", err)
		return
	}
	switch b.Status {
	case core.BrokerApproved:
		s.redirect(w, r, "/corretor/dashboard")
	case core.BrokerRejected:
		s.clearSession(w)
		s.redirect(w, r, "/corretor/login?erro=reprovado")
	default:
		s.renderPartial(w, r, NewHTMXResponse(), "broker_status", waitingView{
			Broker:      b,
			PollSeconds: int(s.opts.StatusPollInterval.Seconds()),
		})
	}
}

func (s *Server) handleBrokerDashboard(w http.ResponseWriter, r *http.Request) {
	b, ok := s.currentBroker(w, r)
	if !ok {
		return
	}
	stats, err := s.brokers.Dashboard(r.Context(), b.ID, s.now().In(saoPaulo))
	if err != nil {
		s.serverError(w, r, "dashboard", err)
		return
	}
	s.render(w, r, http.StatusOK, "broker_dashboard.html", "Painel", struct {
		Broker     core.Broker
		Stats      core.BrokerStats
		MaxMonthly int
	}{b, stats, stats.MaxMonthlyProposals()})
}

func (s *Server) handleBrokerProposals(w http.ResponseWriter, r *http.Request) {
	b, ok := s.currentBroker(w, r)
	if !ok {
		return
	}
	status := core.ProposalStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		status = ""
	}
	proposals, err := s.store.ListProposals(r.Context(), ports.ProposalFilter{BrokerID: b.ID, Status: status})
	if err != nil {
		s.serverError(w, r, "list proposals", err)
		return
	}
	products, err := s.store.ListProducts(r.Context(), false)
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}
	s.render(w, r, http.StatusOK, "broker_proposals.html", "Minhas propostas", struct {
		Proposals []core.Proposal
		Status    core.ProposalStatus
	}{core.JoinProducts(proposals, products), status})
}

func (s *Server) handleBrokerProposalForm(w http.ResponseWriter, r *http.Request) {
	products, err := s.activeProducts(r.Context())
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}
	view := proposalFormView{
		Form:     proposalForm{ProductID: r.URL.Query().Get("produto")},
		Errors:   FormErrors{},
		Products: products,
	}
	s.render(w, r, http.StatusOK, "broker_proposal_new.html", "Nova proposta", view)
}

// documentField is the multipart field carrying a document kind.
func documentField(kind core.DocumentKind) string {
	return "doc_" + string(kind)
}

func (s *Server) handleBrokerProposalCreate(w http.ResponseWriter, r *http.Request) {
	b, ok := s.currentBroker(w, r)
	if !ok {
		return
	}
	products, err := s.activeProducts(r.Context())
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProposalBody)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.renderError(w, r, http.StatusRequestEntityTooLarge, "Os arquivos excedem o limite de 5MB cada.")
			return
		}
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var form proposalForm
	bindForm(r.PostForm, &form)
	view := proposalFormView{Form: form, Errors: validateForm(form), Products: products}

	if form.ProductID != "" && !containsProduct(products, form.ProductID) {
		view.Errors.Add("produto_id", "Produto indisponível")
	}

	uploads := make(map[core.DocumentKind]services.Upload, 3)
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for _, kind := range core.DocumentKinds() {
		field := documentField(kind)
		up, closer, present, err := readUpload(r, field)
		if err != nil {
			s.serverError(w, r, "read upload", err)
			return
		}
		if !present {
			view.Errors.Add(field, "Envie o documento")
			continue
		}
		closers = append(closers, closer)
		if err := core.ValidateUpload(up.Size, up.ContentType); err != nil {
			_, msg := domainMessage(err)
			view.Errors.Add(field, msg)
			continue
		}
		uploads[kind] = up
	}

	if !view.Errors.Any() {
		p, err := s.proposals.Submit(r.Context(), form.proposal(b.ID), uploads)
		if err == nil {
			s.appMetrics.proposalsSubmitted.Add(1)
			applog.FromContext(r.Context()).InfoContext(r.Context(), "Proposal submitted",
				applog.FieldProposalID, p.ID,
				applog.FieldBrokerID, b.ID)
			s.redirect(w, r, "/corretor/propostas?msg=proposta-enviada")
			return
		}
		field, msg := domainMessage(err)
		if field == "" {
			s.serverError(w, r, "submit proposal", err)
			return
		}
		view.Errors.Add(field, msg)
	}

	s.render(w, r, http.StatusUnprocessableEntity, "broker_proposal_new.html", "Nova proposta", view)
}

func containsProduct(products []core.Product, id string) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) handleBrokerCommissions(w http.ResponseWriter, r *http.Request) {
	b, ok := s.currentBroker(w, r)
	if !ok {
		return
	}
	commissions, err := s.store.ListCommissions(r.Context(), ports.CommissionFilter{BrokerID: b.ID})
	if err != nil {
		s.serverError(w, r, "list commissions", err)
		return
	}
	s.render(w, r, http.StatusOK, "broker_commissions.html", "Minhas comissões", struct {
		Commissions []core.Commission
		Summary     core.CommissionSummary
	}{commissions, core.SummarizeCommissions(commissions)})
}

func (s *Server) handleBrokerTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListPriceTables(r.Context())
	if err != nil {
		s.serverError(w, r, "list price tables", err)
		return
	}
	s.render(w, r, http.StatusOK, "broker_tables.html", "Tabelas de preços", struct {
		Tables []core.PriceTable
	}{tables})
}

// handleBrokerTable shows one price table for printing. An unknown id keeps
// the page layout with "Tabela não encontrada" and a disabled print button.
func (s *Server) handleBrokerTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetPriceTable(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.render(w, r, http.StatusNotFound, "broker_table.html", "Tabela não encontrada", tableView{NotFound: true})
		return
	}
	if err != nil {
		s.serverError(w, r, "get price table", err)
		return
	}

	view := tableView{Table: t}
	if t.ProductID != "" {
		if p, err := s.store.GetProduct(r.Context(), t.ProductID); err == nil {
			view.Product = &p
		} else if !errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(r.Context(), "Failed to load table product",
				applog.FieldTableID, t.ID,
				applog.FieldError, err)
		}
	}
	s.render(w, r, http.StatusOK, "broker_table.html", t.Name, view)
}

func (s *Server) handleBrokerProfile(w http.ResponseWriter, r *http.Request) {
	b, ok := s.currentBroker(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "broker_profile.html", "Meu perfil", profileView{Broker: b})
}

func (s *Server) handleBrokerPhoto(w http.ResponseWriter, r *http.Request) {
	b, ok := s.currentBroker(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, core.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(core.MaxUploadBytes); err != nil {
		s.photoError(w, r, b, "Arquivo maior que 5MB", http.StatusRequestEntityTooLarge)
		return
	}
	defer r.MultipartForm.RemoveAll()

	up, closer, present, err := readUpload(r, "foto")
	if err != nil {
		s.serverError(w, r, "read photo", err)
		return
	}
	if !present {
		s.photoError(w, r, b, "Selecione uma foto", http.StatusUnprocessableEntity)
		return
	}
	defer closer.Close()

	url, err := s.brokers.UpdatePhoto(r.Context(), b.ID, up)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedFileType) {
			s.photoError(w, r, b, "Use uma imagem JPG ou PNG", http.StatusUnprocessableEntity)
			return
		}
		if _, msg := domainMessage(err); msg != "" {
			s.photoError(w, r, b, msg, http.StatusUnprocessableEntity)
			return
		}
		s.serverError(w, r, "update photo", err)
		return
	}
	b.PhotoURL = url

	if isHTMX(r) {
		s.renderPartial(w, r, NewHTMXResponse().TriggerSuccessNotification("Foto atualizada"), "broker_photo", profileView{Broker: b})
		return
	}
	http.Redirect(w, r, "/corretor/perfil?msg=foto-atualizada", http.StatusSeeOther)
}

func (s *Server) photoError(w http.ResponseWriter, r *http.Request, b core.Broker, msg string, status int) {
	data := profileView{Broker: b, Error: msg}
	if isHTMX(r) {
		s.renderPartial(w, r, NewHTMXResponse().Status(status), "broker_photo", data)
		return
	}
	s.render(w, r, status, "broker_profile.html", "Meu perfil", data)
}
