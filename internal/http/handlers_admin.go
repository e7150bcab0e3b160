package http

import (
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"contratandoplanos/internal/core"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/objectstore"
	"contratandoplanos/internal/ports"
	"contratandoplanos/internal/services"
)

const (
	adminListLimit    = 200
	overviewLeadLimit = 5
)

type overviewView struct {
	PendingBrokers   []core.Broker
	PendingProposals []core.Proposal
	Commissions      core.CommissionSummary
	RecentLeads      []core.Lead
	ActiveProducts   int
}

type productFormView struct {
	ID     string
	Form   productForm
	Errors FormErrors
}

type tableFormView struct {
	Form     priceTableForm
	Errors   FormErrors
	Products []core.Product
}

// handleAdminOverview loads the back-office counters concurrently.
func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	var view overviewView
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		view.PendingBrokers, err = s.store.ListBrokers(ctx, core.BrokerPending)
		return err
	})
	g.Go(func() (err error) {
		view.PendingProposals, err = s.store.ListProposals(ctx, ports.ProposalFilter{Status: core.ProposalPending})
		return err
	})
	g.Go(func() error {
		commissions, err := s.store.ListCommissions(ctx, ports.CommissionFilter{})
		view.Commissions = core.SummarizeCommissions(commissions)
		return err
	})
	g.Go(func() (err error) {
		view.RecentLeads, err = s.store.ListLeads(ctx, overviewLeadLimit)
		return err
	})
	g.Go(func() error {
		products, err := s.activeProducts(ctx)
		view.ActiveProducts = len(products)
		return err
	})
	if err := g.Wait(); err != nil {
		s.serverError(w, r, "admin overview", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_overview.html", "Painel administrativo", view)
}

// Brokers

func (s *Server) handleAdminBrokers(w http.ResponseWriter, r *http.Request) {
	status := core.BrokerStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		status = ""
	}
	brokers, err := s.brokers.List(r.Context(), status)
	if err != nil {
		s.serverError(w, r, "list brokers", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_brokers.html", "Corretores", struct {
		Brokers []core.Broker
		Status  core.BrokerStatus
	}{brokers, status})
}

func (s *Server) handleAdminBrokerStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status := core.BrokerStatus(r.FormValue("status"))
	if err := s.brokers.SetStatus(r.Context(), id, status); err != nil {
		s.adminWriteError(w, r, "set broker status", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Broker status changed",
		applog.FieldBrokerID, id,
		applog.FieldStatus, string(status))

	if isHTMX(r) {
		b, err := s.brokers.Get(r.Context(), id)
		if err != nil {
			s.serverError(w, r, "reload broker", err)
			return
		}
		s.renderPartial(w, r, NewHTMXResponse().TriggerSuccessNotification("Corretor "+strings.ToLower(status.Label())), "admin_broker_row", b)
		return
	}
	http.Redirect(w, r, "/admin/corretores?msg=status-atualizado", http.StatusSeeOther)
}

func (s *Server) handleAdminBrokerDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.brokers.Delete(r.Context(), id); err != nil {
		s.adminWriteError(w, r, "delete broker", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Broker deleted", applog.FieldBrokerID, id)
	s.afterDelete(w, r, "Corretor excluído", "/admin/corretores?msg=corretor-excluido")
}

// Proposals

func (s *Server) handleAdminProposals(w http.ResponseWriter, r *http.Request) {
	status := core.ProposalStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		status = ""
	}
	proposals, err := s.store.ListProposals(r.Context(), ports.ProposalFilter{Status: status})
	if err != nil {
		s.serverError(w, r, "list proposals", err)
		return
	}
	products, err := s.store.ListProducts(r.Context(), false)
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_proposals.html", "Propostas", struct {
		Proposals []core.Proposal
		Status    core.ProposalStatus
	}{core.JoinProducts(proposals, products), status})
}

func (s *Server) handleAdminProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProposal(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Proposta não encontrada")
		return
	}
	if err != nil {
		s.serverError(w, r, "get proposal", err)
		return
	}

	var (
		links      []services.DocumentLink
		commission *core.Commission
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		links, err = s.proposals.DocumentLinks(ctx, p.ID)
		return err
	})
	g.Go(func() error {
		product, err := s.store.GetProduct(ctx, p.ProductID)
		if err == nil {
			p.Product = &product
		}
		return err
	})
	g.Go(func() error {
		commissions, err := s.store.ListCommissions(ctx, ports.CommissionFilter{BrokerID: p.BrokerID})
		for i := range commissions {
			if commissions[i].ProposalID == p.ID {
				commission = &commissions[i]
			}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		s.serverError(w, r, "proposal detail", err)
		return
	}

	s.render(w, r, http.StatusOK, "admin_proposal.html", "Proposta de "+p.ClientName, struct {
		Proposal   core.Proposal
		Links      []services.DocumentLink
		Commission *core.Commission
		Statuses   []core.ProposalStatus
	}{p, links, commission, []core.ProposalStatus{core.ProposalPending, core.ProposalApproved, core.ProposalRejected}})
}

func (s *Server) handleAdminProposalStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status := core.ProposalStatus(r.FormValue("status"))
	if err := s.proposals.SetStatus(r.Context(), id, status); err != nil {
		s.adminWriteError(w, r, "set proposal status", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Proposal status changed",
		applog.FieldProposalID, id,
		applog.FieldStatus, string(status))

	target := "/admin/propostas/" + id + "?msg=status-atualizado"
	if isHTMX(r) {
		NewHTMXResponse().TriggerProposalUpdated(id, string(status)).Redirect(target).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleAdminProposalDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.proposals.Delete(r.Context(), id); err != nil {
		s.adminWriteError(w, r, "delete proposal", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Proposal deleted", applog.FieldProposalID, id)
	s.redirect(w, r, "/admin/propostas?msg=proposta-excluida")
}

// Commissions

func (s *Server) handleAdminCommissions(w http.ResponseWriter, r *http.Request) {
	status := core.CommissionStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		status = ""
	}
	commissions, err := s.store.ListCommissions(r.Context(), ports.CommissionFilter{Status: status})
	if err != nil {
		s.serverError(w, r, "list commissions", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_commissions.html", "Comissões", struct {
		Commissions []core.Commission
		Summary     core.CommissionSummary
		Status      core.CommissionStatus
	}{commissions, core.SummarizeCommissions(commissions), status})
}

// handleAdminCommissionPaid marks a commission paid on the given date, today
// when the field is empty.
func (s *Server) handleAdminCommissionPaid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return
	}
	var form paidForm
	bindForm(r.PostForm, &form)
	if errs := validateForm(form); errs.Any() {
		s.renderError(w, r, http.StatusUnprocessableEntity, "Data de pagamento inválida")
		return
	}

	paidAt := s.now()
	if form.PaidAt != "" {
		d, err := time.ParseInLocation(dateLayout, form.PaidAt, saoPaulo)
		if err != nil {
			s.renderError(w, r, http.StatusUnprocessableEntity, "Data de pagamento inválida")
			return
		}
		paidAt = d.Add(12 * time.Hour)
	}

	if err := s.store.MarkCommissionPaid(r.Context(), id, paidAt); err != nil {
		s.adminWriteError(w, r, "mark commission paid", err)
		return
	}

	if isHTMX(r) {
		c, err := s.store.GetCommission(r.Context(), id)
		if err != nil {
			s.serverError(w, r, "reload commission", err)
			return
		}
		s.renderPartial(w, r, NewHTMXResponse().TriggerCommissionPaid(id), "admin_commission_row", c)
		return
	}
	http.Redirect(w, r, "/admin/comissoes?msg=comissao-paga", http.StatusSeeOther)
}

// Documents

func (s *Server) handleAdminDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListAllDocuments(r.Context(), adminListLimit)
	if err != nil {
		s.serverError(w, r, "list documents", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_documents.html", "Documentos", struct {
		Documents []core.Document
	}{docs})
}

// handleAdminDocumentDownload streams a document as an attachment.
func (s *Server) handleAdminDocumentDownload(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDocument(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Documento não encontrado")
		return
	}
	if err != nil {
		s.serverError(w, r, "get document", err)
		return
	}

	body, contentType, err := s.objects.Get(r.Context(), d.Key)
	if errors.Is(err, objectstore.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Arquivo não encontrado no armazenamento")
		return
	}
	if err != nil {
		s.serverError(w, r, "download document", err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = d.ContentType
	}
	name := d.FileName
	if name == "" {
		name = string(d.Kind) + core.UploadExtension(d.ContentType)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if d.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		s.logger.WarnContext(r.Context(), "Document stream interrupted",
			applog.FieldDocumentID, d.ID,
			applog.FieldError, err)
	}
}

func (s *Server) handleAdminDocumentDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.proposals.DeleteDocument(r.Context(), id); err != nil {
		s.adminWriteError(w, r, "delete document", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Document deleted", applog.FieldDocumentID, id)
	s.afterDelete(w, r, "Documento excluído", "/admin/documentos?msg=documento-excluido")
}

// Leads

func (s *Server) handleAdminLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.leads.Recent(r.Context(), adminListLimit)
	if err != nil {
		s.serverError(w, r, "list leads", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_leads.html", "Leads", struct {
		Leads []core.Lead
	}{leads})
}

// Products

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context(), false)
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_products.html", "Produtos", struct {
		Products []core.Product
	}{products})
}

func (s *Server) handleAdminProductNew(w http.ResponseWriter, r *http.Request) {
	view := productFormView{Form: productForm{Active: "on"}, Errors: FormErrors{}}
	s.render(w, r, http.StatusOK, "admin_product_form.html", "Novo produto", view)
}

func (s *Server) handleAdminProductEdit(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProduct(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Produto não encontrado")
		return
	}
	if err != nil {
		s.serverError(w, r, "get product", err)
		return
	}
	form := productForm{
		Name:        p.Name,
		Carrier:     p.Carrier,
		Description: p.Description,
		Commission:  strings.TrimSuffix(p.CommissionLabel(), "%"),
	}
	if p.Active {
		form.Active = "on"
	}
	s.render(w, r, http.StatusOK, "admin_product_form.html", "Editar produto", productFormView{ID: p.ID, Form: form, Errors: FormErrors{}})
}

func (s *Server) handleAdminProductCreate(w http.ResponseWriter, r *http.Request) {
	s.saveProduct(w, r, core.Product{ID: uuid.NewString(), CreatedAt: s.now().UTC()}, true)
}

func (s *Server) handleAdminProductUpdate(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProduct(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Produto não encontrado")
		return
	}
	if err != nil {
		s.serverError(w, r, "get product", err)
		return
	}
	s.saveProduct(w, r, p, false)
}

func (s *Server) saveProduct(w http.ResponseWriter, r *http.Request, p core.Product, create bool) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return
	}
	var form productForm
	bindForm(r.PostForm, &form)
	view := productFormView{Form: form, Errors: validateForm(form)}
	title := "Novo produto"
	if !create {
		view.ID = p.ID
		title = "Editar produto"
	}

	bps, ok := form.commissionBps()
	if !ok {
		view.Errors.Add("comissao", "Informe um percentual entre 0 e 100")
	}
	if view.Errors.Any() {
		s.render(w, r, http.StatusUnprocessableEntity, "admin_product_form.html", title, view)
		return
	}

	p.Name = form.Name
	p.Carrier = form.Carrier
	p.Description = form.Description
	p.CommissionBps = bps
	p.Active = form.Active != ""
	if err := p.Validate(); err != nil {
		view.Errors.Add("_form", "Produto inválido")
		s.render(w, r, http.StatusUnprocessableEntity, "admin_product_form.html", title, view)
		return
	}

	var err error
	if create {
		err = s.store.CreateProduct(r.Context(), p)
	} else {
		err = s.store.UpdateProduct(r.Context(), p)
	}
	if err != nil {
		s.serverError(w, r, "save product", err)
		return
	}
	s.catalog.Invalidate()
	http.Redirect(w, r, "/admin/produtos?msg=produto-salvo", http.StatusSeeOther)
}

// handleAdminProductPreview renders the markdown description being edited.
func (s *Server) handleAdminProductPreview(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, r, NewHTMXResponse(), "markdown_preview", struct {
		HTML template.HTML
	}{s.markdown.Render(r.FormValue("descricao"))})
}

func (s *Server) handleAdminProductToggle(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProduct(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Produto não encontrado")
		return
	}
	if err != nil {
		s.serverError(w, r, "get product", err)
		return
	}
	p.Active = !p.Active
	if err := s.store.UpdateProduct(r.Context(), p); err != nil {
		s.serverError(w, r, "toggle product", err)
		return
	}
	s.catalog.Invalidate()
	s.redirect(w, r, "/admin/produtos?msg=produto-salvo")
}

// Price tables

func (s *Server) handleAdminTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListPriceTables(r.Context())
	if err != nil {
		s.serverError(w, r, "list price tables", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_tables.html", "Tabelas de preços", struct {
		Tables []core.PriceTable
	}{tables})
}

func (s *Server) handleAdminTableNew(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context(), false)
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_table_form.html", "Nova tabela", tableFormView{Errors: FormErrors{}, Products: products})
}

func (s *Server) handleAdminTableCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return
	}
	products, err := s.store.ListProducts(r.Context(), false)
	if err != nil {
		s.serverError(w, r, "list products", err)
		return
	}

	var form priceTableForm
	bindForm(r.PostForm, &form)
	view := tableFormView{Form: form, Errors: validateForm(form), Products: products}

	if form.ProductID != "" && !containsProduct(products, form.ProductID) {
		view.Errors.Add("produto_id", "Produto não encontrado")
	}
	rows, err := core.ParsePriceRows(form.Rows)
	if err != nil && form.Rows != "" {
		_, msg := domainMessage(err)
		view.Errors.Add("faixas", msg)
	}
	if view.Errors.Any() {
		s.render(w, r, http.StatusUnprocessableEntity, "admin_table_form.html", "Nova tabela", view)
		return
	}

	t := core.PriceTable{
		ID:        uuid.NewString(),
		Name:      form.Name,
		Carrier:   form.Carrier,
		ProductID: form.ProductID,
		CreatedAt: s.now().UTC(),
		Rows:      rows,
	}
	if err := t.Validate(); err != nil {
		_, msg := domainMessage(err)
		view.Errors.Add("faixas", msg)
		s.render(w, r, http.StatusUnprocessableEntity, "admin_table_form.html", "Nova tabela", view)
		return
	}
	if err := s.store.CreatePriceTable(r.Context(), t); err != nil {
		s.serverError(w, r, "create price table", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Price table created",
		applog.FieldTableID, t.ID,
		applog.FieldCount, len(rows))
	http.Redirect(w, r, "/admin/tabelas?msg=tabela-salva", http.StatusSeeOther)
}

func (s *Server) handleAdminTableDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePriceTable(r.Context(), id); err != nil {
		s.adminWriteError(w, r, "delete price table", err)
		return
	}
	s.afterDelete(w, r, "Tabela excluída", "/admin/tabelas?msg=tabela-excluida")
}

// afterDelete removes the htmx row (empty body) or redirects a plain form post.
func (s *Server) afterDelete(w http.ResponseWriter, r *http.Request, notice, target string) {
	if isHTMX(r) {
		NewHTMXResponse().TriggerSuccessNotification(notice).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// adminWriteError maps a failed back-office write to 404, 422 or 500.
func (s *Server) adminWriteError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "Registro não encontrado")
	case errors.Is(err, core.ErrInvalidStatus):
		s.renderError(w, r, http.StatusUnprocessableEntity, "Status inválido")
	default:
		s.serverError(w, r, operation, err)
	}
}
