package http

import (
	"errors"
	"net/http"

	"contratandoplanos/internal/core"
	applog "contratandoplanos/internal/log"
)

type quoteView struct {
	Form     leadForm
	Errors   FormErrors
	Products []core.Product
	Lead     *core.Lead
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	products, err := s.activeProducts(r.Context())
	if err != nil {
		s.serverError(w, r, "home", err)
		return
	}
	s.render(w, r, http.StatusOK, "home.html", "Planos de saúde", struct {
		Products []core.Product
	}{products})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProduct(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) || (err == nil && !p.Active) {
		s.renderError(w, r, http.StatusNotFound, "Produto não encontrado")
		return
	}
	if err != nil {
		s.serverError(w, r, "product", err)
		return
	}
	s.render(w, r, http.StatusOK, "product.html", p.Name, p)
}

func (s *Server) handleQuoteForm(w http.ResponseWriter, r *http.Request) {
	form := leadForm{PlanType: string(core.PlanIndividual), Lives: 1}
	if plan := r.URL.Query().Get("plano"); core.PlanType(plan).Valid() {
		form.PlanType = plan
	}
	s.render(w, r, http.StatusOK, "quote.html", "Solicite sua cotação", quoteView{Form: form, Errors: FormErrors{}})
}

// handleQuoteSubmit captures a lead. htmx posts get fragments back; plain
// posts get the full page.
func (s *Server) handleQuoteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return
	}
	var form leadForm
	bindForm(r.PostForm, &form)

	errs := validateForm(form)
	if !errs.Any() {
		lead, err := s.leads.Create(r.Context(), form.lead())
		if err == nil {
			s.appMetrics.leadsCreated.Add(1)
			applog.FromContext(r.Context()).InfoContext(r.Context(), "Lead captured",
				applog.FieldLeadID, lead.ID)
			view := quoteView{Form: form, Errors: errs, Lead: &lead}
			if isHTMX(r) {
				s.renderPartial(w, r, NewHTMXResponse().
					Status(http.StatusCreated).
					TriggerLeadCreated(lead.ID).
					TriggerSuccessNotification("Recebemos seu pedido de cotação!"), "lead_success", view)
				return
			}
			s.render(w, r, http.StatusCreated, "quote.html", "Cotação recebida", view)
			return
		}
		field, msg := domainMessage(err)
		if field == "" {
			s.serverError(w, r, "create lead", err)
			return
		}
		errs.Add(field, msg)
	}

	view := quoteView{Form: form, Errors: errs}
	if isHTMX(r) {
		s.renderPartial(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "quote_form", view)
		return
	}
	s.render(w, r, http.StatusUnprocessableEntity, "quote.html", "Solicite sua cotação", view)
}
