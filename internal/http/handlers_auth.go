package http

import (
	"errors"
	"net/http"
	"strings"

	"contratandoplanos/internal/auth"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/services"
)

type loginView struct {
	Form   loginForm
	Errors FormErrors
	Notice string
	Action string
}

type registerView struct {
	Form   registerForm
	Errors FormErrors
}

const msgRejected = "Seu cadastro foi reprovado. Entre em contato com a corretora."

func (s *Server) handleBrokerLoginForm(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.principal(r); ok && p.Role == auth.RoleBroker {
		http.Redirect(w, r, "/corretor/dashboard", http.StatusSeeOther)
		return
	}
	view := loginView{
		Form:   loginForm{Next: r.URL.Query().Get("next")},
		Errors: FormErrors{},
		Action: "/corretor/login",
	}
	if r.URL.Query().Get("erro") == "reprovado" {
		view.Notice = msgRejected
	}
	s.render(w, r, http.StatusOK, "broker_login.html", "Área do corretor", view)
}

func (s *Server) handleBrokerLogin(w http.ResponseWriter, r *http.Request) {
	view, ok := s.parseLogin(w, r, "/corretor/login")
	if !ok {
		return
	}
	if view.Errors.Any() {
		s.render(w, r, http.StatusUnprocessableEntity, "broker_login.html", "Área do corretor", view)
		return
	}

	b, err := s.brokers.Authenticate(r.Context(), view.Form.Email, view.Form.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		view.Errors.Add("_form", "E-mail ou senha incorretos.")
		s.render(w, r, http.StatusUnauthorized, "broker_login.html", "Área do corretor", view)
		return
	case errors.Is(err, services.ErrBrokerRejected):
		view.Errors.Add("_form", msgRejected)
		s.render(w, r, http.StatusForbidden, "broker_login.html", "Área do corretor", view)
		return
	case err != nil:
		s.serverError(w, r, "broker login", err)
		return
	}

	if err := s.setSession(w, auth.Principal{ID: b.ID, Role: auth.RoleBroker, Name: b.Name}); err != nil {
		s.serverError(w, r, "issue session", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Broker signed in",
		applog.FieldBrokerID, b.ID,
		applog.FieldOperation, applog.OpLogin)

	if !b.Approved() {
		s.redirect(w, r, "/corretor/aguardando")
		return
	}
	s.redirect(w, r, safeNext(view.Form.Next, "/corretor/", "/corretor/dashboard"))
}

func (s *Server) handleBrokerRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "broker_register.html", "Cadastro de corretor", registerView{Errors: FormErrors{}})
}

// handleBrokerRegister creates a pending broker and signs them in to the
// waiting page.
func (s *Server) handleBrokerRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return
	}
	var form registerForm
	bindForm(r.PostForm, &form)
	view := registerView{Form: form, Errors: validateForm(form)}

	if !view.Errors.Any() {
		b, err := s.brokers.Register(r.Context(), services.Registration{
			Name:     form.Name,
			Email:    form.Email,
			Phone:    form.Phone,
			CPF:      form.CPF,
			Password: form.Password,
		})
		if err == nil {
			if err := s.setSession(w, auth.Principal{ID: b.ID, Role: auth.RoleBroker, Name: b.Name}); err != nil {
				s.serverError(w, r, "issue session", err)
				return
			}
			applog.FromContext(r.Context()).InfoContext(r.Context(), "Broker registered",
				applog.FieldBrokerID, b.ID)
			s.redirect(w, r, "/corretor/aguardando")
			return
		}
		field, msg := domainMessage(err)
		if field == "" {
			s.serverError(w, r, "register broker", err)
			return
		}
		view.Errors.Add(field, msg)
	}

	// Never echo passwords back.
	view.Form.Password, view.Form.Confirm = "", ""
	s.render(w, r, http.StatusUnprocessableEntity, "broker_register.html", "Cadastro de corretor", view)
}

func (s *Server) handleAdminLoginForm(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.principal(r); ok && p.Role == auth.RoleAdmin {
		http.Redirect(w, r, "/admin/painel", http.StatusSeeOther)
		return
	}
	view := loginView{
		Form:   loginForm{Next: r.URL.Query().Get("next")},
		Errors: FormErrors{},
		Action: "/admin/login",
	}
	s.render(w, r, http.StatusOK, "admin_login.html", "Administração", view)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	view, ok := s.parseLogin(w, r, "/admin/login")
	if !ok {
		return
	}
	if view.Errors.Any() {
		s.render(w, r, http.StatusUnprocessableEntity, "admin_login.html", "Administração", view)
		return
	}

	a, err := s.admins.Authenticate(r.Context(), view.Form.Email, view.Form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Admin login failed",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		view.Errors.Add("_form", "E-mail ou senha incorretos.")
		s.render(w, r, http.StatusUnauthorized, "admin_login.html", "Administração", view)
		return
	}
	if err != nil {
		s.serverError(w, r, "admin login", err)
		return
	}

	if err := s.setSession(w, auth.Principal{ID: a.ID, Role: auth.RoleAdmin, Name: a.Name}); err != nil {
		s.serverError(w, r, "issue session", err)
		return
	}
	s.redirect(w, r, safeNext(view.Form.Next, "/admin/", "/admin/painel"))
}

func (s *Server) parseLogin(w http.ResponseWriter, r *http.Request, action string) (loginView, bool) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulário inválido")
		return loginView{}, false
	}
	var form loginForm
	bindForm(r.PostForm, &form)
	form.Email = strings.ToLower(form.Email)
	return loginView{Form: form, Errors: validateForm(form), Action: action}, true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w)
	s.redirect(w, r, "/")
}
