// Package http provides HTTP server and handler implementations.
//
// This file binds url-encoded and multipart forms onto tagged structs and
// validates them with validator/v10, translating failures to Portuguese
// messages keyed by form field.

package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/services"
)

const dateLayout = "2006-01-02"

// FormErrors maps a form field name to the message shown next to it.
type FormErrors map[string]string

func (e FormErrors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e FormErrors) Any() bool { return len(e) > 0 }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	mustRegister(v, "cpf", func(fl validator.FieldLevel) bool {
		return core.ValidCPF(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return core.ValidPhone(fl.Field().String())
	})
	mustRegister(v, "brl", func(fl validator.FieldLevel) bool {
		_, err := core.ParseBRL(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// bindForm copies values into the string and int fields of dst tagged with
// `form`. Unparseable ints are left at zero for the validator to reject.
func bindForm(values url.Values, dst any) {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := rt.Field(i).Tag.Get("form")
		if name == "" || name == "-" {
			continue
		}
		raw := sanitizeInput(values.Get(name))
		field := rv.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int:
			if n, err := strconv.Atoi(raw); err == nil {
				field.SetInt(int64(n))
			}
		}
	}
}

// validateForm runs the struct tags and returns the per-field messages.
func validateForm(form any) FormErrors {
	errs := FormErrors{}
	err := validate.Struct(form)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("_form", "Formulário inválido")
		return errs
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), messageFor(fe))
	}
	return errs
}

func messageFor(fe validator.FieldError) string {
	isText := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Campo obrigatório"
	case "email":
		return "E-mail inválido"
	case "cpf":
		return "CPF inválido"
	case "phone":
		return "Telefone inválido"
	case "brl":
		return "Valor inválido"
	case "oneof":
		return "Opção inválida"
	case "datetime":
		return "Data inválida"
	case "eqfield":
		return "As senhas não conferem"
	case "min":
		if isText {
			return "Mínimo de " + fe.Param() + " caracteres"
		}
		return "O valor mínimo é " + fe.Param()
	case "max":
		if isText {
			return "Máximo de " + fe.Param() + " caracteres"
		}
		return "O valor máximo é " + fe.Param()
	default:
		return "Valor inválido"
	}
}

// domainMessage translates core validation errors that slip past the form tags.
func domainMessage(err error) (field, msg string) {
	switch {
	case errors.Is(err, core.ErrInvalidCPF):
		return "cpf", "CPF inválido"
	case errors.Is(err, core.ErrInvalidEmail):
		return "email", "E-mail inválido"
	case errors.Is(err, core.ErrInvalidPhone):
		return "telefone", "Telefone inválido"
	case errors.Is(err, core.ErrInvalidAmount):
		return "valor", "Valor inválido"
	case errors.Is(err, core.ErrEmptyName):
		return "nome", "Campo obrigatório"
	case errors.Is(err, core.ErrFileTooLarge):
		return "_form", "Arquivo maior que 5MB"
	case errors.Is(err, core.ErrUnsupportedFileType):
		return "_form", "Formato de arquivo não suportado (use PDF, JPG ou PNG)"
	case errors.Is(err, core.ErrEmptyFile):
		return "_form", "Arquivo vazio"
	case errors.Is(err, core.ErrEmptyPriceTable), errors.Is(err, core.ErrInvalidPriceRow):
		return "faixas", "Use uma faixa por linha no formato faixa;preço"
	case errors.Is(err, services.ErrMissingDocument):
		return "_form", "Envie os três documentos"
	case errors.Is(err, services.ErrEmailTaken):
		return "email", "E-mail já cadastrado"
	}
	return "", ""
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type leadForm struct {
	Name     string `form:"nome" validate:"required,max=120"`
	Email    string `form:"email" validate:"required,email,max=200"`
	Phone    string `form:"telefone" validate:"required,phone"`
	City     string `form:"cidade" validate:"max=120"`
	PlanType string `form:"tipo_plano" validate:"required,oneof=individual familiar empresarial"`
	Lives    int    `form:"vidas" validate:"min=1,max=999"`
	Message  string `form:"mensagem" validate:"max=2000"`
}

func (f leadForm) lead() core.Lead {
	return core.Lead{
		Name:     f.Name,
		Email:    f.Email,
		Phone:    f.Phone,
		City:     f.City,
		PlanType: core.PlanType(f.PlanType),
		Lives:    f.Lives,
		Message:  f.Message,
	}
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"senha" validate:"required"`
	Next     string `form:"next"`
}

type registerForm struct {
	Name     string `form:"nome" validate:"required,max=120"`
	Email    string `form:"email" validate:"required,email,max=200"`
	Phone    string `form:"telefone" validate:"required,phone"`
	CPF      string `form:"cpf" validate:"required,cpf"`
	Password string `form:"senha" validate:"required,min=8,max=72"`
	Confirm  string `form:"confirmar_senha" validate:"required,eqfield=Password"`
}

type proposalForm struct {
	ProductID   string `form:"produto_id" validate:"required"`
	ClientName  string `form:"cliente_nome" validate:"required,max=120"`
	ClientCPF   string `form:"cliente_cpf" validate:"required,cpf"`
	ClientEmail string `form:"cliente_email" validate:"omitempty,email,max=200"`
	ClientPhone string `form:"cliente_telefone" validate:"omitempty,phone"`
	BirthDate   string `form:"cliente_nascimento" validate:"omitempty,datetime=2006-01-02"`
	Value       string `form:"valor" validate:"required,brl"`
	Notes       string `form:"observacoes" validate:"max=2000"`
}

func (f proposalForm) proposal(brokerID string) core.Proposal {
	cents, _ := core.ParseBRL(f.Value)
	p := core.Proposal{
		BrokerID:    brokerID,
		ProductID:   f.ProductID,
		ClientName:  f.ClientName,
		ClientCPF:   strings.Map(keepDigit, f.ClientCPF),
		ClientEmail: strings.ToLower(f.ClientEmail),
		ClientPhone: core.NormalizePhone(f.ClientPhone),
		Value:       core.Money{Cents: cents},
		Notes:       f.Notes,
	}
	if t, err := time.Parse(dateLayout, f.BirthDate); err == nil {
		p.ClientBirthDate = &t
	}
	return p
}

type productForm struct {
	Name        string `form:"nome" validate:"required,max=120"`
	Carrier     string `form:"operadora" validate:"required,max=120"`
	Description string `form:"descricao" validate:"max=8000"`
	Commission  string `form:"comissao" validate:"required"`
	Active      string `form:"ativo"`
}

// commissionBps reads a percentage such as "3,5" or "3.50" as basis points.
func (f productForm) commissionBps() (int, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(f.Commission), "%"))
	if s != "" && strings.Trim(s, "0,.") == "" {
		return 0, true
	}
	cents, err := core.ParseBRL(s)
	if err != nil || cents > 10000 {
		return 0, false
	}
	return int(cents), true
}

type priceTableForm struct {
	Name      string `form:"nome" validate:"required,max=120"`
	Carrier   string `form:"operadora" validate:"required,max=120"`
	ProductID string `form:"produto_id"`
	Rows      string `form:"faixas" validate:"required"`
}

type paidForm struct {
	PaidAt string `form:"pago_em" validate:"omitempty,datetime=2006-01-02"`
}

func keepDigit(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

// readUpload reads one multipart file and sniffs its content type from the
// first bytes; the browser supplied type is ignored. ok is false when the
// field is absent.
func readUpload(r *http.Request, field string) (up services.Upload, closer io.Closer, ok bool, err error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return services.Upload{}, nil, false, nil
	}
	if err != nil {
		return services.Upload{}, nil, false, fmt.Errorf("read %s: %w", field, err)
	}
	return sniffUpload(file, header)
}

func sniffUpload(file multipart.File, header *multipart.FileHeader) (services.Upload, io.Closer, bool, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return services.Upload{}, nil, false, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return services.Upload{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	}, file, true, nil
}
