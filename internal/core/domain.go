package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	BrokerPending  BrokerStatus = "pendente"
	BrokerApproved BrokerStatus = "aprovado"
	BrokerRejected BrokerStatus = "rejeitado"

	ProposalPending  ProposalStatus = "pendente"
	ProposalApproved ProposalStatus = "aprovado"
	ProposalRejected ProposalStatus = "rejeitado"

	CommissionPending CommissionStatus = "pendente"
	CommissionPaid    CommissionStatus = "pago"

	DocIdentity  DocumentKind = "identidade"
	DocCPF       DocumentKind = "cpf"
	DocResidence DocumentKind = "comprovante_residencia"

	PlanIndividual PlanType = "individual"
	PlanFamily     PlanType = "familiar"
	PlanBusiness   PlanType = "empresarial"
)

type (
	BrokerStatus     string
	ProposalStatus   string
	CommissionStatus string
	DocumentKind     string
	PlanType         string

	// Broker is an independent agent (corretor) submitting proposals for clients.
	Broker struct {
		ID           string
		Name         string
		Email        string
		Phone        string
		CPF          string
		PasswordHash string
		Status       BrokerStatus
		PhotoURL     string
		CreatedAt    time.Time
		ApprovedAt   *time.Time
	}

	Admin struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Product is an insurance plan sold through brokers.
	// CommissionBps is the commission rate in basis points (350 = 3,50%).
	Product struct {
		ID            string
		Name          string
		Carrier       string
		Description   string
		CommissionBps int
		Active        bool
		CreatedAt     time.Time
	}

	Proposal struct {
		ID              string
		BrokerID        string
		ProductID       string
		ClientName      string
		ClientCPF       string
		ClientEmail     string
		ClientPhone     string
		ClientBirthDate *time.Time
		Value           Money
		Status          ProposalStatus
		Notes           string
		CreatedAt       time.Time
		UpdatedAt       time.Time

		// Filled by in-memory joins, never persisted.
		Product    *Product
		BrokerName string
	}

	Document struct {
		ID          string
		ProposalID  string
		BrokerID    string
		Kind        DocumentKind
		Key         string
		FileName    string
		ContentType string
		Size        int64
		CreatedAt   time.Time
	}

	Commission struct {
		ID         string
		BrokerID   string
		ProposalID string
		Amount     Money
		Status     CommissionStatus
		PaidAt     *time.Time
		CreatedAt  time.Time

		ClientName string
		BrokerName string
	}

	PriceRow struct {
		AgeRange string
		Price    Money
	}

	PriceTable struct {
		ID        string
		Name      string
		Carrier   string
		ProductID string
		CreatedAt time.Time
		Rows      []PriceRow
	}

	// Lead is a quote request captured on the public site.
	Lead struct {
		ID        string
		Name      string
		Email     string
		Phone     string
		City      string
		PlanType  PlanType
		Lives     int
		Message   string
		CreatedAt time.Time
		SyncedAt  *time.Time
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidCPF         = errors.New("invalid CPF")
	ErrInvalidPhone       = errors.New("invalid phone")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrMissingReference   = errors.New("missing reference")
	ErrInvalidRate        = errors.New("invalid commission rate")
	ErrEmptyCarrier       = errors.New("empty carrier")
	ErrEmptyPriceTable    = errors.New("price table has no rows")
	ErrInvalidPriceRow    = errors.New("invalid price row")
	ErrInvalidPlanType    = errors.New("invalid plan type")
	ErrInvalidLives       = errors.New("invalid number of lives")
	ErrInvalidDocKind     = errors.New("invalid document kind")
	ErrDescriptionTooLong = errors.New("text too long")
)

const maxTextLen = 2000

func (s BrokerStatus) Valid() bool {
	switch s {
	case BrokerPending, BrokerApproved, BrokerRejected:
		return true
	}
	return false
}

func (s BrokerStatus) Label() string {
	switch s {
	case BrokerApproved:
		return "Aprovado"
	case BrokerRejected:
		return "Reprovado"
	default:
		return "Em análise"
	}
}

func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalApproved, ProposalRejected:
		return true
	}
	return false
}

func (s ProposalStatus) Label() string {
	switch s {
	case ProposalApproved:
		return "Aprovada"
	case ProposalRejected:
		return "Rejeitada"
	default:
		return "Em análise"
	}
}

func (s CommissionStatus) Valid() bool {
	return s == CommissionPending || s == CommissionPaid
}

func (s CommissionStatus) Label() string {
	if s == CommissionPaid {
		return "Paga"
	}
	return "Pendente"
}

func (k DocumentKind) Valid() bool {
	switch k {
	case DocIdentity, DocCPF, DocResidence:
		return true
	}
	return false
}

func (k DocumentKind) Label() string {
	switch k {
	case DocIdentity:
		return "Documento de identidade"
	case DocCPF:
		return "CPF"
	case DocResidence:
		return "Comprovante de residência"
	}
	return string(k)
}

// DocumentKinds lists the documents a proposal carries, in display order.
func DocumentKinds() []DocumentKind {
	return []DocumentKind{DocIdentity, DocCPF, DocResidence}
}

func (p PlanType) Valid() bool {
	switch p {
	case PlanIndividual, PlanFamily, PlanBusiness:
		return true
	}
	return false
}

func (p PlanType) Label() string {
	switch p {
	case PlanIndividual:
		return "Individual"
	case PlanFamily:
		return "Familiar"
	case PlanBusiness:
		return "Empresarial"
	}
	return string(p)
}

func (b Broker) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if !validEmail(b.Email) {
		return ErrInvalidEmail
	}
	if !ValidCPF(b.CPF) {
		return ErrInvalidCPF
	}
	if !ValidPhone(b.Phone) {
		return ErrInvalidPhone
	}
	if !b.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Approved reports whether the broker may use the portal.
func (b Broker) Approved() bool {
	return b.Status == BrokerApproved
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Carrier) == "" {
		return ErrEmptyCarrier
	}
	if p.CommissionBps < 0 || p.CommissionBps > 10000 {
		return ErrInvalidRate
	}
	if len(p.Description) > 4*maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// CommissionLabel renders the commission rate as a Brazilian percentage, e.g. "3,50%".
func (p Product) CommissionLabel() string {
	return fmt.Sprintf("%d,%02d%%", p.CommissionBps/100, p.CommissionBps%100)
}

func (p Proposal) Validate() error {
	if strings.TrimSpace(p.BrokerID) == "" || strings.TrimSpace(p.ProductID) == "" {
		return ErrMissingReference
	}
	if strings.TrimSpace(p.ClientName) == "" {
		return ErrEmptyName
	}
	if !ValidCPF(p.ClientCPF) {
		return ErrInvalidCPF
	}
	if p.ClientEmail != "" && !validEmail(p.ClientEmail) {
		return ErrInvalidEmail
	}
	if p.ClientPhone != "" && !ValidPhone(p.ClientPhone) {
		return ErrInvalidPhone
	}
	if p.Value.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if len(p.Notes) > maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (d Document) Validate() error {
	if d.ProposalID == "" || d.BrokerID == "" || d.Key == "" {
		return ErrMissingReference
	}
	if !d.Kind.Valid() {
		return ErrInvalidDocKind
	}
	return ValidateUpload(d.Size, d.ContentType)
}

func (c Commission) Validate() error {
	if c.BrokerID == "" || c.ProposalID == "" {
		return ErrMissingReference
	}
	if c.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (t PriceTable) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(t.Carrier) == "" {
		return ErrEmptyCarrier
	}
	if len(t.Rows) == 0 {
		return ErrEmptyPriceTable
	}
	for _, r := range t.Rows {
		if strings.TrimSpace(r.AgeRange) == "" || r.Price.Cents <= 0 {
			return ErrInvalidPriceRow
		}
	}
	return nil
}

// ParsePriceRows reads one "faixa;preço" pair per line, e.g. "0-18;189,90".
// Blank lines are skipped.
func ParsePriceRows(text string) ([]PriceRow, error) {
	var rows []PriceRow
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidPriceRow)
		}
		cents, err := ParseBRL(parts[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidPriceRow)
		}
		rows = append(rows, PriceRow{AgeRange: strings.TrimSpace(parts[0]), Price: Money{Cents: cents}})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyPriceTable
	}
	return rows, nil
}

func (l Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if !validEmail(l.Email) {
		return ErrInvalidEmail
	}
	if !ValidPhone(l.Phone) {
		return ErrInvalidPhone
	}
	if !l.PlanType.Valid() {
		return ErrInvalidPlanType
	}
	if l.Lives < 1 || l.Lives > 999 {
		return ErrInvalidLives
	}
	if len(l.Message) > maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// Synced reports whether the lead was already exported.
func (l Lead) Synced() bool {
	return l.SyncedAt != nil
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ErrNotFound is returned by stores when a single record lookup matches nothing.
var ErrNotFound = errors.New("not found")
