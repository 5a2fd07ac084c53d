package offline

import (
	"context"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef"
	"github.com/alapierre/go-ksef-offline/ksef/invoice"
	"github.com/alapierre/go-ksef-offline/ksef/qr"
	"github.com/alapierre/go-ksef-offline/ksef/sign"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "ksef.offline")

// GenerateInput describes one offline invoice to issue. Seller NIP, issue
// date and invoice number are parsed from the XML when not supplied;
// caller-supplied values win over parsed ones.
type GenerateInput struct {
	XML  []byte
	Mode Mode

	// Reason overrides DefaultReason(Mode) when non-empty.
	Reason string

	SellerNip     string
	BuyerNip      string
	InvoiceNumber string
	IssueDate     time.Time

	MaintenanceWindow *MaintenanceWindow

	// Credential signs KOD II; mandatory, offline invoices always carry it.
	Credential *sign.Credential

	// Context optionally overrides the KOD II context identifier.
	Context *qr.Context
}

// Generator issues offline invoice records: verification codes, deadline,
// initial GENERATED status, persisted via the store.
type Generator struct {
	builder *qr.Builder
	store   Store
	clock   clockwork.Clock
}

type GeneratorOption func(*Generator)

func WithGeneratorClock(c clockwork.Clock) GeneratorOption {
	return func(g *Generator) { g.clock = c }
}

func WithBuilder(b *qr.Builder) GeneratorOption {
	return func(g *Generator) { g.builder = b }
}

func NewGenerator(env ksef.Environment, store Store, opts ...GeneratorOption) *Generator {
	g := &Generator{
		builder: qr.NewBuilder(env),
		store:   store,
		clock:   clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate builds verification codes for the invoice, computes the
// submission deadline and persists a new record in status GENERATED.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*Record, error) {
	if len(in.XML) == 0 {
		return nil, ksef.NewValidationError("invoice XML is empty")
	}
	if !in.Mode.Valid() {
		return nil, ksef.NewValidationError("invalid offline mode")
	}

	sellerNip := in.SellerNip
	buyerNip := in.BuyerNip
	number := in.InvoiceNumber
	issueDate := in.IssueDate

	if sellerNip == "" || number == "" || issueDate.IsZero() {
		meta, err := invoice.ParseMetadata(in.XML)
		if err != nil {
			return nil, err
		}
		if sellerNip == "" {
			sellerNip = meta.SellerNip
		}
		if buyerNip == "" {
			buyerNip = meta.BuyerNip
		}
		if number == "" {
			number = meta.Number
		}
		if issueDate.IsZero() {
			issueDate = meta.IssueDate
		}
	}

	codes, err := g.builder.Build(qr.InvoiceData{
		SellerNip: sellerNip,
		IssueDate: issueDate,
		XML:       in.XML,
		Offline:   true,
		Context:   in.Context,
	}, in.Credential)
	if err != nil {
		return nil, err
	}

	reason := in.Reason
	if reason == "" {
		reason = DefaultReason(in.Mode)
	}

	now := g.clock.Now().UTC()

	record := &Record{
		ID:            uuid.NewString(),
		Mode:          in.Mode,
		Reason:        reason,
		InvoiceNumber: number,
		InvoiceXML:    append([]byte(nil), in.XML...),
		SellerNip:     sellerNip,
		BuyerNip:      buyerNip,
		Codes:         *codes,
		GeneratedAt:   now,
		SubmitBy:      CalculateDeadline(in.Mode, now, in.MaintenanceWindow),
		Status:        StatusGenerated,
	}
	if in.MaintenanceWindow != nil {
		record.MaintenanceWindowID = in.MaintenanceWindow.ID
	}

	if err := g.store.Save(ctx, record); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"record_id": record.ID,
		"invoice":   record.InvoiceNumber,
		"mode":      record.Mode.String(),
		"submit_by": record.SubmitBy,
	}).Info("Generated offline invoice record")

	return record, nil
}
