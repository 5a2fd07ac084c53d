// Package qr builds the two KSeF verification codes: KOD I, always present,
// identifying the invoice, and KOD II, present only for offline invoices,
// backed by an offline certificate signature.
package qr

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef"
	"github.com/alapierre/go-ksef-offline/ksef/sign"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "qr")

type ContextIdentifierType string

const (
	CtxNip        ContextIdentifierType = "Nip"
	CtxInternalId ContextIdentifierType = "InternalId"
	CtxNipVatUe   ContextIdentifierType = "NipVatUe"
)

// OfflineMarker is the literal terminal segment marking an invoice issued
// without a KSeF reference number.
const OfflineMarker = "OFFLINE"

// Kod2Label is the fixed caption displayed under the KOD II code.
const Kod2Label = "CERTYFIKAT"

type Slot int

const (
	KodI Slot = iota + 1
	KodII
)

func (s Slot) String() string {
	switch s {
	case KodI:
		return "KOD I"
	case KodII:
		return "KOD II"
	}
	return "Unknown"
}

// Code is a single verification code ready to print on the invoice.
type Code struct {
	Slot  Slot
	Label string
	URL   string
	Image Image

	// CertificateSerial is set only for KOD II.
	CertificateSerial string
}

// Codes groups the verification codes of one invoice. KodII is nil for
// invoices issued online.
type Codes struct {
	KodI  Code
	KodII *Code
}

// Context overrides the default KOD II context identifier (seller NIP).
type Context struct {
	Type  ContextIdentifierType
	Value string
}

// InvoiceData is the invoice-side input for building verification codes.
type InvoiceData struct {
	SellerNip string
	IssueDate time.Time
	XML       []byte

	// Offline marks an invoice issued without prior KSeF confirmation.
	Offline bool

	// KsefNumber is the KSeF reference number, required for online invoices.
	KsefNumber string

	// Context optionally overrides the KOD II context identifier.
	Context *Context
}

type Builder struct {
	env      ksef.Environment
	renderer Renderer
	width    int
	format   ImageFormat
}

type BuilderOption func(*Builder)

func WithRenderer(r Renderer) BuilderOption {
	return func(b *Builder) { b.renderer = r }
}

func WithImage(format ImageFormat, width int) BuilderOption {
	return func(b *Builder) {
		b.format = format
		b.width = width
	}
}

func NewBuilder(env ksef.Environment, opts ...BuilderOption) *Builder {
	b := &Builder{
		env:      env,
		renderer: NewRenderer(),
		width:    300,
		format:   FormatPNG,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// KodI builds the first verification code:
// https://{qr-env}/client-app/invoice/{NIP}/{DD-MM-YYYY}/{terminal} where terminal is
// the KSeF reference number for an online invoice, or the OFFLINE marker
// followed by Base64URL(SHA256(xml)) for an offline one.
func (b *Builder) KodI(inv InvoiceData) (*Code, error) {
	nip, err := ksef.NormalizeNip(inv.SellerNip)
	if err != nil {
		return nil, err
	}
	if inv.IssueDate.IsZero() {
		return nil, ksef.NewValidationError("invoice issue date is required")
	}

	var terminal, label string
	switch {
	case inv.Offline:
		if len(inv.XML) == 0 {
			return nil, ksef.NewValidationError("invoice XML is required for an offline verification code")
		}
		terminal = OfflineMarker + "/" + invoiceHashBase64URL(inv.XML)
		label = OfflineMarker
	case inv.KsefNumber != "":
		terminal = inv.KsefNumber
		label = inv.KsefNumber
	default:
		return nil, ksef.NewValidationError("online invoice requires a KSeF reference number")
	}

	base := trimTrailingSlash(b.env.VerificationBaseURL())
	date := inv.IssueDate.Format("02-01-2006") // dd-MM-yyyy

	url := fmt.Sprintf("%s/client-app/invoice/%s/%s/%s", base, nip, date, terminal)

	image, err := b.renderer.Render(url, b.format, b.width)
	if err != nil {
		return nil, err
	}

	return &Code{Slot: KodI, Label: label, URL: url, Image: image}, nil
}

// KodII builds the certificate-backed verification code and signs
// "{host}{path}" (no scheme, no trailing slash) with the offline credential.
func (b *Builder) KodII(inv InvoiceData, cred *sign.Credential) (*Code, error) {
	if cred == nil {
		return nil, ksef.NewValidationError("offline certificate required")
	}
	if cred.Type != sign.Offline {
		return nil, ksef.NewValidationError("credential type %s cannot sign verification codes, Offline required", cred.Type)
	}
	if cred.Serial == "" {
		return nil, ksef.NewValidationError("credential has no certificate serial number")
	}

	nip, err := ksef.NormalizeNip(inv.SellerNip)
	if err != nil {
		return nil, err
	}

	ctxType, ctxValue := CtxNip, nip
	if inv.Context != nil {
		ctxType = inv.Context.Type
		ctxValue = inv.Context.Value
	}

	base := trimTrailingSlash(b.env.VerificationBaseURL())

	path := fmt.Sprintf("/client-app/certificate/%s/%s/%s/%s", string(ctxType), ctxValue, nip, cred.Serial)

	hostPath := stripScheme(base) + path
	logger.Debugf("TO_SIGN: %s", hostPath)

	token, err := sign.Sign(hostPath, cred)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s/%s", base, path, token)

	image, err := b.renderer.Render(url, b.format, b.width)
	if err != nil {
		return nil, err
	}

	return &Code{
		Slot:              KodII,
		Label:             Kod2Label,
		URL:               url,
		Image:             image,
		CertificateSerial: cred.Serial,
	}, nil
}

// Build produces the full code set for one invoice. For an offline invoice
// a credential is mandatory and KOD II must succeed.
func (b *Builder) Build(inv InvoiceData, cred *sign.Credential) (*Codes, error) {
	kod1, err := b.KodI(inv)
	if err != nil {
		return nil, err
	}

	codes := &Codes{KodI: *kod1}

	if !inv.Offline {
		return codes, nil
	}

	if cred == nil {
		return nil, ksef.NewValidationError("offline certificate required")
	}

	kod2, err := b.KodII(inv, cred)
	if err != nil {
		return nil, err
	}
	codes.KodII = kod2

	return codes, nil
}

func invoiceHashBase64URL(invoiceXML []byte) string {
	sum := sha256.Sum256(invoiceXML)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func stripScheme(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[i+3:]
	}
	return url
}

func trimTrailingSlash(s string) string {
	return strings.TrimRight(s, "/")
}
