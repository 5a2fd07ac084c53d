// Package invoice extracts the metadata needed for verification codes and
// offline records from FA(2)/FA(3) structured invoice XML.
package invoice

import (
	"time"

	"github.com/alapierre/go-ksef-offline/ksef"
	"github.com/beevik/etree"
)

// Metadata is the subset of invoice fields the offline engine needs.
type Metadata struct {
	Number    string
	SellerNip string
	BuyerNip  string
	IssueDate time.Time
}

// ParseMetadata reads seller NIP (Podmiot1), optional buyer NIP (Podmiot2),
// issue date (Fa/P_1) and invoice number (Fa/P_2) from the invoice document.
func ParseMetadata(invoiceXML []byte) (*Metadata, error) {
	if len(invoiceXML) == 0 {
		return nil, ksef.NewValidationError("invoice XML is empty")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(invoiceXML); err != nil {
		return nil, ksef.NewValidationError("cannot parse invoice XML: %v", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "Faktura" {
		return nil, ksef.NewValidationError("invoice XML has no Faktura root element")
	}

	m := &Metadata{}

	if e := root.FindElement("Podmiot1/DaneIdentyfikacyjne/NIP"); e != nil {
		m.SellerNip = e.Text()
	}
	if m.SellerNip == "" {
		return nil, ksef.NewValidationError("invoice XML is missing seller NIP (Podmiot1)")
	}

	if e := root.FindElement("Podmiot2/DaneIdentyfikacyjne/NIP"); e != nil {
		m.BuyerNip = e.Text()
	}

	fa := root.FindElement("Fa")
	if fa == nil {
		return nil, ksef.NewValidationError("invoice XML is missing Fa element")
	}

	if e := fa.FindElement("P_1"); e != nil {
		d, err := time.Parse("2006-01-02", e.Text())
		if err != nil {
			return nil, ksef.NewValidationError("invalid issue date %q: %v", e.Text(), err)
		}
		m.IssueDate = d
	} else {
		return nil, ksef.NewValidationError("invoice XML is missing issue date (P_1)")
	}

	if e := fa.FindElement("P_2"); e != nil {
		m.Number = e.Text()
	}
	if m.Number == "" {
		return nil, ksef.NewValidationError("invoice XML is missing invoice number (P_2)")
	}

	return m, nil
}
