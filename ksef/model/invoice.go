package model

import "time"

type HashSHA struct {
	Algorithm string `json:"algorithm"`
	Encoding  string `json:"encoding"`
	Value     string `json:"value"`
}

type InvoiceHash struct {
	HashSHA  HashSHA `json:"hashSHA"`
	FileSize int     `json:"fileSize"`
}

type InvoicePayload struct {
	Type        string `json:"type"`
	InvoiceBody string `json:"invoiceBody"`
}

type SendInvoiceRequest struct {
	InvoiceHash    InvoiceHash    `json:"invoiceHash"`
	InvoicePayload InvoicePayload `json:"invoicePayload"`

	// OfflineMode marks an invoice issued during KSeF unavailability.
	OfflineMode bool `json:"offlineMode"`
}

type SendInvoiceResponse struct {
	Timestamp              time.Time `json:"timestamp"`
	ReferenceNumber        string    `json:"referenceNumber"`
	ProcessingCode         int       `json:"processingCode"`
	ProcessingDescription  string    `json:"processingDescription"`
	ElementReferenceNumber string    `json:"elementReferenceNumber"`
}

type ExceptionDetail struct {
	ExceptionCode        int    `json:"exceptionCode"`
	ExceptionDescription string `json:"exceptionDescription"`
}

type Exception struct {
	ServiceCtx          string            `json:"serviceCtx"`
	ServiceCode         string            `json:"serviceCode"`
	Timestamp           time.Time         `json:"timestamp"`
	ExceptionDetailList []ExceptionDetail `json:"exceptionDetailList"`
}

type ExceptionResponse struct {
	Exception Exception `json:"exception"`
}
