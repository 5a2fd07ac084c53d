// Package api is the HTTP client for submitting offline invoices to KSeF.
// Retry, backoff and rate limiting are deliberately left to the caller.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef"
	"github.com/alapierre/go-ksef-offline/ksef/model"
	"github.com/alapierre/go-ksef-offline/ksef/offline"
	"github.com/alapierre/go-ksef-offline/ksef/util"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "ksef.api")

// acceptedProcessingCode is returned by KSeF once the invoice passed
// semantic verification.
const acceptedProcessingCode = 200

type Client struct {
	rest *resty.Client
	env  ksef.Environment
}

type Option func(*Client)

// WithToken sets the bearer access token for authorised calls.
func WithToken(token string) Option {
	return func(c *Client) { c.rest.SetAuthToken(token) }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.rest = resty.NewWithClient(httpClient).SetBaseURL(c.env.BaseURL()) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rest.SetTimeout(d) }
}

func New(env ksef.Environment, opts ...Option) *Client {
	c := &Client{
		rest: resty.New().SetBaseURL(env.BaseURL()).SetTimeout(30 * time.Second),
		env:  env,
	}
	for _, o := range opts {
		o(c)
	}
	if util.DebugEnabled() {
		c.rest.SetDebug(true)
	}
	if util.HttpTraceEnabled() {
		c.rest.EnableTrace()
	}
	return c
}

// SendOfflineInvoice submits a single offline invoice document.
func (c *Client) SendOfflineInvoice(ctx context.Context, content []byte) (*model.SendInvoiceResponse, error) {

	logger.WithField("size", len(content)).Debug("Sending offline invoice")

	res := &model.SendInvoiceResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(prepareSendInvoiceRequest(content)).
		SetResult(res).
		Post("/invoices/send")

	if err != nil {
		return nil, fmt.Errorf("send offline invoice: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return res, nil
}

// Submit implements offline.Submitter on top of SendOfflineInvoice.
func (c *Client) Submit(ctx context.Context, invoiceXML []byte) (offline.SubmitResult, error) {
	res, err := c.SendOfflineInvoice(ctx, invoiceXML)
	if err != nil {
		return offline.SubmitResult{}, err
	}
	return offline.SubmitResult{
		ReferenceNumber: res.ReferenceNumber,
		Accepted:        res.ProcessingCode == acceptedProcessingCode,
	}, nil
}

func prepareSendInvoiceRequest(content []byte) *model.SendInvoiceRequest {

	digest := sha256.Sum256(content)

	return &model.SendInvoiceRequest{
		InvoiceHash: model.InvoiceHash{
			HashSHA: model.HashSHA{
				Algorithm: "SHA-256",
				Encoding:  "Base64",
				Value:     base64.StdEncoding.EncodeToString(digest[:]),
			},
			FileSize: len(content),
		},
		InvoicePayload: model.InvoicePayload{
			Type:        "plain",
			InvoiceBody: base64.StdEncoding.EncodeToString(content),
		},
		OfflineMode: true,
	}
}

func checkError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}

	reqErr := &RequestError{
		StatusCode: resp.StatusCode(),
		Message:    resp.Status(),
		Body:       resp.String(),
	}

	var ex model.ExceptionResponse
	if err := json.Unmarshal(resp.Body(), &ex); err == nil && len(ex.Exception.ExceptionDetailList) > 0 {
		detail := ex.Exception.ExceptionDetailList[0]
		reqErr.Code = strconv.Itoa(detail.ExceptionCode)
		reqErr.Message = detail.ExceptionDescription
	}

	return reqErr
}
