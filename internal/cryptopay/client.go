// Package cryptopay is a minimal client for the Crypto Pay API
// (https://pay.crypt.bot). Only the calls the payment flow needs are
// implemented: invoice creation and invoice lookup.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hmmrfll/owl-ai-backend/types"
)

const DefaultBaseURL = "https://pay.crypt.bot/api"

// Remote invoice statuses as the API reports them.
const (
	StatusActive  = "active"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

var ErrNotConfigured = errors.New("cryptopay: API token not configured")

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(token, baseURL string) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Configured() bool {
	return c.token != ""
}

type Invoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Fiat          string `json:"fiat"`
	BotInvoiceURL string `json:"bot_invoice_url"`
	Payload       string `json:"payload"`
	CreatedAt     string `json:"created_at"`
}

type CreateInvoiceParams struct {
	CurrencyType   string `json:"currency_type"`
	Fiat           string `json:"fiat,omitempty"`
	AcceptedAssets string `json:"accepted_assets,omitempty"`
	Amount         string `json:"amount"`
	Description    string `json:"description,omitempty"`
	HiddenMessage  string `json:"hidden_message,omitempty"`
	PaidBtnName    string `json:"paid_btn_name,omitempty"`
	PaidBtnURL     string `json:"paid_btn_url,omitempty"`
	Payload        string `json:"payload,omitempty"`
	AllowComments  bool   `json:"allow_comments"`
	AllowAnonymous bool   `json:"allow_anonymous"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("cryptopay: API error %d (%s)", e.Code, e.Name)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("cryptopay: malformed response: %w", err)
	}
	if !envelope.OK {
		if envelope.Error != nil {
			return envelope.Error
		}
		return fmt.Errorf("cryptopay: request failed with HTTP %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(envelope.Result, out)
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/getMe", nil, nil, nil)
}

func (c *Client) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	var inv Invoice
	if err := c.do(ctx, http.MethodPost, "/createInvoice", nil, params, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

type InvoicesFilter struct {
	InvoiceIDs string
	Status     string
	Count      int
}

func (c *Client) GetInvoices(ctx context.Context, filter InvoicesFilter) ([]Invoice, error) {
	query := url.Values{}
	if filter.InvoiceIDs != "" {
		query.Set("invoice_ids", filter.InvoiceIDs)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Count > 0 {
		query.Set("count", strconv.Itoa(filter.Count))
	}

	var result struct {
		Items []Invoice `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/getInvoices", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// GetInvoiceByID looks an invoice up directly and falls back to scanning the
// recent listings when the direct lookup comes back empty. The API sometimes
// omits older invoices from the by-id filter, hence the widening scans.
func (c *Client) GetInvoiceByID(ctx context.Context, invoiceID string) (*Invoice, error) {
	invoices, err := c.GetInvoices(ctx, InvoicesFilter{InvoiceIDs: invoiceID})
	if err != nil {
		return nil, err
	}
	if inv := findInvoice(invoices, invoiceID); inv != nil {
		return inv, nil
	}

	invoices, err = c.GetInvoices(ctx, InvoicesFilter{Count: 10})
	if err != nil {
		return nil, err
	}
	if inv := findInvoice(invoices, invoiceID); inv != nil {
		return inv, nil
	}

	for _, status := range []string{StatusActive, StatusPaid} {
		invoices, err = c.GetInvoices(ctx, InvoicesFilter{Status: status, Count: 100})
		if err != nil {
			return nil, err
		}
		if inv := findInvoice(invoices, invoiceID); inv != nil {
			return inv, nil
		}
	}

	return nil, nil
}

func findInvoice(invoices []Invoice, invoiceID string) *Invoice {
	for i := range invoices {
		if strconv.FormatInt(invoices[i].InvoiceID, 10) == invoiceID {
			return &invoices[i]
		}
	}
	return nil
}

// ClassifyStatus maps a remote invoice status onto the tracker's lifecycle.
// Anything unrecognized is unknown, never a false "expired".
func ClassifyStatus(remote string) types.InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case StatusPaid:
		return types.InvoiceConfirmed
	case StatusActive:
		return types.InvoicePending
	case StatusExpired:
		return types.InvoiceExpired
	default:
		return types.InvoiceUnknown
	}
}
