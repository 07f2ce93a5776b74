package cryptopay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmmrfll/owl-ai-backend/types"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, types.InvoiceConfirmed, ClassifyStatus("paid"))
	assert.Equal(t, types.InvoiceConfirmed, ClassifyStatus(" PAID "))
	assert.Equal(t, types.InvoicePending, ClassifyStatus("active"))
	assert.Equal(t, types.InvoiceExpired, ClassifyStatus("expired"))
	assert.Equal(t, types.InvoiceUnknown, ClassifyStatus("refunded"))
	assert.Equal(t, types.InvoiceUnknown, ClassifyStatus(""))
}

func TestCreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/createInvoice", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Crypto-Pay-API-Token"))
		fmt.Fprint(w, `{"ok":true,"result":{"invoice_id":123,"status":"active","amount":"370","bot_invoice_url":"https://t.me/pay/123"}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	inv, err := c.CreateInvoice(context.Background(), CreateInvoiceParams{
		CurrencyType: "fiat",
		Fiat:         "RUB",
		Amount:       "370",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(123), inv.InvoiceID)
	assert.Equal(t, "https://t.me/pay/123", inv.BotInvoiceURL)
}

func TestGetInvoiceByIDDirectHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123", r.URL.Query().Get("invoice_ids"))
		fmt.Fprint(w, `{"ok":true,"result":{"items":[{"invoice_id":123,"status":"paid"}]}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	inv, err := c.GetInvoiceByID(context.Background(), "123")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "paid", inv.Status)
}

func TestGetInvoiceByIDFallbackScan(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.RawQuery)
		// direct lookup and the short scan come back empty, the paid scan
		// finally carries the invoice
		if r.URL.Query().Get("status") == "paid" {
			fmt.Fprint(w, `{"ok":true,"result":{"items":[{"invoice_id":77,"status":"paid"}]}}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"items":[]}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	inv, err := c.GetInvoiceByID(context.Background(), "77")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, int64(77), inv.InvoiceID)
	assert.Len(t, calls, 4)
}

func TestGetInvoiceByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"items":[]}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	inv, err := c.GetInvoiceByID(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, inv)
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"error":{"code":401,"name":"UNAUTHORIZED"}}`)
	}))
	defer srv.Close()

	c := NewClient("bad", srv.URL)
	_, err := c.GetInvoices(context.Background(), InvoicesFilter{Count: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNAUTHORIZED")
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient("", "")
	assert.False(t, c.Configured())
	_, err := c.CreateInvoice(context.Background(), CreateInvoiceParams{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
