package types

import (
	"encoding/json"
	"time"
)

type User struct {
	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	JoinedAt     time.Time
	UpdatedAt    time.Time
}

type Subscription struct {
	ID            int64
	UserID        int64
	TariffName    string
	StartDate     time.Time
	EndDate       time.Time
	IsActive      bool
	PaymentID     string
	PaymentMethod PaymentMethod
	PaymentAmount float64
}

// PaymentDetails carries what the activation writes into the subscription row.
type PaymentDetails struct {
	PaymentID string
	Method    PaymentMethod
	Amount    float64
}

// MonthlyUsage is the current-calendar-month aggregate over daily usage rows.
type MonthlyUsage struct {
	Photos     int
	Documents  int
	AIRequests int
}

func (u MonthlyUsage) For(kind ResourceKind) int {
	switch kind {
	case ResourcePhoto:
		return u.Photos
	case ResourceDocument:
		return u.Documents
	case ResourceAIRequest:
		return u.AIRequests
	default:
		return 0
	}
}

type TariffDefinition struct {
	Name            string
	DisplayName     string
	Description     string
	MonthlyPhotos   int
	MonthlyDocs     int
	MonthlyAI       int
	PriceRub        int
	PriceStars      int
	PrioritySupport bool
	Features        []string
}

func (t TariffDefinition) Quota(kind ResourceKind) int {
	switch kind {
	case ResourcePhoto:
		return t.MonthlyPhotos
	case ResourceDocument:
		return t.MonthlyDocs
	case ResourceAIRequest:
		return t.MonthlyAI
	default:
		return 0
	}
}

// InvoicePayload is echoed through the payment provider and decoded back on
// confirmation to correlate the payment with a (user, tariff) attempt.
type InvoicePayload struct {
	Tariff    string        `json:"tariff"`
	UserID    int64         `json:"user_id"`
	Method    PaymentMethod `json:"payment_method,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

func (p InvoicePayload) Encode() string {
	data, _ := json.Marshal(p)
	return string(data)
}

func DecodeInvoicePayload(s string) (InvoicePayload, error) {
	var p InvoicePayload
	err := json.Unmarshal([]byte(s), &p)
	return p, err
}
