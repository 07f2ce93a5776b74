package types

type ResourceKind string

const (
	ResourcePhoto     ResourceKind = "photo"
	ResourceDocument  ResourceKind = "document"
	ResourceAIRequest ResourceKind = "ai_request"
)

func ParseResourceKind(s string) (ResourceKind, bool) {
	switch ResourceKind(s) {
	case ResourcePhoto, ResourceDocument, ResourceAIRequest:
		return ResourceKind(s), true
	default:
		return "", false
	}
}

type PaymentMethod string

const (
	MethodCrypto PaymentMethod = "crypto"
	MethodStars  PaymentMethod = "stars"
	MethodCard   PaymentMethod = "card"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case MethodCrypto, MethodStars, MethodCard:
		return PaymentMethod(s), true
	default:
		return "", false
	}
}

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceConfirmed InvoiceStatus = "confirmed"
	InvoiceExpired   InvoiceStatus = "expired"
	InvoiceUnknown   InvoiceStatus = "unknown"
)

// UnlimitedQuota is the catalog sentinel for "no monthly cap".
const UnlimitedQuota = -1
