// Package callback defines the typed command set behind inline-button data.
//
// The wire grammar is a flat underscore-delimited token sequence kept for
// compatibility with existing keyboards. Parsing is strict: every argument
// is validated against a closed shape before a command is produced, and
// anything malformed is rejected instead of being indexed into blindly.
package callback

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/hmmrfll/owl-ai-backend/types"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSubscriptionMenu
	KindTariffDetails
	KindSelectTariff
	KindPay
	KindCheckPayment
	KindCheckStarsPayment
	KindInitiateStarsPayment
	KindInitiateCardPayment
	KindBackToMain
)

type Command struct {
	Kind      Kind
	Tariff    string
	Method    types.PaymentMethod
	InvoiceID string
	UserID    int64
}

const (
	tokenSubscriptionMenu     = "subscription_menu"
	tokenBackToMain           = "back_to_main"
	prefixTariff              = "tariff_"
	prefixSelect              = "select_"
	prefixPay                 = "pay_"
	prefixCheckPayment        = "check_payment_"
	prefixCheckStarsPayment   = "check_stars_payment_"
	prefixInitiateStarsPaymnt = "initiate_stars_payment_"
	prefixInitiateCardPayment = "initiate_card_payment_"
)

// Argument shapes. Tariff names deliberately exclude the delimiter so the
// flat grammar stays unambiguous.
var (
	tariffRe  = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	invoiceRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	userIDRe  = regexp.MustCompile(`^[0-9]{1,19}$`)
)

func Parse(data string) (Command, error) {
	switch data {
	case tokenSubscriptionMenu:
		return Command{Kind: KindSubscriptionMenu}, nil
	case tokenBackToMain:
		return Command{Kind: KindBackToMain}, nil
	}

	if rest, ok := cut(data, prefixCheckStarsPayment); ok {
		tariff, user, ok := cutLast(rest)
		if !ok || !tariffRe.MatchString(tariff) || !userIDRe.MatchString(user) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		userID, err := strconv.ParseInt(user, 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		return Command{Kind: KindCheckStarsPayment, Tariff: tariff, UserID: userID}, nil
	}
	if rest, ok := cut(data, prefixCheckPayment); ok {
		if !invoiceRe.MatchString(rest) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		return Command{Kind: KindCheckPayment, InvoiceID: rest}, nil
	}
	if rest, ok := cut(data, prefixInitiateStarsPaymnt); ok {
		if !tariffRe.MatchString(rest) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		return Command{Kind: KindInitiateStarsPayment, Tariff: rest}, nil
	}
	if rest, ok := cut(data, prefixInitiateCardPayment); ok {
		if !tariffRe.MatchString(rest) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		return Command{Kind: KindInitiateCardPayment, Tariff: rest}, nil
	}
	if rest, ok := cut(data, prefixPay); ok {
		methodTok, tariff, ok := cutFirst(rest)
		if !ok || !tariffRe.MatchString(tariff) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		method, ok := types.ParsePaymentMethod(methodTok)
		if !ok {
			return Command{}, fmt.Errorf("unsupported payment method: %q", methodTok)
		}
		return Command{Kind: KindPay, Method: method, Tariff: tariff}, nil
	}
	if rest, ok := cut(data, prefixTariff); ok {
		if !tariffRe.MatchString(rest) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		return Command{Kind: KindTariffDetails, Tariff: rest}, nil
	}
	if rest, ok := cut(data, prefixSelect); ok {
		if !tariffRe.MatchString(rest) {
			return Command{}, fmt.Errorf("malformed callback data: %q", data)
		}
		return Command{Kind: KindSelectTariff, Tariff: rest}, nil
	}

	return Command{}, fmt.Errorf("unknown callback data: %q", data)
}

// Encoders used when building keyboards. Keeping them next to the parser
// guarantees both sides agree on the grammar.

func SubscriptionMenu() string { return tokenSubscriptionMenu }
func BackToMain() string       { return tokenBackToMain }

func TariffDetails(tariff string) string { return prefixTariff + tariff }
func SelectTariff(tariff string) string  { return prefixSelect + tariff }

func Pay(method types.PaymentMethod, tariff string) string {
	return prefixPay + string(method) + "_" + tariff
}

func CheckPayment(invoiceID string) string { return prefixCheckPayment + invoiceID }

func CheckStarsPayment(tariff string, userID int64) string {
	return prefixCheckStarsPayment + tariff + "_" + strconv.FormatInt(userID, 10)
}

func InitiateStarsPayment(tariff string) string { return prefixInitiateStarsPaymnt + tariff }
func InitiateCardPayment(tariff string) string  { return prefixInitiateCardPayment + tariff }

func cut(s, prefix string) (string, bool) {
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

func cutFirst(s string) (head, tail string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			if i == 0 || i == len(s)-1 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func cutLast(s string) (head, tail string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			if i == 0 || i == len(s)-1 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
