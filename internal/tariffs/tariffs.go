package tariffs

import (
	"errors"
	"strings"

	"github.com/hmmrfll/owl-ai-backend/types"
)

var ErrNotFound = errors.New("tariff not found")

// FreeTariff is the entitlement applied to users without an active subscription.
const FreeTariff = "free"

var catalog = map[string]types.TariffDefinition{
	"free": {
		Name:          "free",
		DisplayName:   "Бесплатный",
		Description:   "Базовый доступ",
		MonthlyPhotos: 1,
		MonthlyDocs:   1,
		MonthlyAI:     types.UnlimitedQuota,
		PriceRub:      0,
		PriceStars:    0,
	},
	"silver": {
		Name:          "silver",
		DisplayName:   "Silver",
		Description:   "Правовой старт",
		MonthlyPhotos: 50,
		MonthlyDocs:   20,
		MonthlyAI:     100,
		PriceRub:      199,
		PriceStars:    99,
		Features:      []string{"Доступ к базе шаблонов документов"},
	},
	"gold": {
		Name:            "gold",
		DisplayName:     "Gold",
		Description:     "Правовая защита+",
		MonthlyPhotos:   150,
		MonthlyDocs:     50,
		MonthlyAI:       300,
		PriceRub:        370,
		PriceStars:      180,
		PrioritySupport: true,
		Features: []string{
			"Доступ к базе шаблонов документов",
			"Приоритетная обработка запросов",
		},
	},
	"platinum": {
		Name:            "platinum",
		DisplayName:     "Platinum",
		Description:     "Премиум консультант",
		MonthlyPhotos:   500,
		MonthlyDocs:     100,
		MonthlyAI:       1000,
		PriceRub:        599,
		PriceStars:      299,
		PrioritySupport: true,
		Features: []string{
			"Неограниченный анализ документов",
			"Углубленный анализ сложных ситуаций",
			"Специальные правовые рекомендации",
		},
	},
	"diamond": {
		Name:            "diamond",
		DisplayName:     "Diamond",
		Description:     "Личный юрист",
		MonthlyPhotos:   types.UnlimitedQuota,
		MonthlyDocs:     types.UnlimitedQuota,
		MonthlyAI:       types.UnlimitedQuota,
		PriceRub:        999,
		PriceStars:      490,
		PrioritySupport: true,
		Features: []string{
			"Полностью неограниченный доступ",
			"Персональные юридические рекомендации",
			"Премиум поддержка",
		},
	},
}

// paidOrder is the display order of purchasable tariffs.
var paidOrder = []string{"silver", "gold", "platinum", "diamond"}

func Get(name string) (types.TariffDefinition, error) {
	t, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.TariffDefinition{}, ErrNotFound
	}
	return t, nil
}

func Exists(name string) bool {
	_, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Paid returns purchasable tariffs in menu order.
func Paid() []types.TariffDefinition {
	out := make([]types.TariffDefinition, 0, len(paidOrder))
	for _, name := range paidOrder {
		out = append(out, catalog[name])
	}
	return out
}

// All returns every tariff, free included, for catalog seeding.
func All() []types.TariffDefinition {
	out := make([]types.TariffDefinition, 0, len(catalog))
	out = append(out, catalog["free"])
	for _, name := range paidOrder {
		out = append(out, catalog[name])
	}
	return out
}
