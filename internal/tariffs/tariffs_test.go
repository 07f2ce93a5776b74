package tariffs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmmrfll/owl-ai-backend/types"
)

func TestGetKnownTariff(t *testing.T) {
	def, err := Get("gold")
	require.NoError(t, err)
	assert.Equal(t, "gold", def.Name)
	assert.Equal(t, 150, def.MonthlyPhotos)
	assert.Equal(t, 50, def.MonthlyDocs)
	assert.Equal(t, 300, def.MonthlyAI)
	assert.True(t, def.PrioritySupport)
}

func TestGetUnknownTariff(t *testing.T) {
	_, err := Get("bronze")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFreeTariffQuotas(t *testing.T) {
	def, err := Get(FreeTariff)
	require.NoError(t, err)
	assert.Equal(t, 1, def.Quota(types.ResourcePhoto))
	assert.Equal(t, 1, def.Quota(types.ResourceDocument))
	assert.Equal(t, types.UnlimitedQuota, def.Quota(types.ResourceAIRequest))
	assert.Equal(t, 0, def.PriceRub)
}

func TestDiamondIsUnlimited(t *testing.T) {
	def, err := Get("diamond")
	require.NoError(t, err)
	assert.Equal(t, types.UnlimitedQuota, def.Quota(types.ResourcePhoto))
	assert.Equal(t, types.UnlimitedQuota, def.Quota(types.ResourceDocument))
	assert.Equal(t, types.UnlimitedQuota, def.Quota(types.ResourceAIRequest))
}

func TestPaidOrderAndPrices(t *testing.T) {
	paid := Paid()
	require.Len(t, paid, 4)
	names := make([]string, 0, len(paid))
	for _, def := range paid {
		names = append(names, def.Name)
		assert.Greater(t, def.PriceRub, 0, def.Name)
		assert.Greater(t, def.PriceStars, 0, def.Name)
	}
	assert.Equal(t, []string{"silver", "gold", "platinum", "diamond"}, names)
}

func TestAllIncludesFree(t *testing.T) {
	all := All()
	assert.Len(t, all, 5)
	assert.True(t, Exists(FreeTariff))
}
