package services

import (
	"context"
	"testing"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeRank(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"  ":          "",
		"BS":          RankBS,
		"Bác sĩ":      RankBS,
		"bacsi":       RankBS,
		"ThS":         RankTHS,
		"Th.S":        RankTHS,
		"thạc sĩ":     RankTHS,
		"TS":          RankTS,
		"T.S":         RankTS,
		"Tiến sĩ":     RankTS,
		"PGS":         RankPGS,
		"Phó giáo sư": RankPGS,
		"GS":          RankGS,
		"Giáo sư":     RankGS,
		"giao su":     RankGS,
		"ckii":        "CKII",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeRank(raw), raw)
	}
}

func TestDefaultFee(t *testing.T) {
	assert.True(t, DefaultFee(map[string]decimal.Decimal{}).Equal(decimal.NewFromInt(200000)))
	assert.True(t, DefaultFee(map[string]decimal.Decimal{RankBS: decimal.NewFromInt(150000)}).Equal(decimal.NewFromInt(150000)))
}

func TestFeesFallBackWhenTableEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewPricingResolver(db, nil, zap.NewNop())

	fees := r.Fees(context.Background())
	assert.True(t, fees[RankGS].Equal(decimal.NewFromInt(1000000)))
	assert.True(t, r.FeeForRank(context.Background(), "phó giáo sư").Equal(decimal.NewFromInt(700000)))
}

func TestFeesNormaliseStoredRanks(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SetRankFee(t, db, "ThS", 320000)
	testutil.SetRankFee(t, db, "BS", 180000)
	r := NewPricingResolver(db, nil, zap.NewNop())
	ctx := context.Background()

	assert.True(t, r.FeeForRank(ctx, "Thạc sĩ").Equal(decimal.NewFromInt(320000)))
	// ranks without a row get the BS fee
	assert.True(t, r.FeeForRank(ctx, "GS").Equal(decimal.NewFromInt(180000)))
	assert.True(t, r.ConsultationFee(ctx, &models.Doctor{Rank: "unknown"}).Equal(decimal.NewFromInt(180000)))
	assert.True(t, r.ConsultationFee(ctx, nil).Equal(decimal.NewFromInt(180000)))
}

type memoryFeeCache struct {
	fees        map[string]decimal.Decimal
	sets        int
	invalidated int
}

func (m *memoryFeeCache) GetFees(context.Context) (map[string]decimal.Decimal, bool, error) {
	if m.fees == nil {
		return nil, false, nil
	}
	return m.fees, true, nil
}

func (m *memoryFeeCache) SetFees(_ context.Context, fees map[string]decimal.Decimal) error {
	m.fees = fees
	m.sets++
	return nil
}

func (m *memoryFeeCache) Invalidate(context.Context) error {
	m.fees = nil
	m.invalidated++
	return nil
}

func TestFeesUseCache(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SetRankFee(t, db, "TS", 500000)
	cache := &memoryFeeCache{}
	r := NewPricingResolver(db, cache, zap.NewNop())
	ctx := context.Background()

	assert.True(t, r.FeeForRank(ctx, "TS").Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, 1, cache.sets)

	// a cached table is served without touching the database
	require.NoError(t, db.Model(&models.DoctorRankFee{}).Where(&models.DoctorRankFee{Rank: "TS"}).Update("default_fee", decimal.NewFromInt(550000)).Error)
	assert.True(t, r.FeeForRank(ctx, "TS").Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, 1, cache.sets)

	r.Invalidate(ctx)
	assert.True(t, r.FeeForRank(ctx, "TS").Equal(decimal.NewFromInt(550000)))
	assert.Equal(t, 2, cache.sets)
}

func TestSeedRankFees(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewPricingResolver(db, nil, zap.NewNop())
	ctx := context.Background()

	created, err := r.SeedRankFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, created)

	created, err = r.SeedRankFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
