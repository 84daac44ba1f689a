package services

import (
	"clinic-app-server/internal/models"
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Normalised doctor ranks.
const (
	RankBS  = "BS"
	RankTHS = "THS"
	RankTS  = "TS"
	RankPGS = "PGS"
	RankGS  = "GS"
)

var rankAliases = map[string]string{
	"bs":          RankBS,
	"bácsĩ":       RankBS,
	"bacsi":       RankBS,
	"bác sĩ":      RankBS,
	"bac si":      RankBS,
	"ths":         RankTHS,
	"thacsĩ":      RankTHS,
	"thạcsĩ":      RankTHS,
	"thacsi":      RankTHS,
	"th.s":        RankTHS,
	"thạc sĩ":     RankTHS,
	"thac si":     RankTHS,
	"ts":          RankTS,
	"tiensĩ":      RankTS,
	"tiếnsĩ":      RankTS,
	"tiensi":      RankTS,
	"t.s":         RankTS,
	"tiến sĩ":     RankTS,
	"tien si":     RankTS,
	"pgs":         RankPGS,
	"pgs.ts":      RankPGS,
	"phó giáo sư": RankPGS,
	"phógiáosư":   RankPGS,
	"phogiaosu":   RankPGS,
	"gs":          RankGS,
	"gs.ts":       RankGS,
	"giaosư":      RankGS,
	"giáosư":      RankGS,
	"giaosu":      RankGS,
	"giáo sư":     RankGS,
}

// FallbackRankFees is used when no rank fee rows exist or the database fails.
var FallbackRankFees = map[string]decimal.Decimal{
	RankBS:  decimal.NewFromInt(200000),
	RankTHS: decimal.NewFromInt(300000),
	RankTS:  decimal.NewFromInt(500000),
	RankPGS: decimal.NewFromInt(700000),
	RankGS:  decimal.NewFromInt(1000000),
}

var baseFee = decimal.NewFromInt(200000)

// NormalizeRank maps the free-text rank of a doctor to BS/THS/TS/PGS/GS.
// Unknown values are returned upper-cased.
func NormalizeRank(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	key := strings.ToLower(trimmed)
	if rank, ok := rankAliases[key]; ok {
		return rank
	}
	compact := strings.NewReplacer(".", "", " ", "").Replace(key)
	if rank, ok := rankAliases[compact]; ok {
		return rank
	}
	return strings.ToUpper(trimmed)
}

// DefaultFee is the BS fee of the table, or the base fee.
func DefaultFee(fees map[string]decimal.Decimal) decimal.Decimal {
	if fee, ok := fees[RankBS]; ok {
		return fee
	}
	return baseFee
}

// FeeCache stores the resolved rank fee table.
type FeeCache interface {
	GetFees(ctx context.Context) (map[string]decimal.Decimal, bool, error)
	SetFees(ctx context.Context, fees map[string]decimal.Decimal) error
	Invalidate(ctx context.Context) error
}

// PricingResolver resolves consultation fees from the rank fee table.
type PricingResolver struct {
	db    *gorm.DB
	cache FeeCache
	log   *zap.Logger
}

// NewPricingResolver creates a resolver. cache may be nil.
func NewPricingResolver(db *gorm.DB, cache FeeCache, log *zap.Logger) *PricingResolver {
	return &PricingResolver{db: db, cache: cache, log: log}
}

// Fees returns the rank fee table keyed by normalised rank. It never fails:
// cache and database errors fall back to FallbackRankFees.
func (r *PricingResolver) Fees(ctx context.Context) map[string]decimal.Decimal {
	if r.cache != nil {
		fees, ok, err := r.cache.GetFees(ctx)
		if err != nil {
			r.log.Warn("rank fee cache read failed", zap.Error(err))
		} else if ok {
			return fees
		}
	}

	var rows []models.DoctorRankFee
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		r.log.Error("load rank fees failed, using fallback table", zap.Error(err))
		return copyFees(FallbackRankFees)
	}
	if len(rows) == 0 {
		return copyFees(FallbackRankFees)
	}

	fees := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		fees[NormalizeRank(row.Rank)] = row.DefaultFee
	}

	if r.cache != nil {
		if err := r.cache.SetFees(ctx, fees); err != nil {
			r.log.Warn("rank fee cache write failed", zap.Error(err))
		}
	}
	return fees
}

// FeeForRank returns the fee of a raw rank, or the default fee.
func (r *PricingResolver) FeeForRank(ctx context.Context, rank string) decimal.Decimal {
	fees := r.Fees(ctx)
	if fee, ok := fees[NormalizeRank(rank)]; ok {
		return fee
	}
	return DefaultFee(fees)
}

// ConsultationFee returns the fee charged for a visit with doctor.
func (r *PricingResolver) ConsultationFee(ctx context.Context, doctor *models.Doctor) decimal.Decimal {
	if doctor == nil {
		return DefaultFee(r.Fees(ctx))
	}
	return r.FeeForRank(ctx, doctor.Rank)
}

// Invalidate drops the cached table after a rank fee change.
func (r *PricingResolver) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.log.Warn("rank fee cache invalidate failed", zap.Error(err))
	}
}

// SeedRankFees inserts the fallback table when no rank fee exists.
// It returns the number of rows created.
func (r *PricingResolver) SeedRankFees(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DoctorRankFee{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	rows := make([]models.DoctorRankFee, 0, len(FallbackRankFees))
	for _, rank := range []string{RankBS, RankTHS, RankTS, RankPGS, RankGS} {
		rows = append(rows, models.DoctorRankFee{Rank: rank, DefaultFee: FallbackRankFees[rank]})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	r.Invalidate(ctx)
	return len(rows), nil
}

func copyFees(src map[string]decimal.Decimal) map[string]decimal.Decimal {
	dst := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
