package flags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cacheTTL = 60 * time.Second

// Service answers per-company feature flag checks. The database row is
// authoritative; redis is a read-through cache so the hot path (every ack
// and every scheduler pass) does not hit postgres.
type Service struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func NewService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Service {
	return &Service{db: db, rdb: rdb, logger: logger}
}

func cacheKey(companyID uint, flag string) string {
	return fmt.Sprintf("fleetwatch:flag:%d:%s", companyID, flag)
}

// Active reports whether the flag is enabled for the company. Absent rows
// mean disabled.
func (s *Service) Active(ctx context.Context, companyID uint, flag string) (bool, error) {
	key := cacheKey(companyID, flag)

	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			return cached == "1", nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Flag cache read failed, falling back to database",
				zap.String("flag", flag),
				zap.Error(err),
			)
		}
	}

	var feature models.CompanyFeature
	enabled := false
	err := s.db.Where("company_id = ? AND flag = ?", companyID, flag).First(&feature).Error
	switch {
	case err == nil:
		enabled = feature.Enabled
	case errors.Is(err, gorm.ErrRecordNotFound):
		enabled = false
	default:
		return false, err
	}

	if s.rdb != nil {
		value := "0"
		if enabled {
			value = "1"
		}
		if err := s.rdb.Set(ctx, key, value, cacheTTL).Err(); err != nil {
			s.logger.Warn("Flag cache write failed", zap.String("flag", flag), zap.Error(err))
		}
	}

	return enabled, nil
}

// Set upserts the flag row and invalidates the cache entry.
func (s *Service) Set(ctx context.Context, companyID uint, flag string, enabled bool) error {
	feature := models.CompanyFeature{
		CompanyID: companyID,
		Flag:      flag,
		Enabled:   enabled,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "flag"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(&feature).Error
	if err != nil {
		return err
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey(companyID, flag)).Err(); err != nil {
			s.logger.Warn("Flag cache invalidation failed", zap.String("flag", flag), zap.Error(err))
		}
	}

	return nil
}

// CompaniesWithFlag lists company ids that have the flag enabled. Used by
// the escalation scheduler to scope its scan.
func (s *Service) CompaniesWithFlag(ctx context.Context, flag string) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.CompanyFeature{}).
		Where("flag = ? AND enabled = ?", flag, true).
		Pluck("company_id", &ids).Error
	return ids, err
}
