package flags

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewService(gdb, rdb, zap.NewNop()), mock, mr
}

func TestActive_CachesDatabaseResult(t *testing.T) {
	svc, mock, mr := newTestService(t)
	ctx := context.Background()

	// Only one database read is expected; the second call must be served
	// from the cache.
	mock.ExpectQuery(`SELECT \* FROM "company_features"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "flag", "enabled"}).
			AddRow(1, 42, types.FlagAttentionEngine, true))

	active, err := svc.Active(ctx, 42, types.FlagAttentionEngine)
	require.NoError(t, err)
	assert.True(t, active)

	cached, err := mr.Get(cacheKey(42, types.FlagAttentionEngine))
	require.NoError(t, err)
	assert.Equal(t, "1", cached)

	active, err = svc.Active(ctx, 42, types.FlagAttentionEngine)
	require.NoError(t, err)
	assert.True(t, active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActive_AbsentRowMeansDisabled(t *testing.T) {
	svc, mock, mr := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "company_features"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	active, err := svc.Active(context.Background(), 42, types.FlagNotificationsV2)
	require.NoError(t, err)
	assert.False(t, active)

	// The negative result is cached too.
	cached, err := mr.Get(cacheKey(42, types.FlagNotificationsV2))
	require.NoError(t, err)
	assert.Equal(t, "0", cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActive_WorksWithoutRedis(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	svc := NewService(gdb, nil, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "company_features"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "flag", "enabled"}).
			AddRow(1, 42, types.FlagAttentionEngine, true))

	active, err := svc.Active(context.Background(), 42, types.FlagAttentionEngine)
	require.NoError(t, err)
	assert.True(t, active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_InvalidatesCache(t *testing.T) {
	svc, mock, mr := newTestService(t)
	ctx := context.Background()

	// Seed a stale cached value.
	require.NoError(t, mr.Set(cacheKey(42, types.FlagAttentionEngine), "0"))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "company_features"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, svc.Set(ctx, 42, types.FlagAttentionEngine, true))

	assert.False(t, mr.Exists(cacheKey(42, types.FlagAttentionEngine)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompaniesWithFlag(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT "company_id" FROM "company_features"`).
		WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow(1).AddRow(3))

	ids, err := svc.CompaniesWithFlag(context.Background(), types.FlagAttentionEngine)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}
