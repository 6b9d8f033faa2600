package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/opentenancy/caseintel/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

// Jitter is disabled in the suite so TTL expectations stay exact.
func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock

	client := &Client{
		rdb:    db,
		cfg:    config.RedisConfig{},
		logger: logging.NewNopLogger(),
	}
	s.cache = NewCache(client, nil, WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type caseSnapshot struct {
	CaseNumber string `json:"case_number"`
	Documents  int    `json:"documents"`
}

func (s *CacheTestSuite) TestGet_Hit() {
	want := caseSnapshot{CaseNumber: "27-CV-25-3456", Documents: 3}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:case:data:1").SetVal(string(data))

	var got caseSnapshot
	err := s.cache.Get(context.Background(), "case:data:1", &got)

	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:case:data:1").RedisNil()

	var got caseSnapshot
	err := s.cache.Get(context.Background(), "case:data:1", &got)

	s.Equal(ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGet_NullMarkerReadsAsMiss() {
	s.mock.ExpectGet("test:case:data:1").SetVal(nullSentinel)

	var got caseSnapshot
	err := s.cache.Get(context.Background(), "case:data:1", &got)

	s.Equal(ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGet_CorruptPayload() {
	s.mock.ExpectGet("test:case:data:1").SetVal("{not json")

	var got caseSnapshot
	err := s.cache.Get(context.Background(), "case:data:1", &got)

	s.Require().Error(err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_ExplicitTTL() {
	val := caseSnapshot{CaseNumber: "27-CV-25-3456", Documents: 3}
	data, _ := json.Marshal(val)
	s.mock.ExpectSet("test:case:data:1", data, 5*time.Minute).SetVal("OK")

	err := s.cache.Set(context.Background(), "case:data:1", val, 5*time.Minute)
	s.NoError(err)
}

func (s *CacheTestSuite) TestSet_ZeroTTLUsesDefault() {
	val := caseSnapshot{CaseNumber: "27-CV-25-3456"}
	data, _ := json.Marshal(val)
	s.mock.ExpectSet("test:case:data:1", data, 15*time.Minute).SetVal("OK")

	err := s.cache.Set(context.Background(), "case:data:1", val, 0)
	s.NoError(err)
}

func (s *CacheTestSuite) TestDelete_PrefixesEveryKey() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	err := s.cache.Delete(context.Background(), "k1", "k2")
	s.NoError(err)
}

func (s *CacheTestSuite) TestDelete_NoKeysIsNoOp() {
	err := s.cache.Delete(context.Background())
	s.NoError(err)
}

func (s *CacheTestSuite) TestExists() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	ok, err := s.cache.Exists(context.Background(), "k1")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *CacheTestSuite) TestGetOrSet_HitSkipsLoader() {
	want := caseSnapshot{CaseNumber: "27-CV-25-3456", Documents: 3}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:case:data:1").SetVal(string(data))

	loaderCalled := false
	var got caseSnapshot
	err := s.cache.GetOrSet(context.Background(), "case:data:1", &got, time.Minute, func(ctx context.Context) (interface{}, error) {
		loaderCalled = true
		return nil, nil
	})

	s.Require().NoError(err)
	s.False(loaderCalled)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGetOrSet_MissLoadsAndCaches() {
	want := caseSnapshot{CaseNumber: "27-CV-25-3456", Documents: 2}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:case:data:1").RedisNil()
	s.mock.ExpectSet("test:case:data:1", data, time.Minute).SetVal("OK")

	var got caseSnapshot
	err := s.cache.GetOrSet(context.Background(), "case:data:1", &got, time.Minute, func(ctx context.Context) (interface{}, error) {
		return want, nil
	})

	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGetOrSet_NilLoaderResultCachesNullMarker() {
	s.mock.ExpectGet("test:case:data:1").RedisNil()
	s.mock.ExpectSet("test:case:data:1", nullSentinel, 30*time.Second).SetVal("OK")

	var got caseSnapshot
	err := s.cache.GetOrSet(context.Background(), "case:data:1", &got, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})

	s.Equal(ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderErrorPropagates() {
	s.mock.ExpectGet("test:case:data:1").RedisNil()

	wantErr := pkgerrors.New(pkgerrors.ErrCodeDatabaseError, "load failed")
	var got caseSnapshot
	err := s.cache.GetOrSet(context.Background(), "case:data:1", &got, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})

	s.Equal(wantErr, err)
}

func (s *CacheTestSuite) TestDeleteByPrefix_WalksScanPages() {
	s.mock.ExpectScan(0, "test:case:data:*", 100).SetVal([]string{"test:case:data:1", "test:case:data:2"}, 7)
	s.mock.ExpectDel("test:case:data:1", "test:case:data:2").SetVal(2)
	s.mock.ExpectScan(7, "test:case:data:*", 100).SetVal([]string{"test:case:data:3"}, 0)
	s.mock.ExpectDel("test:case:data:3").SetVal(1)

	deleted, err := s.cache.DeleteByPrefix(context.Background(), "case:data:")

	s.Require().NoError(err)
	s.Equal(int64(3), deleted)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestJitterTTL_StaysWithinFraction(t *testing.T) {
	c := &redisCache{jitterFrac: 0.2}
	base := 10 * time.Minute

	for i := 0; i < 200; i++ {
		got := c.jitterTTL(base)
		assert.GreaterOrEqual(t, got, 8*time.Minute)
		assert.LessOrEqual(t, got, 12*time.Minute)
	}
}

func TestJitterTTL_ZeroFractionIsExact(t *testing.T) {
	c := &redisCache{jitterFrac: 0}
	assert.Equal(t, 10*time.Minute, c.jitterTTL(10*time.Minute))
}
