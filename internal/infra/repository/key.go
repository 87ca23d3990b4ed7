package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/infra/database/models"
)

// MemoryKeyStore keeps keys for the lifetime of the process.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[common.Address]domain.KeyRecord
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: map[common.Address]domain.KeyRecord{}}
}

func (s *MemoryKeyStore) Put(ctx context.Context, record domain.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[record.Patient] = record
	return nil
}

func (s *MemoryKeyStore) Get(ctx context.Context, patient common.Address) (domain.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.keys[patient]
	if !ok {
		return domain.KeyRecord{}, domain.ErrKeyNotFound
	}
	return record, nil
}

const redisKeyPrefix = "healthvault:key:"

type RedisKeyStore struct {
	rdb *redis.Client
}

func NewRedisKeyStore(rdb *redis.Client) *RedisKeyStore {
	return &RedisKeyStore{rdb: rdb}
}

func (s *RedisKeyStore) Put(ctx context.Context, record domain.KeyRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKeyPrefix+record.Patient.Hex(), value, 0).Err()
}

func (s *RedisKeyStore) Get(ctx context.Context, patient common.Address) (domain.KeyRecord, error) {
	value, err := s.rdb.Get(ctx, redisKeyPrefix+patient.Hex()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.KeyRecord{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.KeyRecord{}, err
	}

	var record domain.KeyRecord
	err = json.Unmarshal(value, &record)
	if err != nil {
		return domain.KeyRecord{}, err
	}
	return record, nil
}

type PostgresKeyStore struct {
	db *gorm.DB
}

func NewPostgresKeyStore(db *gorm.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

func (s *PostgresKeyStore) Put(ctx context.Context, record domain.KeyRecord) error {
	row := models.KeyRecord{
		Patient: record.Patient.Hex(),
		Key:     record.Key,
		MDate:   record.StoredAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "patient"}},
		DoUpdates: clause.AssignmentColumns([]string{"key", "m_date"}),
	}).Create(&row).Error
}

func (s *PostgresKeyStore) Get(ctx context.Context, patient common.Address) (domain.KeyRecord, error) {
	var row models.KeyRecord
	err := s.db.WithContext(ctx).Where("patient = ?", patient.Hex()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.KeyRecord{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.KeyRecord{}, err
	}
	return domain.KeyRecord{
		Patient:  common.HexToAddress(row.Patient),
		Key:      row.Key,
		StoredAt: row.MDate,
	}, nil
}
