package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/caolo/simcore/cache"
	"github.com/caolo/simcore/compiler"
	"github.com/caolo/simcore/scriptapi"
	"github.com/caolo/simcore/storage"
	"github.com/caolo/simcore/world"
)

const (
	programCacheTTL = 10 * time.Minute
	schemaCacheKey  = "schema:current"
	schemaCacheTTL  = time.Hour
)

// Store is the script/user persistence adapter: gorm for durable
// rows, cache.CacheInterface for the compiled-program and schema
// documents the collect stage reads every tick. A cache miss always
// falls through to a fresh compile or a fresh schema build rather than
// surfacing a cache error to the caller — the cache is an accelerator,
// never a source of truth.
type Store struct {
	db     *gorm.DB
	cache  cache.CacheInterface
	log    *zap.Logger
	schema *scriptapi.Schema
}

// Migrate runs gorm's auto-migration for the script and user tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ScriptRecord{}, &UserRecord{})
}

// NewStore builds a Store. schema is the fixed host-function schema
// the gateway serves at GET /schema and caches under schemaCacheKey.
func NewStore(db *gorm.DB, c cache.CacheInterface, log *zap.Logger, schema *scriptapi.Schema) *Store {
	return &Store{db: db, cache: c, log: log, schema: schema}
}

// SaveScript upserts a script's source and evicts its cached compiled
// program, since the commit this call implements means the old
// program is no longer what collect should run next tick.
func (s *Store) SaveScript(ctx context.Context, owner storage.UserId, id world.ScriptId, name, payload string) error {
	record := ScriptRecord{
		ScriptId: string(id),
		Owner:    owner.String(),
		Name:     name,
		Payload:  payload,
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("persistence: save script: %w", err)
	}
	if err := s.cache.Delete(ctx, programCacheKey(id)); err != nil {
		s.log.Warn("failed to evict cached program", zap.String("scriptId", string(id)), zap.Error(err))
	}
	return nil
}

// LoadScript returns a script's durable source row.
func (s *Store) LoadScript(ctx context.Context, id world.ScriptId) (world.ScriptSource, error) {
	var record ScriptRecord
	if err := s.db.WithContext(ctx).First(&record, "script_id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return world.ScriptSource{}, fmt.Errorf("persistence: script %q not found", id)
		}
		return world.ScriptSource{}, fmt.Errorf("persistence: load script: %w", err)
	}
	return world.ScriptSource{
		Owner:   storage.UserId(record.Owner),
		Name:    record.Name,
		Payload: record.Payload,
	}, nil
}

// CachedProgram returns a compiled program previously stored under
// id's cache key, or (nil, false) on a miss or decode failure — either
// way the caller is expected to recompile and call CacheProgram.
func (s *Store) CachedProgram(ctx context.Context, id world.ScriptId) (*compiler.Program, bool) {
	raw, err := s.cache.Get(ctx, programCacheKey(id))
	if err != nil {
		return nil, false
	}
	var program compiler.Program
	if err := json.Unmarshal(raw, &program); err != nil {
		s.log.Warn("discarding corrupt cached program", zap.String("scriptId", string(id)), zap.Error(err))
		return nil, false
	}
	return &program, true
}

// CacheProgram stores program under id's cache key for programCacheTTL.
func (s *Store) CacheProgram(ctx context.Context, id world.ScriptId, program *compiler.Program) {
	raw, err := json.Marshal(program)
	if err != nil {
		s.log.Warn("failed to marshal program for cache", zap.String("scriptId", string(id)), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, programCacheKey(id), raw, programCacheTTL); err != nil {
		s.log.Warn("failed to cache program", zap.String("scriptId", string(id)), zap.Error(err))
	}
}

// Schema returns the cached schema document, building and caching it
// on first call (or after a cache eviction).
func (s *Store) Schema(ctx context.Context) *scriptapi.Schema {
	raw, err := s.cache.Get(ctx, schemaCacheKey)
	if err == nil {
		var cached scriptapi.Schema
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &cached
		}
	}
	if marshaled, err := json.Marshal(s.schema); err == nil {
		if err := s.cache.Set(ctx, schemaCacheKey, marshaled, schemaCacheTTL); err != nil {
			s.log.Warn("failed to cache schema", zap.Error(err))
		}
	}
	return s.schema
}

// Ping probes the cache connection, for the gateway's health
// endpoint. The database is deliberately not probed here: a Postgres
// outage stops script commits but not the tick loop, and the health
// endpoint reports liveness of the serving process, not of every
// dependency.
func (s *Store) Ping(ctx context.Context) error {
	return s.cache.Health(ctx)
}

// UpsertUser records or refreshes a user's profile row, called by the
// gateway's user update and register handlers.
func (s *Store) UpsertUser(ctx context.Context, id storage.UserId, displayName string) (world.UserProfile, error) {
	now := time.Now()
	record := UserRecord{Subject: id.String(), DisplayName: displayName, UpdatedAt: now}
	if err := s.db.WithContext(ctx).
		Where("subject = ?", id.String()).
		Assign(UserRecord{DisplayName: displayName, UpdatedAt: now}).
		FirstOrCreate(&record).Error; err != nil {
		return world.UserProfile{}, fmt.Errorf("persistence: upsert user: %w", err)
	}
	return world.UserProfile{
		Subject:     record.Subject,
		DisplayName: record.DisplayName,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}

func programCacheKey(id world.ScriptId) string {
	return "program:" + string(id)
}
