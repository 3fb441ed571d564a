package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/pkg/model"
)

// mmCacheTTL bounds how long a registered market maker is served from Redis
// before the next read goes back to Postgres. Key rotation therefore takes
// at most this long to propagate to handshake verification.
const mmCacheTTL = time.Minute

// Store defines the contract for caching and persisting quoter state.
type Store interface {
	RegisterMarketMaker(ctx context.Context, mm model.MarketMaker) error
	FindMarketMaker(ctx context.Context, name string) (*model.MarketMaker, error)
	ListMarketMakers(ctx context.Context) ([]model.MarketMaker, error)

	CreateDepositChannel(ctx context.Context, ch model.DepositChannel) error
	GetDepositChannel(ctx context.Context, id uuid.UUID) (*model.DepositChannel, error)
	FindChannelByDepositAddress(ctx context.Context, address string) (*model.DepositChannel, error)
	MarkChannelDeposited(ctx context.Context, address string) (*model.DepositChannel, error)
	ExpireDepositChannels(ctx context.Context) ([]model.DepositChannel, error)
	RecordDeposit(ctx context.Context, dep model.DepositWitnessedEvent) error

	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr string, redisDB int, redisPass string, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

func mmCacheKey(name string) string {
	return "mm:" + name
}

// RegisterMarketMaker upserts a market maker's credentials and busts any
// cached copy so the new key is picked up on the next handshake.
func (s *HybridStore) RegisterMarketMaker(ctx context.Context, mm model.MarketMaker) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO quoting.market_makers (name, public_key, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name)
		DO UPDATE SET
			public_key = EXCLUDED.public_key,
			updated_at = NOW();
	`, mm.Name, mm.PublicKey)
	if err != nil {
		s.logger.Error("store.pg.register_market_maker_failed", zap.Error(err))
		return err
	}
	if err := s.redis.Del(ctx, mmCacheKey(mm.Name)).Err(); err != nil {
		s.logger.Warn("store.redis.bust_failed", zap.String("name", mm.Name), zap.Error(err))
	}
	return nil
}

// FindMarketMaker resolves a maker by name, Redis first, then Postgres.
// Returns (nil, nil) when the maker is not registered.
func (s *HybridStore) FindMarketMaker(ctx context.Context, name string) (*model.MarketMaker, error) {
	var cached model.MarketMaker
	if err := s.GetJSON(ctx, mmCacheKey(name), &cached); err == nil {
		return &cached, nil
	}

	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	var mm model.MarketMaker
	err := s.PG.QueryRow(ctx, `
		SELECT name, public_key, created_at, updated_at
		FROM quoting.market_makers
		WHERE name = $1;
	`, name).Scan(&mm.Name, &mm.PublicKey, &mm.CreatedAt, &mm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find market maker %q: %w", name, err)
	}

	if err := s.SetJSON(ctx, mmCacheKey(name), mm, mmCacheTTL); err != nil {
		s.logger.Warn("store.redis.cache_failed", zap.String("name", name), zap.Error(err))
	}
	return &mm, nil
}

func (s *HybridStore) ListMarketMakers(ctx context.Context) ([]model.MarketMaker, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT name, public_key, created_at, updated_at
		FROM quoting.market_makers
		ORDER BY name;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.MarketMaker
	for rows.Next() {
		var mm model.MarketMaker
		if err := rows.Scan(&mm.Name, &mm.PublicKey, &mm.CreatedAt, &mm.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, mm)
	}
	return results, rows.Err()
}

func (s *HybridStore) CreateDepositChannel(ctx context.Context, ch model.DepositChannel) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO quoting.deposit_channels (
			id, channel_id, ingress_asset, egress_asset,
			deposit_address, destination_address, broker_commission_bps,
			issued_block, status, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW());
	`, ch.ID, ch.ChannelID, string(ch.IngressAsset), string(ch.EgressAsset),
		ch.DepositAddress, ch.DestinationAddress, ch.BrokerCommissionBps,
		ch.IssuedBlock, string(ch.Status), ch.ExpiresAt)
	if err != nil {
		s.logger.Error("store.pg.create_channel_failed", zap.Error(err))
	}
	return err
}

const channelColumns = `
	id, channel_id, ingress_asset, egress_asset,
	deposit_address, destination_address, broker_commission_bps,
	issued_block, status, expires_at, created_at, updated_at`

func scanChannel(row pgx.Row) (*model.DepositChannel, error) {
	var ch model.DepositChannel
	err := row.Scan(&ch.ID, &ch.ChannelID, &ch.IngressAsset, &ch.EgressAsset,
		&ch.DepositAddress, &ch.DestinationAddress, &ch.BrokerCommissionBps,
		&ch.IssuedBlock, &ch.Status, &ch.ExpiresAt, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *HybridStore) GetDepositChannel(ctx context.Context, id uuid.UUID) (*model.DepositChannel, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	ch, err := scanChannel(s.PG.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM quoting.deposit_channels WHERE id = $1;`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

func (s *HybridStore) FindChannelByDepositAddress(ctx context.Context, address string) (*model.DepositChannel, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	ch, err := scanChannel(s.PG.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM quoting.deposit_channels WHERE deposit_address = $1;`, address))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

// MarkChannelDeposited flips an open channel to DEPOSITED and returns the
// updated row. Returns (nil, nil) when no open channel matches the address,
// so a deposit to an expired or unknown channel is the caller's decision to
// log, not an error here.
func (s *HybridStore) MarkChannelDeposited(ctx context.Context, address string) (*model.DepositChannel, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	ch, err := scanChannel(s.PG.QueryRow(ctx, `
		UPDATE quoting.deposit_channels
		SET status = 'DEPOSITED', updated_at = NOW()
		WHERE deposit_address = $1 AND status = 'OPEN'
		RETURNING `+channelColumns+`;
	`, address))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

// ExpireDepositChannels marks every open channel past its expiry and returns
// the rows it touched.
func (s *HybridStore) ExpireDepositChannels(ctx context.Context) ([]model.DepositChannel, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		UPDATE quoting.deposit_channels
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE status = 'OPEN' AND expires_at < NOW()
		RETURNING `+channelColumns+`;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []model.DepositChannel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *ch)
	}
	return expired, rows.Err()
}

// RecordDeposit inserts an immutable witnessed-deposit event for audit.
func (s *HybridStore) RecordDeposit(ctx context.Context, dep model.DepositWitnessedEvent) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO quoting.deposit_events (
			deposit_address, asset, amount, tx_ref, block_height, witnessed_at, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW());
	`, dep.DepositAddress, string(dep.Asset), dep.Amount.String(), dep.TxRef,
		dep.BlockHeight, dep.Timestamp)
	if err != nil {
		s.logger.Error("store.pg.record_deposit_failed", zap.Error(err))
	}
	return err
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
