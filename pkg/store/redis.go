package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mcclellann/loanTracker/pkg/logger"
	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxWatchRetries = 5

var errLoanExists = errors.New("loan already exists")

// RedisStore keeps each loan as a JSON document, with a creation-ordered id
// index and one id set per user. Writes use WATCH so a concurrent writer on
// the same loan forces a retry instead of a lost update.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options, prefix string) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	logger.Info("redis store ready", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "loans"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) loanKey(id string) string     { return s.prefix + ":loan:" + id }
func (s *RedisStore) indexKey() string             { return s.prefix + ":ids" }
func (s *RedisStore) userKey(userID string) string { return s.prefix + ":user:" + userID }

func (s *RedisStore) Get(ctx context.Context, id string) (*models.LoanRecord, error) {
	return s.get(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, id string) (*models.LoanRecord, error) {
	raw, err := c.Get(ctx, s.loanKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return decodeLoan(raw)
}

func (s *RedisStore) GetAll(ctx context.Context) ([]*models.LoanRecord, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list loan ids: %w", err)
	}
	return s.load(ctx, ids)
}

func (s *RedisStore) FindByUser(ctx context.Context, userID string) ([]*models.LoanRecord, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for user %s: %w", userID, err)
	}
	loans, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(loans, func(i, j int) bool {
		if loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].CreatedAt.Before(loans[j].CreatedAt)
	})
	return loans, nil
}

// load fetches documents for ids, skipping ids deleted in the meantime.
func (s *RedisStore) load(ctx context.Context, ids []string) ([]*models.LoanRecord, error) {
	loans := []*models.LoanRecord{}
	if len(ids) == 0 {
		return loans, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.loanKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}

	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		loan, err := decodeLoan([]byte(str))
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// Insert writes the document and both indexes in one MULTI under WATCH. If
// any command in the transaction fails the document is removed again so a
// loan is never readable without being listed.
func (s *RedisStore) Insert(ctx context.Context, loan *models.LoanRecord) error {
	raw, err := encodeLoan(loan)
	if err != nil {
		return err
	}

	key := s.loanKey(loan.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return errLoanExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(loan.CreatedAt.UnixNano()), Member: loan.ID})
			pipe.SAdd(ctx, s.userKey(loan.UserID), loan.ID)
			return nil
		})
		return err
	}, key)
	if err == nil {
		return nil
	}

	if !errors.Is(err, redis.TxFailedErr) && !errors.Is(err, errLoanExists) {
		if delErr := s.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			logger.CtxError(ctx, "failed to remove partially inserted loan", delErr, zap.String("id", loan.ID))
		}
	}
	return fmt.Errorf("failed to create loan %s: %w", loan.ID, err)
}

func (s *RedisStore) UpdateFields(ctx context.Context, id string, patch models.LoanPatch) error {
	return s.mutate(ctx, id, func(loan *models.LoanRecord) {
		patch.Apply(loan)
	})
}

func (s *RedisStore) AppendPayment(ctx context.Context, id string, payment models.PaymentRecord, totalPaid decimal.Decimal, status models.Status) error {
	return s.mutate(ctx, id, func(loan *models.LoanRecord) {
		loan.Repayments = append(loan.Repayments, payment)
		loan.TotalPaid = totalPaid
		loan.Status = status
	})
}

// mutate runs a read-modify-write on one loan under WATCH, retrying on conflict.
func (s *RedisStore) mutate(ctx context.Context, id string, change func(*models.LoanRecord)) error {
	key := s.loanKey(id)
	txf := func(tx *redis.Tx) error {
		loan, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		previousUser := loan.UserID
		change(loan)

		raw, err := encodeLoan(loan)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			if loan.UserID != previousUser {
				pipe.SRem(ctx, s.userKey(previousUser), id)
				pipe.SAdd(ctx, s.userKey(loan.UserID), id)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			logger.CtxWarn(ctx, "loan changed during update, retrying", zap.String("id", id), zap.Int("attempt", i+1))
			continue
		}
		if err != nil && !errors.Is(err, ErrLoanNotFound) {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to update loan %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	key := s.loanKey(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		loan, err := s.get(ctx, tx, id)
		if errors.Is(err, ErrLoanNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.indexKey(), id)
			pipe.SRem(ctx, s.userKey(loan.UserID), id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeLoan(loan *models.LoanRecord) ([]byte, error) {
	raw, err := json.Marshal(loan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode loan %s: %w", loan.ID, err)
	}
	return raw, nil
}

func decodeLoan(raw []byte) (*models.LoanRecord, error) {
	var loan models.LoanRecord
	if err := json.Unmarshal(raw, &loan); err != nil {
		return nil, fmt.Errorf("failed to decode loan: %w", err)
	}
	if loan.Repayments == nil {
		loan.Repayments = []models.PaymentRecord{}
	}
	return &loan, nil
}
