package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix            = "{keypool}:"
	redisMasterKeyPrefix   = redisPrefix + "mk:"
	redisUnassignedPrefix  = redisPrefix + "unassigned:"
	redisAssignedPrefix    = redisPrefix + "assigned:"
	redisDerivationPrefix  = redisPrefix + "deriv:"
	redisWalletKeyPrefix   = redisPrefix + "wk:"
	redisAlertPrefix       = redisPrefix + "alert:"
	redisImportedPrefix    = redisPrefix + "imported:"
	redisMasterKeyPubsKey  = redisPrefix + "mk_pubs"
	redisWalletPubsKey     = redisPrefix + "wallet_pubs"
	redisWalletEmailsKey   = redisPrefix + "wallet_emails"
	redisErrNotFound       = "NOT_FOUND"
	redisErrIndexExhausted = "INDEX_EXHAUSTED"
	redisErrDuplicate      = "DUPLICATE_DERIVATION"

	redisClaimAttempts = 100
)

// KEYS: master key hash
// ARGV: max derivation index
var reserveScript = redis.NewScript(`
local assigned = redis.call("HGET", KEYS[1], "coin_type")
if not assigned or assigned == "" then
	return redis.error_reply("` + redisErrNotFound + `")
end
local idx = tonumber(redis.call("HGET", KEYS[1], "derivation_index") or "0")
if idx >= tonumber(ARGV[1]) then
	return redis.error_reply("` + redisErrIndexExhausted + `")
end
return redis.call("HINCRBY", KEYS[1], "derivation_index", 1) - 1
`)

// KEYS: master key pubs set, master key hash, unassigned list, imported counter
// ARGV: public key, id, key type, chain code, curve, signature, created at
var insertScript = redis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[2], "id", ARGV[2], "key_type", ARGV[3], "public_key", ARGV[1], "chain_code", ARGV[4],
	"curve", ARGV[5], "signature", ARGV[6], "coin_type", "", "customer_id", "", "exclusive", "0",
	"derivation_index", 0, "created_at", ARGV[7], "assigned_at", "")
redis.call("RPUSH", KEYS[3], ARGV[2])
redis.call("INCR", KEYS[4])
return 1
`)

// KEYS: derivation hash, wallet key, wallet pubs set, wallet emails set
// ARGV: derivation path, wallet key id, wallet key json, public key, owner email
var saveWalletKeyScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return redis.error_reply("` + redisErrDuplicate + `")
end
redis.call("SET", KEYS[2], ARGV[3])
redis.call("SADD", KEYS[3], ARGV[4])
redis.call("SADD", KEYS[4], ARGV[5])
return 1
`)

// RedisStore Redis 存储实现
// 领取使用 WATCH/MULTI 乐观事务，索引自增通过 Lua 脚本在服务端原子执行。
// 所有键共享 {keypool} hash tag，事务与脚本涉及的键都落在同一个 slot。
type RedisStore struct {
	client *redis.Client
	clock  time2.Clock
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 创建 Redis 存储实例
func NewRedisStore(client *redis.Client, clock time2.Clock) *RedisStore {
	return &RedisStore{client: client, clock: clock}
}

func (s *RedisStore) ClaimUnassigned(ctx context.Context, keyType, coinType, customerID string, exclusive bool) (*MasterKey, error) {
	listKey := redisUnassignedPrefix + keyType
	assignKey := assignmentRedisKey(coinType, customerID)
	assignedAt := s.clock.Now().UTC().Format(time.RFC3339Nano)

	excl := "0"
	if exclusive {
		excl = "1"
	}

	for attempt := 0; attempt < redisClaimAttempts; attempt++ {
		var id string
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			if exclusive {
				n, err := tx.Exists(ctx, assignKey).Result()
				if err != nil {
					return errors.Wrap(err, "failed to check exclusive assignment")
				}
				if n > 0 {
					return ErrAssignmentConflict
				}
			}

			head, err := tx.LIndex(ctx, listKey, 0).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrNotFound
				}
				return errors.Wrap(err, "failed to peek unassigned master key")
			}

			// 列表被 WATCH，EXEC 成功时 LPOP 弹出的一定是 head
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LPop(ctx, listKey)
				pipe.HSet(ctx, redisMasterKeyPrefix+head,
					"coin_type", coinType, "customer_id", customerID, "exclusive", excl, "assigned_at", assignedAt)
				if exclusive {
					pipe.Set(ctx, assignKey, head, 0)
				}
				return nil
			})
			if err != nil {
				return err
			}

			id = head
			return nil
		}, listKey, assignKey)

		switch {
		case err == nil:
			return s.getMasterKey(ctx, id)
		case errors.Is(err, redis.TxFailedErr):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrAssignmentConflict):
			return nil, err
		default:
			return nil, errors.Wrap(err, "failed to claim master key")
		}
	}

	return nil, errors.Errorf("failed to claim %s master key after %d attempts", keyType, redisClaimAttempts)
}

func (s *RedisStore) CountUnassigned(ctx context.Context, keyType string) (int, error) {
	n, err := s.client.LLen(ctx, redisUnassignedPrefix+keyType).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unassigned master keys")
	}

	return int(n), nil
}

func (s *RedisStore) SupplySnapshot(ctx context.Context, keyType string) (PoolSupply, error) {
	var (
		unassigned *redis.IntCmd
		imported   *redis.StringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		unassigned = pipe.LLen(ctx, redisUnassignedPrefix+keyType)
		imported = pipe.Get(ctx, redisImportedPrefix+keyType)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return PoolSupply{}, errors.Wrap(err, "failed to read pool supply")
	}

	gen, err := imported.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return PoolSupply{}, errors.Wrap(err, "invalid imported counter")
	}

	return PoolSupply{
		Unassigned: int(unassigned.Val()),
		Generation: gen,
	}, nil
}

func (s *RedisStore) ReserveDerivationIndex(ctx context.Context, masterKeyID string) (uint32, error) {
	idx, err := reserveScript.Run(ctx, s.client, []string{redisMasterKeyPrefix + masterKeyID}, int64(MaxDerivationIndex)).Int64()
	if err != nil {
		if isScriptError(err, redisErrNotFound) {
			return 0, ErrNotFound
		}
		if isScriptError(err, redisErrIndexExhausted) {
			return 0, ErrIndexExhausted
		}
		return 0, errors.Wrap(err, "failed to reserve derivation index")
	}

	return uint32(idx), nil
}

func (s *RedisStore) IncrementDerivationIndex(ctx context.Context, masterKeyID string) error {
	_, err := s.ReserveDerivationIndex(ctx, masterKeyID)
	return err
}

func (s *RedisStore) FindAssigned(ctx context.Context, coinType, customerID string) (*MasterKey, error) {
	id, err := s.client.Get(ctx, assignmentRedisKey(coinType, customerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find assigned master key")
	}

	return s.getMasterKey(ctx, id)
}

func (s *RedisStore) InsertMasterKeys(ctx context.Context, keys []*MasterKey) (int, error) {
	inserted := 0
	for _, k := range keys {
		id := k.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := k.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.clock.Now()
		}

		n, err := insertScript.Run(ctx, s.client,
			[]string{redisMasterKeyPubsKey, redisMasterKeyPrefix + id, redisUnassignedPrefix + k.KeyType, redisImportedPrefix + k.KeyType},
			k.PublicKey, id, k.KeyType, k.ChainCode, k.Curve, k.Signature, createdAt.UTC().Format(time.RFC3339Nano),
		).Int()
		if err != nil {
			return inserted, errors.Wrapf(err, "failed to insert master key %s", k.PublicKey)
		}
		inserted += n
	}

	return inserted, nil
}

type redisWalletKey struct {
	ID              string                 `json:"id"`
	PublicKey       string                 `json:"public_key"`
	MasterKeyID     string                 `json:"master_key_id"`
	DerivationPath  uint32                 `json:"derivation_path"`
	CoinType        string                 `json:"coin_type"`
	CustomerID      string                 `json:"customer_id"`
	OwnerEmail      string                 `json:"owner_email"`
	NotificationURL string                 `json:"notification_url,omitempty"`
	CustomMetadata  map[string]interface{} `json:"custom_metadata,omitempty"`
	IssuedAt        time.Time              `json:"issued_at"`
}

func (s *RedisStore) SaveWalletKey(ctx context.Context, key *WalletKey) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}

	data, err := json.Marshal(redisWalletKey(*key))
	if err != nil {
		return errors.Wrap(err, "failed to marshal wallet key")
	}

	err = saveWalletKeyScript.Run(ctx, s.client,
		[]string{redisDerivationPrefix + key.MasterKeyID, redisWalletKeyPrefix + key.ID, redisWalletPubsKey, redisWalletEmailsKey},
		strconv.FormatUint(uint64(key.DerivationPath), 10), key.ID, data, key.PublicKey, key.OwnerEmail,
	).Err()
	if err != nil {
		if isScriptError(err, redisErrDuplicate) {
			return ErrDuplicateDerivation
		}
		return errors.Wrap(err, "failed to save wallet key")
	}

	return nil
}

func (s *RedisStore) ExistsByPublicKey(ctx context.Context, publicKey string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, redisWalletPubsKey, publicKey).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to check wallet public key")
	}
	return ok, nil
}

func (s *RedisStore) ExistsByOwnerEmail(ctx context.Context, email string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, redisWalletEmailsKey, email).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to check owner email")
	}
	return ok, nil
}

func (s *RedisStore) getMasterKey(ctx context.Context, id string) (*MasterKey, error) {
	fields, err := s.client.HGetAll(ctx, redisMasterKeyPrefix+id).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get master key")
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	idx, err := strconv.ParseUint(fields["derivation_index"], 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derivation index for master key %s", id)
	}

	mk := &MasterKey{
		ID:              id,
		KeyType:         fields["key_type"],
		PublicKey:       fields["public_key"],
		ChainCode:       fields["chain_code"],
		Curve:           fields["curve"],
		Signature:       fields["signature"],
		CoinType:        fields["coin_type"],
		CustomerID:      fields["customer_id"],
		Exclusive:       fields["exclusive"] == "1",
		DerivationIndex: uint32(idx),
	}

	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		mk.CreatedAt = t
	}
	if v := fields["assigned_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			mk.AssignedAt = &t
		}
	}

	return mk, nil
}

func assignmentRedisKey(coinType, customerID string) string {
	return redisAssignedPrefix + coinType + ":" + customerID
}

func isScriptError(err error, code string) bool {
	return err != nil && strings.Contains(err.Error(), code)
}

// KEYS: latch hash
// ARGV: generation, low ("1"/"0")
var latchScript = redis.NewScript(`
local armed = redis.call("HGET", KEYS[1], "armed") == "1"
local gen = tonumber(redis.call("HGET", KEYS[1], "generation") or "-1")
local obs = tonumber(ARGV[1])
if ARGV[2] ~= "1" then
	if obs > gen then
		redis.call("HSET", KEYS[1], "armed", "0", "generation", obs)
	end
	return 0
end
if armed then
	if obs > gen then
		redis.call("HSET", KEYS[1], "generation", obs)
	end
	return 0
end
if obs < gen then
	return 0
end
redis.call("HSET", KEYS[1], "armed", "1", "generation", obs)
return 1
`)

// RedisAlertLatch 基于 Lua 脚本的告警锁存器，多实例部署时共享告警状态
type RedisAlertLatch struct {
	client *redis.Client
}

var _ AlertLatch = (*RedisAlertLatch)(nil)

func NewRedisAlertLatch(client *redis.Client) *RedisAlertLatch {
	return &RedisAlertLatch{client: client}
}

func (l *RedisAlertLatch) Update(ctx context.Context, keyType string, threshold int, generation int64, low bool) (bool, error) {
	lowArg := "0"
	if low {
		lowArg = "1"
	}

	fired, err := latchScript.Run(ctx, l.client, []string{alertRedisKey(keyType, threshold)}, generation, lowArg).Int()
	if err != nil {
		return false, errors.Wrap(err, "failed to update alert latch")
	}

	return fired == 1, nil
}

func alertRedisKey(keyType string, threshold int) string {
	return redisAlertPrefix + keyType + ":" + strconv.Itoa(threshold)
}
