package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	// MaxDerivationIndex 非强化派生索引上限 (2^31)，达到后主密钥不可再派生
	MaxDerivationIndex uint32 = 1 << 31
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAssignmentConflict  = errors.New("exclusive assignment for coin and customer already exists")
	ErrDuplicateDerivation = errors.New("wallet key with this derivation path already exists")
	ErrIndexExhausted      = errors.New("derivation index exhausted")
)

// MasterKey 池中的主密钥记录，只保存公钥与元数据
type MasterKey struct {
	ID              string
	KeyType         string
	PublicKey       string
	ChainCode       string // 原始格式主密钥的链码 (hex)，扩展公钥格式为空
	Curve           string
	Signature       string
	CoinType        string // 未分配时为空
	CustomerID      string // 未分配时为空
	Exclusive       bool   // 可复用分配，每个 (CoinType, CustomerID) 至多一条
	DerivationIndex uint32 // 下一个未使用的派生索引
	CreatedAt       time.Time
	AssignedAt      *time.Time
}

// Assigned 是否已分配给某个 (币种, 客户)
func (m *MasterKey) Assigned() bool {
	return m.CoinType != "" && m.CustomerID != ""
}

// WalletKey 已签发的钱包公钥，创建后不可变
type WalletKey struct {
	ID              string
	PublicKey       string
	MasterKeyID     string
	DerivationPath  uint32
	CoinType        string
	CustomerID      string
	OwnerEmail      string
	NotificationURL string
	CustomMetadata  map[string]interface{}
	IssuedAt        time.Time
}

// PoolStore 主密钥池存储接口
// 所有对主密钥的修改只经过 ClaimUnassigned 与 ReserveDerivationIndex 两个原子操作
type PoolStore interface {
	// ClaimUnassigned 原子地领取一个 keyType 类型的未分配主密钥并分配给 (coinType, customerID)。
	// 池为空时返回 ErrNotFound；exclusive 时若该 (coinType, customerID) 已有独占分配则返回
	// ErrAssignmentConflict 且不修改任何记录。
	ClaimUnassigned(ctx context.Context, keyType, coinType, customerID string, exclusive bool) (*MasterKey, error)
	// CountUnassigned 未分配主密钥数量 (时间点快照，仅用于低库存告警)
	CountUnassigned(ctx context.Context, keyType string) (int, error)
	// SupplySnapshot 同一时间点的未分配数量与累计导入数量
	SupplySnapshot(ctx context.Context, keyType string) (PoolSupply, error)
	// ReserveDerivationIndex 原子 fetch-and-add，返回自增前的索引。
	// 索引达到 MaxDerivationIndex 时返回 ErrIndexExhausted。
	ReserveDerivationIndex(ctx context.Context, masterKeyID string) (uint32, error)
	// IncrementDerivationIndex 原子地将派生索引加一
	IncrementDerivationIndex(ctx context.Context, masterKeyID string) error
	// FindAssigned 查找 (coinType, customerID) 的独占分配，不存在时返回 nil, nil
	FindAssigned(ctx context.Context, coinType, customerID string) (*MasterKey, error)
	// InsertMasterKeys 批量导入未分配主密钥，公钥重复的记录被跳过，返回实际导入数量
	InsertMasterKeys(ctx context.Context, keys []*MasterKey) (int, error)
}

// WalletKeyStore 钱包公钥存储接口
type WalletKeyStore interface {
	// SaveWalletKey 保存钱包公钥；同一主密钥下派生路径重复时返回 ErrDuplicateDerivation
	SaveWalletKey(ctx context.Context, key *WalletKey) error
	ExistsByPublicKey(ctx context.Context, publicKey string) (bool, error)
	ExistsByOwnerEmail(ctx context.Context, email string) (bool, error)
}

// Store 主密钥池与钱包公钥的组合存储
type Store interface {
	PoolStore
	WalletKeyStore
}

// PoolSupply 某个 keyType 的库存快照
// Generation 为累计导入数量，主密钥从不删除，因此只在补充时增长
type PoolSupply struct {
	Unassigned int
	Generation int64
}

// AlertLatch 低库存告警锁存器，每个 (keyType, threshold) 一个
// 锁存器记录最近一次生效观测的 generation，比它旧的观测被忽略：
// 同一 generation 内剩余数量只减不增，所以高于阈值的同代观测一定早于已置位的那次。
type AlertLatch interface {
	// Update 原子地应用一次观测。low 表示剩余数量 <= threshold。
	// low 且未置位且 generation 不旧时置位并返回 true；
	// 非 low 时只有更新的 generation (即发生过补充) 才能复位。
	Update(ctx context.Context, keyType string, threshold int, generation int64, low bool) (bool, error)
}
