package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
)

type assignmentKey struct {
	coinType   string
	customerID string
}

type derivationKey struct {
	masterKeyID string
	path        uint32
}

// MemoryStore 内存存储实现，互斥锁保证领取与索引自增的原子性
// 适用于开发与测试，进程退出后数据丢失
type MemoryStore struct {
	mu    sync.Mutex
	clock time2.Clock

	masterKeys  map[string]*MasterKey
	unassigned  map[string][]string // keyType -> 按导入顺序的主密钥ID
	imported    map[string]int64
	publicKeys  map[string]struct{}
	exclusive   map[assignmentKey]string
	walletKeys  map[string]*WalletKey
	derivations map[derivationKey]string
	walletPubs  map[string]int
	ownerEmails map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储实例
func NewMemoryStore(clock time2.Clock) *MemoryStore {
	return &MemoryStore{
		clock:       clock,
		masterKeys:  make(map[string]*MasterKey),
		unassigned:  make(map[string][]string),
		imported:    make(map[string]int64),
		publicKeys:  make(map[string]struct{}),
		exclusive:   make(map[assignmentKey]string),
		walletKeys:  make(map[string]*WalletKey),
		derivations: make(map[derivationKey]string),
		walletPubs:  make(map[string]int),
		ownerEmails: make(map[string]int),
	}
}

func (s *MemoryStore) ClaimUnassigned(ctx context.Context, keyType, coinType, customerID string, exclusive bool) (*MasterKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ak := assignmentKey{coinType: coinType, customerID: customerID}
	if exclusive {
		if _, ok := s.exclusive[ak]; ok {
			return nil, ErrAssignmentConflict
		}
	}

	ids := s.unassigned[keyType]
	if len(ids) == 0 {
		return nil, ErrNotFound
	}

	id := ids[0]
	s.unassigned[keyType] = ids[1:]

	mk := s.masterKeys[id]
	now := s.clock.Now()
	mk.CoinType = coinType
	mk.CustomerID = customerID
	mk.Exclusive = exclusive
	mk.AssignedAt = &now

	if exclusive {
		s.exclusive[ak] = id
	}

	return copyMasterKey(mk), nil
}

func (s *MemoryStore) CountUnassigned(ctx context.Context, keyType string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.unassigned[keyType]), nil
}

func (s *MemoryStore) SupplySnapshot(ctx context.Context, keyType string) (PoolSupply, error) {
	if err := ctx.Err(); err != nil {
		return PoolSupply{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return PoolSupply{
		Unassigned: len(s.unassigned[keyType]),
		Generation: s.imported[keyType],
	}, nil
}

func (s *MemoryStore) ReserveDerivationIndex(ctx context.Context, masterKeyID string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mk, ok := s.masterKeys[masterKeyID]
	if !ok || !mk.Assigned() {
		return 0, ErrNotFound
	}

	if mk.DerivationIndex >= MaxDerivationIndex {
		return 0, ErrIndexExhausted
	}

	idx := mk.DerivationIndex
	mk.DerivationIndex++

	return idx, nil
}

func (s *MemoryStore) IncrementDerivationIndex(ctx context.Context, masterKeyID string) error {
	_, err := s.ReserveDerivationIndex(ctx, masterKeyID)
	return err
}

func (s *MemoryStore) FindAssigned(ctx context.Context, coinType, customerID string) (*MasterKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.exclusive[assignmentKey{coinType: coinType, customerID: customerID}]
	if !ok {
		return nil, nil
	}

	return copyMasterKey(s.masterKeys[id]), nil
}

func (s *MemoryStore) InsertMasterKeys(ctx context.Context, keys []*MasterKey) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, k := range keys {
		if _, dup := s.publicKeys[k.PublicKey]; dup {
			continue
		}

		mk := copyMasterKey(k)
		if mk.ID == "" {
			mk.ID = uuid.NewString()
		}
		if mk.CreatedAt.IsZero() {
			mk.CreatedAt = s.clock.Now()
		}
		mk.CoinType = ""
		mk.CustomerID = ""
		mk.Exclusive = false
		mk.AssignedAt = nil

		s.masterKeys[mk.ID] = mk
		s.publicKeys[mk.PublicKey] = struct{}{}
		s.unassigned[mk.KeyType] = append(s.unassigned[mk.KeyType], mk.ID)
		s.imported[mk.KeyType]++
		inserted++
	}

	return inserted, nil
}

func (s *MemoryStore) SaveWalletKey(ctx context.Context, key *WalletKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dk := derivationKey{masterKeyID: key.MasterKeyID, path: key.DerivationPath}
	if _, ok := s.derivations[dk]; ok {
		return ErrDuplicateDerivation
	}

	wk := *key
	if wk.ID == "" {
		wk.ID = uuid.NewString()
		key.ID = wk.ID
	}

	s.walletKeys[wk.ID] = &wk
	s.derivations[dk] = wk.ID
	s.walletPubs[wk.PublicKey]++
	s.ownerEmails[wk.OwnerEmail]++

	return nil
}

func (s *MemoryStore) ExistsByPublicKey(ctx context.Context, publicKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.walletPubs[publicKey] > 0, nil
}

func (s *MemoryStore) ExistsByOwnerEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ownerEmails[email] > 0, nil
}

// MasterKeys 返回所有主密钥快照，按创建时间排序
func (s *MemoryStore) MasterKeys() []*MasterKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*MasterKey, 0, len(s.masterKeys))
	for _, mk := range s.masterKeys {
		res = append(res, copyMasterKey(mk))
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})

	return res
}

// WalletKeys 返回某主密钥下的所有钱包公钥
func (s *MemoryStore) WalletKeys(masterKeyID string) []*WalletKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*WalletKey, 0)
	for _, wk := range s.walletKeys {
		if wk.MasterKeyID == masterKeyID {
			c := *wk
			res = append(res, &c)
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].DerivationPath < res[j].DerivationPath })

	return res
}

func copyMasterKey(mk *MasterKey) *MasterKey {
	c := *mk
	if mk.AssignedAt != nil {
		t := *mk.AssignedAt
		c.AssignedAt = &t
	}
	return &c
}

type latchState struct {
	armed      bool
	generation int64
	armedAt    time.Time
}

// MemoryAlertLatch 进程内告警锁存器
type MemoryAlertLatch struct {
	mu      sync.Mutex
	latches map[string]map[int]*latchState
	clock   time2.Clock
}

var _ AlertLatch = (*MemoryAlertLatch)(nil)

func NewMemoryAlertLatch(clock time2.Clock) *MemoryAlertLatch {
	return &MemoryAlertLatch{
		latches: make(map[string]map[int]*latchState),
		clock:   clock,
	}
}

func (l *MemoryAlertLatch) Update(ctx context.Context, keyType string, threshold int, generation int64, low bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.latches[keyType]
	if !ok {
		m = make(map[int]*latchState)
		l.latches[keyType] = m
	}
	st, ok := m[threshold]
	if !ok {
		st = &latchState{generation: -1}
		m[threshold] = st
	}

	if !low {
		if generation > st.generation {
			st.armed = false
			st.generation = generation
		}
		return false, nil
	}

	if st.armed {
		if generation > st.generation {
			st.generation = generation
		}
		return false, nil
	}
	if generation < st.generation {
		return false, nil
	}

	st.armed = true
	st.generation = generation
	st.armedAt = l.clock.Now()

	return true, nil
}
