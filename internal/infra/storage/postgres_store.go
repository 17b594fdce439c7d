package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/aarondl/sqlboiler/v4/queries"
	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	pqUniqueViolation           = "23505"
	pqInvalidTextRepresentation = "22P02"

	constraintExclusiveAssignment = "master_keys_exclusive_assignment_key"
	constraintDerivationPath      = "wallet_keys_master_key_id_derivation_path_key"
)

const masterKeyColumns = `id, key_type, public_key, chain_code, curve, signature, coin_type, customer_id,
	exclusive, derivation_index, created_at, assigned_at`

type masterKeyRow struct {
	ID              string      `boil:"id"`
	KeyType         string      `boil:"key_type"`
	PublicKey       string      `boil:"public_key"`
	ChainCode       null.String `boil:"chain_code"`
	Curve           string      `boil:"curve"`
	Signature       null.String `boil:"signature"`
	CoinType        null.String `boil:"coin_type"`
	CustomerID      null.String `boil:"customer_id"`
	Exclusive       bool        `boil:"exclusive"`
	DerivationIndex int64       `boil:"derivation_index"`
	CreatedAt       time.Time   `boil:"created_at"`
	AssignedAt      null.Time   `boil:"assigned_at"`
}

func (r *masterKeyRow) toMasterKey() *MasterKey {
	mk := &MasterKey{
		ID:              r.ID,
		KeyType:         r.KeyType,
		PublicKey:       r.PublicKey,
		ChainCode:       r.ChainCode.String,
		Curve:           r.Curve,
		Signature:       r.Signature.String,
		CoinType:        r.CoinType.String,
		CustomerID:      r.CustomerID.String,
		Exclusive:       r.Exclusive,
		DerivationIndex: uint32(r.DerivationIndex),
		CreatedAt:       r.CreatedAt,
	}
	if r.AssignedAt.Valid {
		t := r.AssignedAt.Time
		mk.AssignedAt = &t
	}
	return mk
}

// PostgresStore PostgreSQL 存储实现
// 领取使用 UPDATE ... FOR UPDATE SKIP LOCKED，独占分配与派生路径唯一性由唯一索引保证
type PostgresStore struct {
	db    *sql.DB
	clock time2.Clock
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore 创建 PostgreSQL 存储实例
func NewPostgresStore(db *sql.DB, clock time2.Clock) *PostgresStore {
	return &PostgresStore{db: db, clock: clock}
}

func (s *PostgresStore) ClaimUnassigned(ctx context.Context, keyType, coinType, customerID string, exclusive bool) (*MasterKey, error) {
	var row masterKeyRow
	err := queries.Raw(`
		UPDATE master_keys
		SET coin_type = $2, customer_id = $3, exclusive = $4, assigned_at = $5
		WHERE id = (
			SELECT id FROM master_keys
			WHERE key_type = $1 AND coin_type IS NULL
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+masterKeyColumns,
		keyType, coinType, customerID, exclusive, s.clock.Now(),
	).Bind(ctx, s.db, &row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if exclusive {
				return nil, s.exclusiveConflict(ctx, coinType, customerID)
			}
			return nil, ErrNotFound
		}
		if isUniqueViolation(err, constraintExclusiveAssignment) {
			return nil, ErrAssignmentConflict
		}
		return nil, errors.Wrap(err, "failed to claim master key")
	}

	return row.toMasterKey(), nil
}

// exclusiveConflict 池为空时区分冲突与缺货，与其他实现的检查顺序一致
func (s *PostgresStore) exclusiveConflict(ctx context.Context, coinType, customerID string) error {
	var res struct {
		Assigned bool `boil:"assigned"`
	}
	err := queries.Raw(`SELECT EXISTS (
			SELECT 1 FROM master_keys WHERE coin_type = $1 AND customer_id = $2 AND exclusive
		) AS assigned`, coinType, customerID).
		Bind(ctx, s.db, &res)
	if err != nil {
		return errors.Wrap(err, "failed to check exclusive assignment")
	}
	if res.Assigned {
		return ErrAssignmentConflict
	}

	return ErrNotFound
}

func (s *PostgresStore) SupplySnapshot(ctx context.Context, keyType string) (PoolSupply, error) {
	var res struct {
		Unassigned int   `boil:"unassigned"`
		Imported   int64 `boil:"imported"`
	}
	err := queries.Raw(`
		SELECT count(*) FILTER (WHERE coin_type IS NULL) AS unassigned, count(*) AS imported
		FROM master_keys WHERE key_type = $1`, keyType).
		Bind(ctx, s.db, &res)
	if err != nil {
		return PoolSupply{}, errors.Wrap(err, "failed to read pool supply")
	}

	return PoolSupply{Unassigned: res.Unassigned, Generation: res.Imported}, nil
}

func (s *PostgresStore) CountUnassigned(ctx context.Context, keyType string) (int, error) {
	var res struct {
		Count int `boil:"count"`
	}
	err := queries.Raw(`SELECT count(*) AS count FROM master_keys WHERE key_type = $1 AND coin_type IS NULL`, keyType).
		Bind(ctx, s.db, &res)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unassigned master keys")
	}

	return res.Count, nil
}

func (s *PostgresStore) ReserveDerivationIndex(ctx context.Context, masterKeyID string) (uint32, error) {
	var res struct {
		Reserved int64 `boil:"reserved"`
	}
	err := queries.Raw(`
		UPDATE master_keys
		SET derivation_index = derivation_index + 1
		WHERE id = $1 AND coin_type IS NOT NULL AND derivation_index < $2
		RETURNING derivation_index - 1 AS reserved`,
		masterKeyID, int64(MaxDerivationIndex),
	).Bind(ctx, s.db, &res)
	if err == nil {
		return uint32(res.Reserved), nil
	}

	if isInvalidText(err) {
		return 0, ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrap(err, "failed to reserve derivation index")
	}

	// 区分主密钥不存在/未分配与索引耗尽
	var row masterKeyRow
	err = queries.Raw(`SELECT `+masterKeyColumns+` FROM master_keys WHERE id = $1`, masterKeyID).Bind(ctx, s.db, &row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "failed to load master key")
	}
	if !row.CoinType.Valid {
		return 0, ErrNotFound
	}

	return 0, ErrIndexExhausted
}

func (s *PostgresStore) IncrementDerivationIndex(ctx context.Context, masterKeyID string) error {
	_, err := s.ReserveDerivationIndex(ctx, masterKeyID)
	return err
}

func (s *PostgresStore) FindAssigned(ctx context.Context, coinType, customerID string) (*MasterKey, error) {
	var row masterKeyRow
	err := queries.Raw(`SELECT `+masterKeyColumns+` FROM master_keys WHERE coin_type = $1 AND customer_id = $2 AND exclusive`,
		coinType, customerID,
	).Bind(ctx, s.db, &row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find assigned master key")
	}

	return row.toMasterKey(), nil
}

func (s *PostgresStore) InsertMasterKeys(ctx context.Context, keys []*MasterKey) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO master_keys (id, key_type, public_key, chain_code, curve, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (public_key) DO NOTHING`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

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

		res, err := stmt.ExecContext(ctx,
			id, k.KeyType, k.PublicKey, null.NewString(k.ChainCode, k.ChainCode != ""),
			k.Curve, null.NewString(k.Signature, k.Signature != ""), createdAt,
		)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to insert master key %s", k.PublicKey)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "failed to read affected rows")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit master keys")
	}

	return inserted, nil
}

func (s *PostgresStore) SaveWalletKey(ctx context.Context, key *WalletKey) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}

	var custom null.JSON
	if key.CustomMetadata != nil {
		b, err := json.Marshal(key.CustomMetadata)
		if err != nil {
			return errors.Wrap(err, "failed to marshal custom metadata")
		}
		custom = null.JSONFrom(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_keys (id, public_key, master_key_id, derivation_path, coin_type, customer_id,
			owner_email, notification_url, custom_metadata, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		key.ID, key.PublicKey, key.MasterKeyID, int64(key.DerivationPath), key.CoinType, key.CustomerID,
		key.OwnerEmail, null.NewString(key.NotificationURL, key.NotificationURL != ""), custom, key.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintDerivationPath) {
			return ErrDuplicateDerivation
		}
		return errors.Wrap(err, "failed to save wallet key")
	}

	return nil
}

func (s *PostgresStore) ExistsByPublicKey(ctx context.Context, publicKey string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM wallet_keys WHERE public_key = $1) AS exists`, publicKey)
}

func (s *PostgresStore) ExistsByOwnerEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM wallet_keys WHERE owner_email = $1) AS exists`, email)
}

func (s *PostgresStore) exists(ctx context.Context, query string, arg string) (bool, error) {
	var res struct {
		Exists bool `boil:"exists"`
	}
	if err := queries.Raw(query, arg).Bind(ctx, s.db, &res); err != nil {
		return false, errors.Wrap(err, "failed to check wallet key existence")
	}

	return res.Exists, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation && pqErr.Constraint == constraint
}

func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation
}
