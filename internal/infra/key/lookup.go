package key

import (
	"context"

	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/pkg/errors"
)

// LookupService 只读查询：公钥或邮箱是否对应已签发的钱包公钥
type LookupService struct {
	store storage.WalletKeyStore
}

func NewLookupService(store storage.WalletKeyStore) *LookupService {
	return &LookupService{store: store}
}

func (s *LookupService) IsIssuedPublicKey(ctx context.Context, pub string) (bool, error) {
	ok, err := s.store.ExistsByPublicKey(ctx, pub)
	if err != nil {
		return false, errors.Wrap(err, "failed to look up public key")
	}
	return ok, nil
}

func (s *LookupService) IsKnownOwner(ctx context.Context, email string) (bool, error) {
	ok, err := s.store.ExistsByOwnerEmail(ctx, email)
	if err != nil {
		return false, errors.Wrap(err, "failed to look up owner email")
	}
	return ok, nil
}
