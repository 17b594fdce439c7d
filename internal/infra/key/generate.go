package key

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/edwards/v2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/pkg/errors"
)

// GenerateOptions 生成演示/测试用主密钥的参数
type GenerateOptions struct {
	KeyType string
	Curve   string
	// Extended 生成 BIP-32 扩展公钥 (仅 secp256k1)，否则生成原始公钥 + 链码
	Extended bool
	Net      *chaincfg.Params
	Count    int
}

// GenerateMasterKeys 生成未分配的主密钥记录，私钥在生成后立即丢弃。
// 只用于开发环境填充池与测试；生产环境的主密钥由外部密钥生成流程导入。
func (s *DerivationService) GenerateMasterKeys(opts GenerateOptions) ([]*storage.MasterKey, error) {
	curve := opts.Curve
	if curve == "" {
		curve = config.CurveSecp256k1
	}

	if opts.Extended && curve != config.CurveSecp256k1 {
		return nil, errors.Errorf("extended master keys require secp256k1, got %s", curve)
	}

	net := opts.Net
	if net == nil {
		net = &chaincfg.MainNetParams
	}

	keys := make([]*storage.MasterKey, 0, opts.Count)
	for n := 0; n < opts.Count; n++ {
		mk := &storage.MasterKey{
			KeyType: opts.KeyType,
			Curve:   curve,
		}

		switch {
		case opts.Extended:
			seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
			if err != nil {
				return nil, errors.Wrap(err, "failed to generate seed")
			}

			master, err := hdkeychain.NewMaster(seed, net)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create master key")
			}

			pub, err := master.Neuter()
			if err != nil {
				return nil, errors.Wrap(err, "failed to neuter master key")
			}
			mk.PublicKey = pub.String()

		case curve == config.CurveEd25519:
			priv, err := edwards.GeneratePrivateKey()
			if err != nil {
				return nil, errors.Wrap(err, "failed to generate ed25519 key")
			}
			mk.PublicKey = hex.EncodeToString(priv.PubKey().Serialize())

		default:
			priv, err := btcec.NewPrivateKey()
			if err != nil {
				return nil, errors.Wrap(err, "failed to generate secp256k1 key")
			}
			mk.PublicKey = hex.EncodeToString(priv.PubKey().SerializeCompressed())
		}

		if !opts.Extended {
			chainCode, err := s.GenerateRandomChainCode()
			if err != nil {
				return nil, err
			}
			mk.ChainCode = hex.EncodeToString(chainCode)
		}

		keys = append(keys, mk)
	}

	return keys, nil
}
