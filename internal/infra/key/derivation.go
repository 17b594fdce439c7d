package key

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/edwards/v2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/pkg/errors"
)

// Deriver 派生原语：由主公钥与索引确定性地派生子公钥
type Deriver interface {
	Derive(master *storage.MasterKey, index uint32) (string, error)
}

// DerivationService 负责子公钥派生
// 主密钥有三种格式：
//   - BIP-32 扩展公钥 (xpub/tpub)，ChainCode 为空，派生结果为子扩展公钥
//   - 原始 hex 公钥 + hex 链码，按曲线做加法派生，派生结果为 hex 子公钥
//   - 原始 hex 公钥且无链码，只能作为一次性主密钥直接发放，不能派生
type DerivationService struct{}

var _ Deriver = (*DerivationService)(nil)

// NewDerivationService 创建密钥派生服务
func NewDerivationService() *DerivationService {
	return &DerivationService{}
}

// DeriveChildKeyRequest 派生请求参数
type DeriveChildKeyRequest struct {
	ParentPubKey    []byte
	ParentChainCode []byte
	Curve           string
	Index           uint32
}

// DerivedKeyResult 派生结果
type DerivedKeyResult struct {
	PublicKey []byte
	ChainCode []byte
}

// Derive 在 index 处派生 master 的子公钥
func (s *DerivationService) Derive(master *storage.MasterKey, index uint32) (string, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return "", ErrDerivationIndexExhausted
	}

	if master.ChainCode == "" {
		if !isExtendedKeyString(master.PublicKey) {
			return "", errors.Wrap(ErrInvalidMasterKey, "raw public key without chain code cannot be derived")
		}

		ext, err := parseExtendedPublicKey(master.PublicKey)
		if err != nil {
			return "", err
		}

		child, err := ext.Derive(index)
		if err != nil {
			return "", errors.Wrapf(err, "failed to derive child %d", index)
		}

		return child.String(), nil
	}

	pubKey, chainCode, err := decodeRawMasterKey(master)
	if err != nil {
		return "", err
	}

	res, err := s.DeriveChildKey(&DeriveChildKeyRequest{
		ParentPubKey:    pubKey,
		ParentChainCode: chainCode,
		Curve:           master.Curve,
		Index:           index,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to derive child %d", index)
	}

	return hex.EncodeToString(res.PublicKey), nil
}

// ValidateMasterKey 检查主密钥格式；拒绝私钥与格式错误的公钥
func (s *DerivationService) ValidateMasterKey(master *storage.MasterKey) error {
	if master.ChainCode == "" && isExtendedKeyString(master.PublicKey) {
		_, err := parseExtendedPublicKey(master.PublicKey)
		return err
	}

	pubKey, chainCode, err := decodeRawMasterKey(master)
	if err != nil {
		return err
	}

	if err := validateRawPublicKey(pubKey, master.Curve); err != nil {
		return err
	}

	if master.ChainCode != "" && len(chainCode) != 32 {
		return errors.Wrap(ErrInvalidMasterKey, "chain code must be 32 bytes")
	}

	return nil
}

// isExtendedKeyString base58 扩展公钥一定含有非 hex 字符
func isExtendedKeyString(s string) bool {
	_, err := hex.DecodeString(s)
	return err != nil
}

func validateRawPublicKey(pubKey []byte, curve string) error {
	switch strings.ToLower(curve) {
	case config.CurveSecp256k1, "":
		if _, err := btcec.ParsePubKey(pubKey); err != nil {
			return errors.Wrapf(ErrInvalidMasterKey, "secp256k1 public key: %v", err)
		}
	case config.CurveEd25519:
		if _, err := edwards.ParsePubKey(pubKey); err != nil {
			return errors.Wrapf(ErrInvalidMasterKey, "ed25519 public key: %v", err)
		}
	default:
		return errors.Wrapf(ErrInvalidMasterKey, "unsupported curve %s", curve)
	}

	return nil
}

func parseExtendedPublicKey(s string) (*hdkeychain.ExtendedKey, error) {
	ext, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidMasterKey, "extended key: %v", err)
	}

	// 池中只允许公钥
	if ext.IsPrivate() {
		return nil, errors.Wrap(ErrInvalidMasterKey, "extended private keys are not accepted")
	}

	return ext, nil
}

func decodeRawMasterKey(master *storage.MasterKey) ([]byte, []byte, error) {
	pubKey, err := hex.DecodeString(master.PublicKey)
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidMasterKey, "public key is not hex")
	}

	chainCode, err := hex.DecodeString(master.ChainCode)
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidMasterKey, "chain code is not hex")
	}

	return pubKey, chainCode, nil
}

// GenerateRandomChainCode 生成随机 ChainCode
func (s *DerivationService) GenerateRandomChainCode() ([]byte, error) {
	chainCode := make([]byte, 32)
	if _, err := rand.Read(chainCode); err != nil {
		return nil, errors.Wrap(err, "failed to generate random chain code")
	}
	return chainCode, nil
}

// DeriveChildKey 执行单步派生
func (s *DerivationService) DeriveChildKey(req *DeriveChildKeyRequest) (*DerivedKeyResult, error) {
	switch strings.ToLower(req.Curve) {
	case config.CurveSecp256k1, "":
		return s.deriveSecp256k1(req.ParentPubKey, req.ParentChainCode, req.Index)
	case config.CurveEd25519:
		return s.deriveEd25519(req.ParentPubKey, req.ParentChainCode, req.Index)
	default:
		return nil, errors.Errorf("unsupported curve for derivation: %s", req.Curve)
	}
}

// deriveEd25519 Ed25519 非强化加法派生变体
// 标准 Ed25519 (SLIP-0010) 只支持强化派生，这里 P_child = P_parent + IL * G
func (s *DerivationService) deriveEd25519(pubKey []byte, chainCode []byte, index uint32) (*DerivedKeyResult, error) {
	if len(pubKey) != 32 {
		return nil, errors.New("invalid ed25519 public key length")
	}

	parentPoint, err := edwards.ParsePubKey(pubKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ed25519 public key")
	}

	ilNum, IR, err := s.computeIL(pubKey, chainCode, index)
	if err != nil {
		return nil, err
	}

	// Ed25519 群阶约 2^252，IL 直接取模
	curve := edwards.Edwards()
	ilNum.Mod(ilNum, curve.N)
	if ilNum.Sign() == 0 {
		return nil, errors.New("invalid derived key (IL = 0 mod n)")
	}

	ilx, ily := curve.ScalarBaseMult(ilNum.Bytes())
	childX, childY := curve.Add(parentPoint.X, parentPoint.Y, ilx, ily)

	childPoint := edwards.PublicKey{
		Curve: curve,
		X:     childX,
		Y:     childY,
	}

	return &DerivedKeyResult{
		PublicKey: childPoint.Serialize(),
		ChainCode: IR,
	}, nil
}

// computeIL 计算 HMAC-SHA512(chainCode, serP || index) 的左半部分 IL 与右半部分 IR
func (s *DerivationService) computeIL(serializedPubKey []byte, chainCode []byte, index uint32) (*big.Int, []byte, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, nil, errors.New("hardened derivation is not supported without private key")
	}

	if len(chainCode) != 32 {
		return nil, nil, errors.New("invalid chain code length: must be 32 bytes")
	}

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(serializedPubKey)

	indexBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(indexBytes, index)
	mac.Write(indexBytes)

	I := mac.Sum(nil)
	IL := I[:32]
	IR := I[32:]

	return new(big.Int).SetBytes(IL), IR, nil
}

// deriveSecp256k1 BIP-32 Secp256k1 非强化派生
func (s *DerivationService) deriveSecp256k1(pubKey []byte, chainCode []byte, index uint32) (*DerivedKeyResult, error) {
	parentPubKey, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse secp256k1 public key")
	}

	ilNum, IR, err := s.computeIL(parentPubKey.SerializeCompressed(), chainCode, index)
	if err != nil {
		return nil, err
	}

	// IL >= n 或 IL = 0 时该索引无效
	if ilNum.Cmp(btcec.S256().N) >= 0 || ilNum.Sign() == 0 {
		return nil, errors.New("invalid derived key (IL >= n or IL = 0)")
	}

	// Ki = P + IL * G
	ilx, ily := btcec.S256().ScalarBaseMult(ilNum.Bytes())
	parent := parentPubKey.ToECDSA()
	childX, childY := btcec.S256().Add(parent.X, parent.Y, ilx, ily)

	if childX.Sign() == 0 && childY.Sign() == 0 {
		return nil, errors.New("invalid derived key (point at infinity)")
	}

	var fx, fy btcec.FieldVal
	fx.SetByteSlice(childX.Bytes())
	fy.SetByteSlice(childY.Bytes())
	child := btcec.NewPublicKey(&fx, &fy)

	return &DerivedKeyResult{
		PublicKey: child.SerializeCompressed(),
		ChainCode: IR,
	}, nil
}
