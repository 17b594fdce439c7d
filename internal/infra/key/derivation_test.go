package key

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/edwards/v2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testSeed() []byte {
	return bytes.Repeat([]byte{0x42}, hdkeychain.RecommendedSeedLen)
}

func TestDeriveExtendedPublicKey(t *testing.T) {
	s := NewDerivationService()

	for _, net := range []*chaincfg.Params{&chaincfg.MainNetParams, &chaincfg.TestNet3Params} {
		t.Run(net.Name, func(t *testing.T) {
			master, err := hdkeychain.NewMaster(testSeed(), net)
			require.NoError(t, err)

			pub, err := master.Neuter()
			require.NoError(t, err)

			mk := &storage.MasterKey{PublicKey: pub.String()}
			require.NoError(t, s.ValidateMasterKey(mk))

			for i := uint32(0); i < 4; i++ {
				privChild, err := master.Derive(i)
				require.NoError(t, err)
				expected, err := privChild.Neuter()
				require.NoError(t, err)

				derived, err := s.Derive(mk, i)
				require.NoError(t, err)
				assert.Equal(t, expected.String(), derived)
			}
		})
	}
}

func TestDeriveRejectsPrivateExtendedKey(t *testing.T) {
	s := NewDerivationService()

	master, err := hdkeychain.NewMaster(testSeed(), &chaincfg.MainNetParams)
	require.NoError(t, err)

	mk := &storage.MasterKey{PublicKey: master.String()}

	_, err = s.Derive(mk, 0)
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
	assert.ErrorIs(t, s.ValidateMasterKey(mk), ErrInvalidMasterKey)
}

func TestDeriveInvalidMasterKeys(t *testing.T) {
	s := NewDerivationService()

	tests := []struct {
		name string
		mk   *storage.MasterKey
	}{
		{"garbage extended key", &storage.MasterKey{PublicKey: "xpub-not-really"}},
		{"non hex raw key", &storage.MasterKey{PublicKey: "zz", ChainCode: "00"}},
		{"non hex chain code", &storage.MasterKey{PublicKey: "02", ChainCode: "zz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Derive(tt.mk, 0)
			assert.ErrorIs(t, err, ErrInvalidMasterKey)
		})
	}
}

func TestDeriveHardenedIndex(t *testing.T) {
	s := NewDerivationService()

	_, err := s.Derive(&storage.MasterKey{PublicKey: "unused"}, hdkeychain.HardenedKeyStart)
	assert.ErrorIs(t, err, ErrDerivationIndexExhausted)
}

func rawSecp256k1Master(t *testing.T) (*btcec.PrivateKey, *storage.MasterKey) {
	t.Helper()

	privBytes := bytes.Repeat([]byte{0x07}, 32)
	priv, pub := btcec.PrivKeyFromBytes(privBytes)

	chainCode := bytes.Repeat([]byte{0x01}, 32)

	return priv, &storage.MasterKey{
		PublicKey: hex.EncodeToString(pub.SerializeCompressed()),
		ChainCode: hex.EncodeToString(chainCode),
		Curve:     config.CurveSecp256k1,
	}
}

func TestDeriveSecp256k1MatchesPrivateDerivation(t *testing.T) {
	s := NewDerivationService()
	priv, mk := rawSecp256k1Master(t)
	require.NoError(t, s.ValidateMasterKey(mk))

	chainCode, _ := hex.DecodeString(mk.ChainCode)

	for i := uint32(0); i < 4; i++ {
		il, _, err := s.computeIL(priv.PubKey().SerializeCompressed(), chainCode, i)
		require.NoError(t, err)

		// k_child = k_parent + IL mod n
		childScalar := new(big.Int).Add(new(big.Int).SetBytes(priv.Serialize()), il)
		childScalar.Mod(childScalar, btcec.S256().N)
		_, expected := btcec.PrivKeyFromBytes(childScalar.FillBytes(make([]byte, 32)))

		derived, err := s.Derive(mk, i)
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(expected.SerializeCompressed()), derived)
	}
}

func TestDeriveEd25519(t *testing.T) {
	s := NewDerivationService()

	// RFC 8032 7.1 TEST 1 public key
	pubKeyHex := "3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29"
	pubKeyBytes, _ := hex.DecodeString(pubKeyHex)

	chainCode := bytes.Repeat([]byte{0x01}, 32)

	res, err := s.deriveEd25519(pubKeyBytes, chainCode, 0)
	require.NoError(t, err)
	assert.Len(t, res.PublicKey, 32)
	assert.Len(t, res.ChainCode, 32)
	assert.NotEqual(t, pubKeyBytes, res.PublicKey)

	mk := &storage.MasterKey{
		PublicKey: pubKeyHex,
		ChainCode: hex.EncodeToString(chainCode),
		Curve:     config.CurveEd25519,
	}
	require.NoError(t, s.ValidateMasterKey(mk))

	derived, err := s.Derive(mk, 0)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(res.PublicKey), derived)
}

func TestDeriveEd25519MatchesPrivateDerivation(t *testing.T) {
	s := NewDerivationService()

	scalar := bytes.Repeat([]byte{0x07}, edwards.PrivScalarSize)
	priv, pub, err := edwards.PrivKeyFromScalar(scalar)
	require.NoError(t, err)

	chainCode := bytes.Repeat([]byte{0x01}, 32)
	mk := &storage.MasterKey{
		PublicKey: hex.EncodeToString(pub.Serialize()),
		ChainCode: hex.EncodeToString(chainCode),
		Curve:     config.CurveEd25519,
	}
	require.NoError(t, s.ValidateMasterKey(mk))

	n := edwards.Edwards().N
	for i := uint32(0); i < 4; i++ {
		il, _, err := s.computeIL(pub.Serialize(), chainCode, i)
		require.NoError(t, err)

		// k_child = k_parent + IL mod n
		childScalar := new(big.Int).Add(priv.GetD(), il)
		childScalar.Mod(childScalar, n)
		_, expected, err := edwards.PrivKeyFromScalar(childScalar.FillBytes(make([]byte, edwards.PrivScalarSize)))
		require.NoError(t, err)

		derived, err := s.Derive(mk, i)
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(expected.Serialize()), derived)
	}
}

func TestValidateRawMasterKeyWithoutChainCode(t *testing.T) {
	s := NewDerivationService()

	_, edPub, err := edwards.PrivKeyFromScalar(bytes.Repeat([]byte{0x05}, edwards.PrivScalarSize))
	require.NoError(t, err)
	_, secpPub := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x05}, 32))

	valid := []*storage.MasterKey{
		// RFC 8032 7.1 TEST 1 public key
		{PublicKey: "3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29", Curve: config.CurveEd25519},
		{PublicKey: hex.EncodeToString(edPub.Serialize()), Curve: config.CurveEd25519},
		{PublicKey: hex.EncodeToString(secpPub.SerializeCompressed()), Curve: config.CurveSecp256k1},
	}
	for _, mk := range valid {
		require.NoError(t, s.ValidateMasterKey(mk), mk.PublicKey)

		// usable as a single-use key, not as a derivation root
		_, err := s.Derive(mk, 0)
		assert.ErrorIs(t, err, ErrInvalidMasterKey)
	}

	invalid := []*storage.MasterKey{
		{PublicKey: "abcd", Curve: config.CurveEd25519},
		{PublicKey: "02", Curve: config.CurveSecp256k1},
		{PublicKey: hex.EncodeToString(secpPub.SerializeCompressed()), Curve: "p256"},
	}
	for _, mk := range invalid {
		assert.ErrorIs(t, s.ValidateMasterKey(mk), ErrInvalidMasterKey, mk.PublicKey)
	}
}

func TestDeriveUnsupportedCurve(t *testing.T) {
	s := NewDerivationService()

	_, err := s.DeriveChildKey(&DeriveChildKeyRequest{Curve: "p256", ParentChainCode: make([]byte, 32)})
	assert.Error(t, err)
}

func TestDerivePureAndInjective(t *testing.T) {
	s := NewDerivationService()
	_, mk := rawSecp256k1Master(t)

	rapid.Check(t, func(t *rapid.T) {
		i := rapid.Uint32Range(0, storage.MaxDerivationIndex-1).Draw(t, "i")
		j := rapid.Uint32Range(0, storage.MaxDerivationIndex-1).Draw(t, "j")

		a, err := s.Derive(mk, i)
		if err != nil {
			t.Fatalf("derive %d: %v", i, err)
		}
		again, err := s.Derive(mk, i)
		if err != nil {
			t.Fatalf("derive %d again: %v", i, err)
		}
		if a != again {
			t.Fatalf("derive(%d) not deterministic: %s != %s", i, a, again)
		}

		if i == j {
			return
		}

		b, err := s.Derive(mk, j)
		if err != nil {
			t.Fatalf("derive %d: %v", j, err)
		}
		if a == b {
			t.Fatalf("derive(%d) == derive(%d)", i, j)
		}
	})
}

func TestGenerateMasterKeys(t *testing.T) {
	s := NewDerivationService()

	tests := []struct {
		name string
		opts GenerateOptions
	}{
		{"extended mainnet", GenerateOptions{KeyType: "btc", Extended: true, Count: 2}},
		{"extended testnet", GenerateOptions{KeyType: "tbtc", Extended: true, Net: &chaincfg.TestNet3Params, Count: 1}},
		{"raw secp256k1", GenerateOptions{KeyType: "eth", Count: 2}},
		{"raw ed25519", GenerateOptions{KeyType: "xlm", Curve: config.CurveEd25519, Count: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := s.GenerateMasterKeys(tt.opts)
			require.NoError(t, err)
			require.Len(t, keys, tt.opts.Count)

			for _, mk := range keys {
				assert.Equal(t, tt.opts.KeyType, mk.KeyType)
				assert.NoError(t, s.ValidateMasterKey(mk))

				_, err := s.Derive(mk, 1)
				assert.NoError(t, err)
			}
		})
	}

	_, err := s.GenerateMasterKeys(GenerateOptions{KeyType: "xlm", Curve: config.CurveEd25519, Extended: true, Count: 1})
	assert.Error(t, err)
}
