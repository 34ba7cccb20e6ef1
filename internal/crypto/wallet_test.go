package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, message string) (wallet, sigHex string) {
	t.Helper()

	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	sig, err := ethcrypto.Sign(personalSignHash([]byte(message)), pk)
	require.NoError(t, err)

	return ethcrypto.PubkeyToAddress(pk.PublicKey).Hex(), hexutil.Encode(sig)
}

func TestVerifyPersonalSign(t *testing.T) {
	const msg = "paperhands login: 1756500000"
	wallet, sig := signMessage(t, msg)

	assert.NoError(t, VerifyPersonalSign(wallet, msg, sig))
}

func TestVerifyPersonalSignLegacyV(t *testing.T) {
	const msg = "paperhands login: 1756500000"
	wallet, sigHex := signMessage(t, msg)

	// Browser wallets report V as 27/28 rather than 0/1.
	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	sig[64] += 27

	assert.NoError(t, VerifyPersonalSign(wallet, msg, hexutil.Encode(sig)))
}

func TestVerifyPersonalSignWrongWallet(t *testing.T) {
	const msg = "paperhands login: 1756500000"
	_, sig := signMessage(t, msg)

	err := VerifyPersonalSign("0x0000000000000000000000000000000000000001", msg, sig)
	assert.Error(t, err)
}

func TestVerifyPersonalSignTamperedMessage(t *testing.T) {
	wallet, sig := signMessage(t, "paperhands login: 1756500000")

	err := VerifyPersonalSign(wallet, "paperhands login: 1756500001", sig)
	assert.Error(t, err)
}

func TestVerifyPersonalSignMalformed(t *testing.T) {
	err := VerifyPersonalSign("0x0000000000000000000000000000000000000001", "hi", "0xdeadbeef")
	assert.Error(t, err)

	err = VerifyPersonalSign("not-an-address", "hi", "0xdeadbeef")
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x52908400098527886e0f7030069857d2e4169ee7")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", got)

	_, err = NormalizeAddress("bogus")
	assert.Error(t, err)
}

func TestSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("super-admin-key", "pw")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, "super-admin-key", got)

	_, err = DecryptSecret(blob, "wrong")
	assert.Error(t, err)
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("abc", "abc"))
	assert.False(t, ConstantTimeEquals("abc", "abd"))
	assert.False(t, ConstantTimeEquals("abc", "abcd"))
}
