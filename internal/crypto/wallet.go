// Package crypto provides wallet signature verification for API
// authentication and secret handling for the admin key.
package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signature lengths for the 65-byte [R || S || V] format produced by
// personal_sign.
const sigLen = 65

// VerifyPersonalSign checks that sigHex is a valid personal_sign signature
// over message by the given wallet address. The message is hashed with the
// EIP-191 prefix ("\x19Ethereum Signed Message:\n" + len(message)) before
// recovery, which is what every browser wallet produces.
//
// The V byte is accepted both raw (0/1) and in the legacy 27/28 form.
func VerifyPersonalSign(wallet, message, sigHex string) error {
	if !common.IsHexAddress(wallet) {
		return errors.New("crypto: invalid wallet address")
	}

	sig, err := hexutil.Decode(ensureHexPrefix(sigHex))
	if err != nil {
		return fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(sig) != sigLen {
		return fmt.Errorf("crypto: expected %d-byte signature, got %d", sigLen, len(sig))
	}

	// Normalise V for SigToPub, which wants 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return errors.New("crypto: invalid recovery id")
	}

	hash := personalSignHash([]byte(message))
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("crypto: recover public key: %w", err)
	}

	recovered := ethcrypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(wallet) {
		return errors.New("crypto: signature does not match wallet")
	}
	return nil
}

// personalSignHash applies the EIP-191 personal message prefix and returns
// the keccak256 digest.
func personalSignHash(message []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return ethcrypto.Keccak256([]byte(prefixed))
}

// NormalizeAddress returns the EIP-55 checksummed form of a wallet address,
// used as the canonical account key everywhere in the system.
func NormalizeAddress(wallet string) (string, error) {
	if !common.IsHexAddress(wallet) {
		return "", errors.New("crypto: invalid wallet address")
	}
	return common.HexToAddress(wallet).Hex(), nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
