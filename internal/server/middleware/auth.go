package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paperhands/paperhands/internal/crypto"
)

type contextKey string

const walletKey contextKey = "wallet"

// Header names for wallet-signature authentication. The client signs the
// canonical login message with personal_sign and sends the result alongside
// the wallet address and the unix timestamp it signed.
const (
	HeaderWallet    = "X-Wallet"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// AuthConfig controls the wallet-signature middleware.
type AuthConfig struct {
	// SignatureTTL bounds how old a signed timestamp may be.
	SignatureTTL time.Duration
	// Disabled skips signature verification and trusts X-Wallet as-is.
	// Local development only.
	Disabled bool
}

// LoginMessage is the canonical text a wallet signs to authenticate. The
// timestamp binds the signature to a narrow window so it cannot be replayed
// indefinitely.
func LoginMessage(wallet string, ts int64) string {
	return "paperhands login\nwallet: " + strings.ToLower(wallet) + "\nts: " + strconv.FormatInt(ts, 10)
}

// WalletAuth returns middleware that authenticates requests by verifying an
// Ethereum personal_sign signature over the canonical login message. On
// success the normalized wallet address is stored on the request context.
func WalletAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wallet := strings.TrimSpace(r.Header.Get(HeaderWallet))
			if wallet == "" {
				writeUnauthorized(w, "missing wallet header")
				return
			}

			normalized, err := crypto.NormalizeAddress(wallet)
			if err != nil {
				writeUnauthorized(w, "invalid wallet address")
				return
			}

			if !cfg.Disabled {
				sig := strings.TrimSpace(r.Header.Get(HeaderSignature))
				tsRaw := strings.TrimSpace(r.Header.Get(HeaderTimestamp))
				if sig == "" || tsRaw == "" {
					writeUnauthorized(w, "missing signature headers")
					return
				}

				ts, err := strconv.ParseInt(tsRaw, 10, 64)
				if err != nil {
					writeUnauthorized(w, "invalid timestamp")
					return
				}

				age := time.Since(time.Unix(ts, 0))
				if age < -time.Minute || age > cfg.SignatureTTL {
					writeUnauthorized(w, "signature expired")
					return
				}

				if err := crypto.VerifyPersonalSign(normalized, LoginMessage(normalized, ts), sig); err != nil {
					writeUnauthorized(w, "signature verification failed")
					return
				}
			}

			ctx := context.WithValue(r.Context(), walletKey, normalized)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Wallet returns the authenticated wallet address stored by WalletAuth, or
// the empty string when the request was not wallet-authenticated.
func Wallet(ctx context.Context) string {
	w, _ := ctx.Value(walletKey).(string)
	return w
}

// AdminAuth returns middleware that validates requests against the admin API
// key, accepted as a Bearer token or in the X-Admin-Key header. If adminKey
// is empty, admin endpoints are disabled outright.
func AdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeUnauthorized(w, "admin endpoints disabled")
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing admin key")
				return
			}

			if !crypto.ConstantTimeEquals(token, adminKey) {
				writeUnauthorized(w, "invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-Admin-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-Admin-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
