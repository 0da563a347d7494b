package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// HeaderName carries the signed caller identity
const HeaderName = "X-Debate-Auth"

// ContextKey is the key type for context values
type ContextKey string

const (
	// CallerKey is the context key for the authenticated caller address
	CallerKey ContextKey = "caller"
)

// Validator checks signed auth headers against a shared secret
type Validator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewValidator creates a validator. Headers older than maxAge are rejected.
func NewValidator(secret string, maxAge time.Duration) *Validator {
	return &Validator{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Validate parses "address=0x..&auth_date=<unix>&hash=<hex>" and checks the
// HMAC-SHA256 signature and the auth_date.
func (v *Validator) Validate(header string) (common.Address, error) {
	if len(v.secret) == 0 {
		return common.Address{}, fmt.Errorf("auth secret not set")
	}

	parts := strings.Split(header, "&")
	var hash string
	data := make(map[string]string)
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, value := kv[0], kv[1]
		if key == "hash" {
			hash = value
		} else {
			data[key] = value
		}
	}

	if hash == "" {
		return common.Address{}, fmt.Errorf("hash not found in auth header")
	}

	expected := v.sign(data)
	if !hmac.Equal([]byte(strings.ToLower(hash)), []byte(expected)) {
		return common.Address{}, fmt.Errorf("invalid hash")
	}

	authDateStr, ok := data["auth_date"]
	if !ok {
		return common.Address{}, fmt.Errorf("auth_date not found")
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid auth_date format")
	}
	if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return common.Address{}, fmt.Errorf("auth_date is too old")
	}

	addr, ok := data["address"]
	if !ok {
		return common.Address{}, fmt.Errorf("address not found in auth header")
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

// Sign builds a header value for addr, as produced by a trusted frontend
func (v *Validator) Sign(addr common.Address, authDate time.Time) string {
	data := map[string]string{
		"address":   addr.Hex(),
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
	}
	return fmt.Sprintf("address=%s&auth_date=%s&hash=%s", data["address"], data["auth_date"], v.sign(data))
}

// sign computes the hex HMAC over the key-sorted "k=v" lines of data
func (v *Validator) sign(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%s", k, data[k]))
	}

	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// Middleware resolves the caller from the auth header when one is present.
// Requests without the header pass through anonymously; a bad header is rejected.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(HeaderName)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := v.Validate(header)
		if err != nil {
			log.Printf("Auth failed: %v", err)
			http.Error(w, "Unauthorized: invalid "+HeaderName+" header", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
	})
}

// ContextWithCaller adds the caller address to the context
func ContextWithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// GetCallerFromContext retrieves the caller address from the context
func GetCallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(CallerKey).(common.Address)
	return caller, ok
}
