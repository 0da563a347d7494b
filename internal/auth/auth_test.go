package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var testAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newTestValidator(now time.Time) *Validator {
	v := NewValidator("test-secret", time.Hour)
	v.now = func() time.Time { return now }
	return v
}

func TestValidateSignedHeader(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestValidator(now)

	addr, err := v.Validate(v.Sign(testAddr, now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if addr != testAddr {
		t.Errorf("Expected address %s, got %s", testAddr.Hex(), addr.Hex())
	}
}

func TestValidateRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestValidator(now)
	good := v.Sign(testAddr, now)

	tests := []struct {
		name   string
		header string
		errMsg string
	}{
		{
			name:   "missing hash",
			header: "address=" + testAddr.Hex() + "&auth_date=1700000000",
			errMsg: "hash not found",
		},
		{
			name:   "tampered address",
			header: strings.Replace(good, testAddr.Hex(), common.HexToAddress("0xb0").Hex(), 1),
			errMsg: "invalid hash",
		},
		{
			name:   "signed with another secret",
			header: NewValidator("other", time.Hour).Sign(testAddr, now),
			errMsg: "invalid hash",
		},
		{
			name:   "expired",
			header: v.Sign(testAddr, now.Add(-2*time.Hour)),
			errMsg: "too old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.header)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateWithoutSecret(t *testing.T) {
	v := NewValidator("", time.Hour)
	if _, err := v.Validate("address=0x1&auth_date=1&hash=00"); err == nil {
		t.Error("Expected error when secret is not set")
	}
}

func TestMiddleware(t *testing.T) {
	now := time.Now()
	v := NewValidator("test-secret", time.Hour)

	var gotCaller common.Address
	var gotOK bool
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, gotOK = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/debates/1", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
		if gotOK {
			t.Error("Expected no caller for anonymous request")
		}
	})

	t.Run("signed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/debates/1/claim", nil)
		req.Header.Set(HeaderName, v.Sign(testAddr, now))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
		if !gotOK || gotCaller != testAddr {
			t.Errorf("Expected caller %s, got %s (ok=%v)", testAddr.Hex(), gotCaller.Hex(), gotOK)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/debates/1/claim", nil)
		req.Header.Set(HeaderName, "address=0x1&auth_date=1&hash=deadbeef")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})
}

func TestGetCallerFromContextMissing(t *testing.T) {
	if _, ok := GetCallerFromContext(context.Background()); ok {
		t.Error("Expected ok=false for missing caller in context")
	}
	ctx := ContextWithCaller(context.Background(), testAddr)
	if caller, ok := GetCallerFromContext(ctx); !ok || caller != testAddr {
		t.Errorf("Expected caller %s, got %s", testAddr.Hex(), caller.Hex())
	}
}
