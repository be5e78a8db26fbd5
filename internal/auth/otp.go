package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sankalp/sankalp/internal/cache"
)

const (
	// OTPLength is the number of decimal digits in a code.
	OTPLength = 6
	// OTPTTL is how long an issued code stays valid.
	OTPTTL = 10 * time.Minute
	// OTPMaxAttempts is how many wrong guesses burn a code.
	OTPMaxAttempts = 5
)

var (
	ErrOTPExpired = errors.New("auth: verification code expired or not issued")
	ErrOTPInvalid = errors.New("auth: verification code is incorrect")
)

// OTPStore issues and checks single-use email verification codes. Codes live
// in a cache.Store so they survive across replicas when Redis backs it.
type OTPStore struct {
	store cache.Store
	ttl   time.Duration
}

// NewOTPStore creates an OTPStore with the default 10-minute lifetime.
func NewOTPStore(store cache.Store) *OTPStore {
	return &OTPStore{store: store, ttl: OTPTTL}
}

func otpKey(email string) string {
	return "otp:" + strings.ToLower(strings.TrimSpace(email))
}

func otpAttemptsKey(email string) string {
	return "otp_attempts:" + strings.ToLower(strings.TrimSpace(email))
}

// Issue generates a fresh code for email, replacing any earlier one.
func (o *OTPStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode(OTPLength)
	if err != nil {
		return "", err
	}

	if err := o.store.Set(ctx, otpKey(email), code, o.ttl); err != nil {
		return "", fmt.Errorf("auth: storing verification code: %w", err)
	}
	if err := o.store.Delete(ctx, otpAttemptsKey(email)); err != nil {
		return "", fmt.Errorf("auth: resetting verification attempts: %w", err)
	}

	return code, nil
}

// Verify consumes the code for email. A correct code is deleted so it cannot
// be replayed; OTPMaxAttempts wrong guesses delete it as well.
func (o *OTPStore) Verify(ctx context.Context, email, code string) error {
	want, err := o.store.Get(ctx, otpKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return ErrOTPExpired
	}
	if err != nil {
		return fmt.Errorf("auth: reading verification code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.TrimSpace(code))) != 1 {
		n, _, err := o.store.Incr(ctx, otpAttemptsKey(email), o.ttl)
		if err != nil {
			return fmt.Errorf("auth: counting verification attempts: %w", err)
		}
		if n >= OTPMaxAttempts {
			_ = o.store.Delete(ctx, otpKey(email))
			_ = o.store.Delete(ctx, otpAttemptsKey(email))
		}
		return ErrOTPInvalid
	}

	if err := o.store.Delete(ctx, otpKey(email)); err != nil {
		return fmt.Errorf("auth: consuming verification code: %w", err)
	}
	_ = o.store.Delete(ctx, otpAttemptsKey(email))
	return nil
}

func generateCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("auth: generating verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
