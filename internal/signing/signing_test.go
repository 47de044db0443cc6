package signing

import (
	"errors"
	"testing"
	"time"
)

func TestSigner_SignVerify_RoundTrip(t *testing.T) {
	signer := NewSigner("shared-secret")
	now := time.Now()
	body := []byte(`{"operation":"upsert"}`)

	sig := signer.Sign("POST", "/index/demo/batch", body, now)
	err := signer.Verify("POST", "/index/demo/batch", body, Timestamp(now), sig, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSigner_Verify_TamperedBody(t *testing.T) {
	signer := NewSigner("shared-secret")
	now := time.Now()

	sig := signer.Sign("POST", "/index/demo/batch", []byte(`{"title":"Hello"}`), now)
	err := signer.Verify("POST", "/index/demo/batch", []byte(`{"title":"Hacked"}`), Timestamp(now), sig, now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("Verify = %v, want ErrSignatureMismatch", err)
	}
}

func TestSigner_Verify_WrongSecret(t *testing.T) {
	now := time.Now()
	body := []byte("{}")

	sig := NewSigner("secret-a").Sign("POST", "/p", body, now)
	err := NewSigner("secret-b").Verify("POST", "/p", body, Timestamp(now), sig, now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("Verify = %v, want ErrSignatureMismatch", err)
	}
}

func TestSigner_Verify_StaleTimestamp(t *testing.T) {
	signer := NewSigner("shared-secret")
	now := time.Now()
	then := now.Add(-10 * time.Minute)
	body := []byte("{}")

	sig := signer.Sign("POST", "/p", body, then)
	err := signer.Verify("POST", "/p", body, Timestamp(then), sig, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("Verify = %v, want ErrStaleTimestamp", err)
	}
}

func TestSigner_Verify_FutureTimestampWithinSkew(t *testing.T) {
	signer := NewSigner("shared-secret")
	now := time.Now()
	future := now.Add(2 * time.Minute)
	body := []byte("{}")

	sig := signer.Sign("POST", "/p", body, future)
	if err := signer.Verify("POST", "/p", body, Timestamp(future), sig, now); err != nil {
		t.Errorf("Verify within skew: %v", err)
	}
}

func TestSigner_Verify_MalformedTimestamp(t *testing.T) {
	signer := NewSigner("shared-secret")
	err := signer.Verify("POST", "/p", []byte("{}"), "not-a-number", "sig", time.Now())
	if !errors.Is(err, ErrBadTimestamp) {
		t.Errorf("Verify = %v, want ErrBadTimestamp", err)
	}
}

func TestSigner_WithMaxSkew(t *testing.T) {
	signer := NewSigner("shared-secret").WithMaxSkew(time.Second)
	now := time.Now()
	then := now.Add(-5 * time.Second)
	body := []byte("{}")

	sig := signer.Sign("POST", "/p", body, then)
	err := signer.Verify("POST", "/p", body, Timestamp(then), sig, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("Verify = %v, want ErrStaleTimestamp with 1s skew", err)
	}
}
