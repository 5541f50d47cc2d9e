package signature

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func TestSignDeterministic(t *testing.T) {
	v := New("test-signing-secret", 2*time.Second)
	body := []byte(`{"type":"event_callback"}`)

	sig := v.Sign(body, "1700000000")

	if len(sig) != 64 { // SHA256 = 32 bytes = 64 hex chars
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if sig != v.Sign(body, "1700000000") {
		t.Error("signature should be deterministic")
	}
	if sig == v.Sign([]byte(`{"type":"other"}`), "1700000000") {
		t.Error("different body should produce different signature")
	}
	if sig == v.Sign(body, "1700000001") {
		t.Error("different timestamp should produce different signature")
	}
}

func TestVerify(t *testing.T) {
	secret := "test-signing-secret"
	now := time.Unix(1700000000, 0)
	timestamp := "1700000000"
	body := []byte(`{"type":"event_callback","team_id":"T1"}`)

	v := New(secret, 2*time.Second)
	validSig := Version + "=" + v.Sign(body, timestamp)

	tests := []struct {
		name      string
		body      []byte
		timestamp string
		signature string
		now       time.Time
		wantErr   error
	}{
		{
			name:      "valid request",
			body:      body,
			timestamp: timestamp,
			signature: validSig,
			now:       now,
		},
		{
			name:      "timestamp at skew boundary",
			body:      body,
			timestamp: timestamp,
			signature: validSig,
			now:       now.Add(2 * time.Second),
		},
		{
			name:      "tampered body",
			body:      []byte(`{"type":"event_callback","team_id":"T2"}`),
			timestamp: timestamp,
			signature: validSig,
			now:       now,
			wantErr:   ErrSignatureMismatch,
		},
		{
			name:      "tampered timestamp",
			body:      body,
			timestamp: "1700000001",
			signature: validSig,
			now:       now,
			wantErr:   ErrSignatureMismatch,
		},
		{
			name:      "stale timestamp with valid signature",
			body:      body,
			timestamp: timestamp,
			signature: validSig,
			now:       now.Add(3 * time.Second),
			wantErr:   ErrTimestampSkew,
		},
		{
			name:      "future timestamp",
			body:      body,
			timestamp: timestamp,
			signature: validSig,
			now:       now.Add(-3 * time.Second),
			wantErr:   ErrTimestampSkew,
		},
		{
			name:      "non-integer timestamp",
			body:      body,
			timestamp: "not-a-number",
			signature: validSig,
			now:       now,
			wantErr:   ErrInvalidTimestamp,
		},
		{
			name:      "empty timestamp",
			body:      body,
			timestamp: "",
			signature: validSig,
			now:       now,
			wantErr:   ErrInvalidTimestamp,
		},
		{
			name:      "missing signature",
			body:      body,
			timestamp: timestamp,
			signature: "",
			now:       now,
			wantErr:   ErrMissingSignature,
		},
		{
			name:      "signature without version prefix",
			body:      body,
			timestamp: timestamp,
			signature: v.Sign(body, timestamp),
			now:       now,
			wantErr:   ErrSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.body, tt.timestamp, tt.signature, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifySingleByteMutation(t *testing.T) {
	v := New("test-signing-secret", 2*time.Second)
	now := time.Unix(1700000000, 0)
	timestamp := "1700000000"
	body := []byte(`{"type":"event_callback"}`)
	sig := Version + "=" + v.Sign(body, timestamp)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if err := v.Verify(mutated, timestamp, sig, now); err == nil {
			t.Errorf("mutation at byte %d should fail verification", i)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	timestamp := "1700000000"
	body := []byte(`{"type":"event_callback"}`)

	signer := New("secret-a", 2*time.Second)
	verifier := New("secret-b", 2*time.Second)
	sig := Version + "=" + signer.Sign(body, timestamp)

	if err := verifier.Verify(body, timestamp, sig, now); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("Verify() error = %v, want ErrSignatureMismatch", err)
	}
}

func TestVerifyConcurrent(t *testing.T) {
	v := New("test-signing-secret", 5*time.Second)
	now := time.Unix(1700000000, 0)

	done := make(chan error, 32)
	for i := 0; i < 32; i++ {
		go func(n int) {
			body := []byte(fmt.Sprintf(`{"seq":%d}`, n))
			ts := strconv.FormatInt(now.Unix(), 10)
			sig := Version + "=" + v.Sign(body, ts)
			done <- v.Verify(body, ts, sig, now)
		}(i)
	}
	for i := 0; i < 32; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent Verify() error = %v", err)
		}
	}
}
