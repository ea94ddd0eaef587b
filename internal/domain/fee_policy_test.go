package domain

import (
	"math"
	"testing"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name   string
		policy FeePolicy
		amount uint64
		want   uint64
	}{
		{
			name:   "two percent of 1000",
			policy: FeePolicy{FeeBps: 200},
			amount: 1000,
			want:   20,
		},
		{
			name:   "zero amount yields zero fee",
			policy: FeePolicy{FeeBps: 200, MinFee: 50},
			amount: 0,
			want:   0,
		},
		{
			name:   "zero rate yields zero fee",
			policy: FeePolicy{FeeBps: 0},
			amount: 1000,
			want:   0,
		},
		{
			name:   "min fee floors the proportional fee",
			policy: FeePolicy{FeeBps: 10, MinFee: 5},
			amount: 100, // proportional fee would be 0
			want:   5,
		},
		{
			name:   "max fee caps the proportional fee",
			policy: FeePolicy{FeeBps: 5000, MaxFee: 100},
			amount: 10000, // proportional fee would be 5000
			want:   100,
		},
		{
			name:   "min fee clamped to amount",
			policy: FeePolicy{FeeBps: 100, MinFee: 500},
			amount: 30,
			want:   30,
		},
		{
			name:   "full rate charges exactly the amount",
			policy: FeePolicy{FeeBps: 10000},
			amount: 12345,
			want:   12345,
		},
		{
			name:   "max uint64 amount does not overflow",
			policy: FeePolicy{FeeBps: 200},
			amount: math.MaxUint64,
			want:   math.MaxUint64 / 50, // 2% via 128-bit intermediate
		},
		{
			name:   "full rate at max uint64",
			policy: FeePolicy{FeeBps: 10000},
			amount: math.MaxUint64,
			want:   math.MaxUint64,
		},
		{
			name:   "rounds down",
			policy: FeePolicy{FeeBps: 200},
			amount: 1049, // 2% = 20.98
			want:   20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.ComputeFee(tt.amount)
			if got != tt.want {
				t.Fatalf("expected fee=%d, got %d", tt.want, got)
			}
			if got > tt.amount {
				t.Fatalf("fee %d exceeds amount %d", got, tt.amount)
			}
		})
	}
}

func TestFeeForOutcome(t *testing.T) {
	policy := FeePolicy{FeeBps: 200, ExemptExpiry: true}

	if got := policy.FeeForOutcome(1000, TransferStatusAccepted); got != 20 {
		t.Fatalf("expected accept fee=20, got %d", got)
	}
	if got := policy.FeeForOutcome(1000, TransferStatusRejected); got != 20 {
		t.Fatalf("expected reject fee=20, got %d", got)
	}
	if got := policy.FeeForOutcome(1000, TransferStatusExpired); got != 0 {
		t.Fatalf("expected exempt expiry fee=0, got %d", got)
	}

	policy.ExemptExpiry = false
	if got := policy.FeeForOutcome(1000, TransferStatusExpired); got != 20 {
		t.Fatalf("expected non-exempt expiry fee=20, got %d", got)
	}
}

func TestFeePolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  FeePolicy
		wantErr bool
	}{
		{name: "valid", policy: FeePolicy{FeeBps: 200, MinFee: 1, MaxFee: 100}},
		{name: "zero policy", policy: FeePolicy{}},
		{name: "rate above 100 percent", policy: FeePolicy{FeeBps: 10001}, wantErr: true},
		{name: "min above max", policy: FeePolicy{MinFee: 10, MaxFee: 5}, wantErr: true},
		{name: "min without max cap", policy: FeePolicy{MinFee: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
