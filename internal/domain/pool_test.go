package domain

import (
	"errors"
	"math"
	"testing"
)

func TestPoolAccountingHappyPath(t *testing.T) {
	pool := &Pool{FeePolicy: FeePolicy{FeeBps: 200}}

	if err := pool.AddDeposit(1000); err != nil {
		t.Fatalf("AddDeposit returned error: %v", err)
	}
	if err := pool.AddWithdrawal(1000); err != nil {
		t.Fatalf("AddWithdrawal returned error: %v", err)
	}
	if err := pool.AddCollectedFees(20); err != nil {
		t.Fatalf("AddCollectedFees returned error: %v", err)
	}
	if err := pool.IncrementTransfersResolved(); err != nil {
		t.Fatalf("IncrementTransfersResolved returned error: %v", err)
	}

	if pool.TotalDeposited != 1000 || pool.TotalWithdrawn != 1000 || pool.TotalFeesCollected != 20 || pool.TransfersResolved != 1 {
		t.Fatalf("unexpected counters: deposited=%d withdrawn=%d fees=%d resolved=%d",
			pool.TotalDeposited, pool.TotalWithdrawn, pool.TotalFeesCollected, pool.TransfersResolved)
	}
	if pool.EscrowedBalance() != 0 {
		t.Fatalf("expected escrowed balance 0, got %d", pool.EscrowedBalance())
	}
	if pool.CustodyBalance() != 20 {
		t.Fatalf("expected custody balance 20 (retained fees), got %d", pool.CustodyBalance())
	}
}

func TestPoolWithdrawalCannotExceedDeposits(t *testing.T) {
	pool := &Pool{TotalDeposited: 500}

	if err := pool.AddWithdrawal(501); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
	if pool.TotalWithdrawn != 0 {
		t.Fatalf("failed withdrawal must not mutate counter, got %d", pool.TotalWithdrawn)
	}

	if err := pool.AddWithdrawal(500); err != nil {
		t.Fatalf("exact withdrawal should succeed: %v", err)
	}
}

func TestPoolFeesRespectInvariant(t *testing.T) {
	pool := &Pool{TotalDeposited: 1000, TotalWithdrawn: 990}

	if err := pool.AddCollectedFees(991); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
	if pool.TotalFeesCollected != 0 {
		t.Fatalf("failed fee collection must not mutate counter, got %d", pool.TotalFeesCollected)
	}

	if err := pool.AddCollectedFees(990); err != nil {
		t.Fatalf("fee within invariant should succeed: %v", err)
	}
	if pool.TotalFeesCollected > pool.TotalWithdrawn {
		t.Fatalf("invariant violated: fees=%d withdrawn=%d", pool.TotalFeesCollected, pool.TotalWithdrawn)
	}
}

func TestPoolCounterOverflowIsChecked(t *testing.T) {
	pool := &Pool{TotalDeposited: math.MaxUint64}

	if err := pool.AddDeposit(1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected deposit overflow error, got %v", err)
	}

	pool = &Pool{
		TotalDeposited:    math.MaxUint64,
		TotalWithdrawn:    math.MaxUint64,
		TransfersResolved: math.MaxUint64,
	}
	if err := pool.AddWithdrawal(1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected withdrawal overflow error, got %v", err)
	}
	if err := pool.IncrementTransfersResolved(); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected resolved counter overflow error, got %v", err)
	}
}

func TestPoolCalculateTransferFeeDelegatesToPolicy(t *testing.T) {
	pool := &Pool{FeePolicy: FeePolicy{FeeBps: 200, ExemptExpiry: true}}

	if got := pool.CalculateTransferFee(1000, TransferStatusAccepted); got != 20 {
		t.Fatalf("expected fee=20, got %d", got)
	}
	if got := pool.CalculateTransferFee(1000, TransferStatusExpired); got != 0 {
		t.Fatalf("expected exempt expiry fee=0, got %d", got)
	}
}
