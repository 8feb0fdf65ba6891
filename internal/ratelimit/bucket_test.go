package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBucket_AllowsBurstThenBlocks(t *testing.T) {
	b := newBucket(3, 1, 50*time.Millisecond)
	defer b.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := b.acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	if err := b.acquire(ctx); err == nil {
		t.Fatal("expected 4th immediate acquire to time out, bucket was empty")
	}
}

func TestBucket_RefillsAfterPeriod(t *testing.T) {
	b := newBucket(1, 1, 20*time.Millisecond)
	defer b.close()

	ctx := context.Background()
	if err := b.acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := b.acquire(waitCtx); err != nil {
		t.Fatalf("expected refill to unblock waiter: %v", err)
	}
}

func TestBucket_FIFOOrder(t *testing.T) {
	b := newBucket(1, 1, 30*time.Millisecond)
	defer b.close()

	ctx := context.Background()
	if err := b.acquire(ctx); err != nil {
		t.Fatalf("drain initial token: %v", err)
	}

	order := make(chan int, 2)
	go func() {
		if err := b.acquire(context.Background()); err == nil {
			order <- 1
		}
	}()
	time.Sleep(5 * time.Millisecond) // ensure goroutine 1 queues first
	go func() {
		if err := b.acquire(context.Background()); err == nil {
			order <- 2
		}
	}()

	first := <-order
	if first != 1 {
		t.Fatalf("expected FIFO waiter 1 to be granted first, got %d", first)
	}
	<-order
}

func TestBucket_TimeoutDoesNotConsumeToken(t *testing.T) {
	b := newBucket(1, 1, time.Second)
	defer b.close()

	ctx := context.Background()
	if err := b.acquire(ctx); err != nil {
		t.Fatalf("drain initial token: %v", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	if err := b.acquire(timeoutCtx); err == nil {
		t.Fatal("expected acquire to time out against an empty, slow-refilling bucket")
	}
	if b.hasWaiters() {
		t.Fatal("timed-out caller is still queued and would be handed the next refilled token")
	}
}
