package mailbox

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"feedflow/models"
)

func bar(close int) models.BarMessage {
	return models.BarMessage{Symbol: "AAPL", Close: decimal.NewFromInt(int64(close))}
}

func TestPutPopOrder(t *testing.T) {
	q := New()
	for i := 1; i <= 5; i++ {
		if !q.Put(bar(i)) {
			t.Fatalf("put %d refused", i)
		}
	}
	for i := 1; i <= 5; i++ {
		got, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("pop %d: timed out", i)
		}
		if !got.Close.Equal(decimal.NewFromInt(int64(i))) {
			t.Errorf("pop %d: close = %s", i, got.Close)
		}
	}
	if q.Sent() != 5 {
		t.Errorf("sent = %d", q.Sent())
	}
}

func TestPopTimesOutOnEmptyQueue(t *testing.T) {
	q := New()
	start := time.Now()
	if _, ok := q.Pop(20 * time.Millisecond); ok {
		t.Fatalf("expected timeout")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Errorf("pop returned before the timeout elapsed")
	}
}

func TestPopObservesConcurrentPut(t *testing.T) {
	q := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put(bar(7))
	}()

	got, ok := q.Pop(time.Second)
	if !ok {
		t.Fatalf("pop timed out waiting for concurrent put")
	}
	if !got.Close.Equal(decimal.NewFromInt(7)) {
		t.Errorf("close = %s", got.Close)
	}
}

func TestCloseWakesWaiterAndRefusesPut(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(time.Minute)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("pop on closed queue returned a bar")
		}
	case <-time.After(time.Second):
		t.Fatalf("close did not wake the waiting pop")
	}

	if q.Put(bar(1)) {
		t.Fatalf("put accepted after close")
	}
	q.Close() // idempotent
}

func TestCloseDiscardsPendingItems(t *testing.T) {
	q := New()
	q.Put(bar(1))
	q.Put(bar(2))
	q.Close()

	if _, ok := q.Pop(10 * time.Millisecond); ok {
		t.Fatalf("pop returned a bar from a closed queue")
	}
	if q.Len() != 0 {
		t.Errorf("len = %d after close", q.Len())
	}
}
