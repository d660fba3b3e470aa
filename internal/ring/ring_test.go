package ring

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"feedflow/models"
)

func bar(close int) models.BarMessage {
	return models.BarMessage{
		Symbol: "AAPL",
		Close:  decimal.NewFromInt(int64(close)),
	}
}

func TestPushPopFIFO(t *testing.T) {
	b := New(10)
	for i := 1; i <= 3; i++ {
		if evicted := b.Push(bar(i)); evicted {
			t.Fatalf("unexpected eviction at %d", i)
		}
	}
	for i := 1; i <= 3; i++ {
		got, ok := b.Pop()
		if !ok {
			t.Fatalf("pop %d: empty", i)
		}
		if !got.Close.Equal(decimal.NewFromInt(int64(i))) {
			t.Errorf("pop %d: close = %s", i, got.Close)
		}
	}
	if _, ok := b.Pop(); ok {
		t.Fatalf("expected empty buffer")
	}
}

func TestDropOldestAtCapacity(t *testing.T) {
	b := New(3)
	for _, c := range []int{10, 11, 12} {
		b.Push(bar(c))
	}
	if !b.Push(bar(13)) {
		t.Fatalf("expected eviction when pushing into a full buffer")
	}

	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	for _, want := range []int{11, 12, 13} {
		got, ok := b.Pop()
		if !ok {
			t.Fatalf("pop: empty")
		}
		if !got.Close.Equal(decimal.NewFromInt(int64(want))) {
			t.Errorf("close = %s, want %d", got.Close, want)
		}
	}
}

func TestRetainsMostRecentCapacityEntries(t *testing.T) {
	const capacity = 5
	b := New(capacity)
	for i := 0; i < 50; i++ {
		b.Push(bar(i))
	}

	if b.Len() != capacity {
		t.Fatalf("len = %d, want %d", b.Len(), capacity)
	}
	for want := 45; want < 50; want++ {
		got, _ := b.Pop()
		if !got.Close.Equal(decimal.NewFromInt(int64(want))) {
			t.Errorf("close = %s, want %d", got.Close, want)
		}
	}

	stats := b.Stats()
	if stats.Pushed != 50 || stats.Evicted != 45 || stats.Popped != capacity {
		t.Errorf("stats = %+v", stats)
	}
}

func TestZeroCapacityFallsBackToDefault(t *testing.T) {
	b := New(0)
	if b.Cap() != DefaultCapacity {
		t.Fatalf("cap = %d, want %d", b.Cap(), DefaultCapacity)
	}
}

func BenchmarkPush(b *testing.B) {
	buf := New(1000)
	msg := bar(1)
	msg.Symbol = strconv.Itoa(b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Push(msg)
	}
}
