package stallone

import (
	"sync"
	"testing"
)

func TestFramePoolReusesSmallFrames(t *testing.T) {
	pool := NewFramePool(64, 2)
	if pool.Idle() != 0 {
		t.Fatalf("Expected an empty pool, got %d idle buffers", pool.Idle())
	}

	buf := pool.Get(10)
	if len(buf) != 10 || cap(buf) != 64 {
		t.Fatalf("Expected len 10 cap 64, got len %d cap %d", len(buf), cap(buf))
	}
	buf[0] = 0xff
	pool.Put(buf)
	if pool.Idle() != 1 {
		t.Fatalf("Expected 1 idle buffer, got %d", pool.Idle())
	}

	again := pool.Get(64)
	if len(again) != 64 {
		t.Fatalf("Expected len 64, got %d", len(again))
	}
	if &again[0] != &buf[0] {
		t.Error("Expected the pooled buffer to be handed out again")
	}
	if pool.Idle() != 0 {
		t.Errorf("Expected the pool to be drained, got %d", pool.Idle())
	}
}

func TestFramePoolLargeFrames(t *testing.T) {
	pool := NewFramePool(64, 2)

	big := pool.Get(65)
	if len(big) != 65 {
		t.Fatalf("Expected len 65, got %d", len(big))
	}
	pool.Put(big)
	if pool.Idle() != 0 {
		t.Errorf("Oversized frames must not be pooled, got %d idle", pool.Idle())
	}

	// foreign buffers are dropped too
	pool.Put(make([]byte, 32))
	if pool.Idle() != 0 {
		t.Errorf("Expected foreign buffers to be dropped, got %d idle", pool.Idle())
	}
}

func TestFramePoolBounded(t *testing.T) {
	pool := NewFramePool(16, 2)
	a, b, c := pool.Get(1), pool.Get(2), pool.Get(3)
	pool.Put(a)
	pool.Put(b)
	pool.Put(c)
	if pool.Idle() != 2 {
		t.Errorf("Expected the pool to keep 2 buffers, got %d", pool.Idle())
	}
}

func TestFramePoolConcurrent(t *testing.T) {
	pool := NewFramePool(256, 4)

	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := (g*7 + i) % 300
				buf := pool.Get(n)
				if len(buf) != n {
					t.Errorf("Expected len %d, got %d", n, len(buf))
					return
				}
				for j := range buf {
					buf[j] = byte(g)
				}
				for j := range buf {
					if buf[j] != byte(g) {
						t.Errorf("Buffer shared between goroutines")
						return
					}
				}
				pool.Put(buf)
			}
		}(g)
	}
	wg.Wait()

	if pool.Idle() > 4 {
		t.Errorf("Expected at most 4 idle buffers, got %d", pool.Idle())
	}
}
