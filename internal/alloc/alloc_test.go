package alloc

import (
	"sync"
	"testing"
	"unsafe"
)

func TestNewRejectsBadBlockSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero block size")
	}
	if _, err := New(3); err == nil {
		t.Fatal("expected error for unaligned block size")
	}
	if _, err := New(ptrSize); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllocIsAlignedAndOwned(t *testing.T) {
	a, err := New(32)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		b, err := a.Alloc()
		if err != nil {
			t.Fatal(err)
		}
		if uintptr(b)%uintptr(ptrSize) != 0 {
			t.Fatalf("block %v not pointer-aligned", b)
		}
		if !a.Owns(b) {
			t.Fatalf("block %v not inside any recorded segment", b)
		}
	}
}

func TestFreeListReuse(t *testing.T) {
	a, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	b1, _ := a.Alloc()
	a.Free(b1)
	b2, _ := a.Alloc()
	if b1 != b2 {
		t.Fatalf("expected free-list reuse, got %v then %v", b1, b2)
	}
}

func TestPrealloc(t *testing.T) {
	a, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Prealloc(64); err != nil {
		t.Fatal(err)
	}
	seen := map[unsafe.Pointer]bool{}
	for i := 0; i < 64; i++ {
		b, err := a.Alloc()
		if err != nil {
			t.Fatal(err)
		}
		if seen[b] {
			t.Fatalf("block %v handed out twice", b)
		}
		seen[b] = true
	}
}

func TestConcurrentAllocFree(t *testing.T) {
	a, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b, err := a.Alloc()
				if err != nil {
					t.Error(err)
					return
				}
				a.Free(b)
			}
		}()
	}
	wg.Wait()
}
