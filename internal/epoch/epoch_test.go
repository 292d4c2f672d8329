package epoch

import (
	"sync"
	"testing"
)

func TestSynchronizeWaitsForActiveReaders(t *testing.T) {
	r := NewRegistry()
	g := r.Enter()

	done := make(chan struct{})
	ran := false
	r.Defer(func() { ran = true })

	go func() {
		r.Synchronize()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Synchronize returned while a reader was still active")
	default:
	}

	g.Exit()
	<-done
	if !ran {
		t.Fatal("deferred reclamation did not run after synchronize")
	}
}

func TestDeferReclaimsImmediatelyWhenIdle(t *testing.T) {
	r := NewRegistry()
	ran := false
	r.Defer(func() { ran = true })
	if !ran {
		t.Fatal("Defer did not reclaim immediately with no active readers")
	}
}

func TestExitReclaimsOnLastReader(t *testing.T) {
	r := NewRegistry()
	g1 := r.Enter()
	g2 := r.Enter()

	ran := false
	r.Defer(func() { ran = true })
	if ran {
		t.Fatal("reclamation ran while readers were still active")
	}

	g1.Exit()
	if ran {
		t.Fatal("reclamation ran before the last reader exited")
	}

	g2.Exit()
	if !ran {
		t.Fatal("reclamation did not run after the last reader exited")
	}
}

func TestConcurrentEnterExit(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				g := r.Enter()
				g.Exit()
			}
		}()
	}
	wg.Wait()
	r.Synchronize()
}
