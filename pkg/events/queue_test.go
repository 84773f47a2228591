package events

import (
	"sync"
	"testing"
	"time"
)

func TestQueuePreservesFIFOOrder(t *testing.T) {
	q := NewQueue(0)
	for i := 1; i <= 100; i++ {
		if !q.Push(InputEvent{Sequence: uint64(i)}) {
			t.Fatalf("push %d rejected", i)
		}
	}
	q.Close()

	var last uint64
	for {
		ev, ok := q.Pop()
		if !ok {
			break
		}
		if ev.Sequence != last+1 {
			t.Fatalf("expected sequence %d, got %d", last+1, ev.Sequence)
		}
		last = ev.Sequence
	}
	if last != 100 {
		t.Fatalf("expected to drain 100 events, got %d", last)
	}
}

func TestQueueDrainsBeforeReportingClosure(t *testing.T) {
	q := NewQueue(0)
	q.Push(InputEvent{Sequence: 1})
	q.Push(InputEvent{Sequence: 2})
	q.Close()

	if _, ok := q.Pop(); !ok {
		t.Fatalf("expected queued event after close")
	}
	if _, ok := q.Pop(); !ok {
		t.Fatalf("expected second queued event after close")
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected closure after drain")
	}
}

func TestQueueRejectsPushAfterClose(t *testing.T) {
	q := NewQueue(0)
	q.Close()
	q.Close() // idempotent
	if q.Push(InputEvent{Sequence: 1}) {
		t.Fatalf("push after close must be rejected")
	}
}

func TestQueueSoftLimitDropsOldest(t *testing.T) {
	q := NewQueue(3)
	for i := 1; i <= 5; i++ {
		q.Push(InputEvent{Sequence: uint64(i)})
	}
	if got := q.DroppedOldest(); got != 2 {
		t.Fatalf("expected 2 dropped, got %d", got)
	}
	q.Close()

	want := []uint64{3, 4, 5}
	for _, expected := range want {
		ev, ok := q.Pop()
		if !ok {
			t.Fatalf("queue drained early")
		}
		if ev.Sequence != expected {
			t.Fatalf("expected sequence %d, got %d", expected, ev.Sequence)
		}
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(0)
	got := make(chan InputEvent, 1)
	go func() {
		ev, ok := q.Pop()
		if ok {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatalf("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(InputEvent{Sequence: 7})

	select {
	case ev := <-got:
		if ev.Sequence != 7 {
			t.Fatalf("expected sequence 7, got %d", ev.Sequence)
		}
	case <-time.After(time.Second):
		t.Fatalf("pop did not observe push")
	}
}

func TestQueueConcurrentProducersLoseNothing(t *testing.T) {
	q := NewQueue(0)
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if !q.Push(InputEvent{Kind: KeyDown}) {
					t.Errorf("push rejected before close")
					return
				}
			}
		}()
	}

	done := make(chan int, 1)
	go func() {
		count := 0
		for {
			if _, ok := q.Pop(); !ok {
				done <- count
				return
			}
			count++
		}
	}()

	wg.Wait()
	q.Close()

	select {
	case count := <-done:
		if count != producers*perProducer {
			t.Fatalf("expected %d events, consumer saw %d", producers*perProducer, count)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("consumer did not drain")
	}
}
