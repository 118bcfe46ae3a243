package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/stretchr/testify/require"
)

func TestSequencer_SameKeyIsExclusive(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(8, observability.NewNopLogger())
	ctx := context.Background()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := ks.Acquire(ctx, "k-1")
			require.NoError(t, err)

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()

			release()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxInCritical)
	require.Equal(t, 0, ks.ActiveLanes())
	require.Equal(t, 0, ks.InflightApplies())
}

func TestSequencer_SameKeyAppliesInArrivalOrder(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(16, observability.NewNopLogger())
	ctx := context.Background()

	// Retener el lane para que todas las llegadas queden encoladas detrás.
	releaseHeld, err := ks.Acquire(ctx, "k")
	require.NoError(t, err)

	const arrivals = 10

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 1; i <= arrivals; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()

			release, err := ks.Acquire(ctx, "k")
			require.NoError(t, err)
			defer release()

			mu.Lock()
			order = append(order, seq)
			mu.Unlock()
		}(i)

		// Espaciar las llegadas para que cada goroutine quede bloqueada en la
		// admisión antes de que llegue la siguiente.
		time.Sleep(20 * time.Millisecond)
	}

	releaseHeld()
	wg.Wait()

	expected := make([]int, 0, arrivals)
	for i := 1; i <= arrivals; i++ {
		expected = append(expected, i)
	}
	require.Equal(t, expected, order)
	require.Equal(t, 0, ks.ActiveLanes())
}

func TestSequencer_DistinctKeysRunInParallel(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(8, observability.NewNopLogger())
	ctx := context.Background()

	releaseA, err := ks.Acquire(ctx, "a")
	require.NoError(t, err)

	// Con "a" todavía tomada, "b" no debe bloquearse.
	done := make(chan struct{})
	go func() {
		releaseB, err := ks.Acquire(ctx, "b")
		require.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("una clave distinta quedó bloqueada detrás de otra")
	}

	releaseA()
}

func TestSequencer_GlobalConcurrencyCap(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(2, observability.NewNopLogger())
	ctx := context.Background()

	releaseA, err := ks.Acquire(ctx, "a")
	require.NoError(t, err)
	releaseB, err := ks.Acquire(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, 2, ks.InflightApplies())

	// El tercer cupo espera hasta que se libere uno.
	acquired := make(chan struct{})
	go func() {
		releaseC, err := ks.Acquire(ctx, "c")
		require.NoError(t, err)
		defer releaseC()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("el semáforo global no limitó la concurrencia")
	case <-time.After(50 * time.Millisecond):
	}

	releaseA()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("el cupo liberado no fue entregado")
	}

	releaseB()
}

func TestSequencer_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(4, observability.NewNopLogger())

	release, err := ks.Acquire(context.Background(), "k")
	require.NoError(t, err)

	release()
	release()

	require.Equal(t, 0, ks.ActiveLanes())
	require.Equal(t, 0, ks.InflightApplies())
}

func TestSequencer_CloseRejectsNewAdmissions(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(4, observability.NewNopLogger())

	release, err := ks.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ks.Close()

	_, err = ks.Acquire(context.Background(), "k")
	require.ErrorIs(t, err, ErrShuttingDown)

	// El evento ya admitido termina normalmente.
	release()
	require.Equal(t, 0, ks.ActiveLanes())
}

func TestSequencer_AcquireHonorsContext(t *testing.T) {
	t.Parallel()

	ks := NewKeySequencer(4, observability.NewNopLogger())

	release, err := ks.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = ks.Acquire(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	require.Equal(t, 0, ks.ActiveLanes())
}
