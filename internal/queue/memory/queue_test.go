package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

func item(uri string) batch.WorkItem {
	return batch.WorkItem{BatchID: "batch-1", Item: batch.RowMap{batch.CardPageURIColumn: uri}}
}

func TestPublishAndReceive(t *testing.T) {
	t.Parallel()

	q := NewQueue(8, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, item("a")))
	require.NoError(t, q.Publish(ctx, item("b")))

	got := make(chan []batch.WorkItem, 1)
	go func() {
		_ = q.Receive(ctx, func(_ context.Context, items []batch.WorkItem) error {
			got <- items
			cancel()
			return nil
		})
	}()

	select {
	case items := <-got:
		require.Len(t, items, 2)
		require.Equal(t, "a", items[0].Item.PageURI())
		require.Equal(t, "b", items[1].Item.PageURI())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestReceiveRespectsMaxDelivery(t *testing.T) {
	t.Parallel()

	q := NewQueue(8, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, uri := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(ctx, item(uri)))
	}

	sizes := make(chan int, 2)
	go func() {
		_ = q.Receive(ctx, func(_ context.Context, items []batch.WorkItem) error {
			sizes <- len(items)
			if len(sizes) == cap(sizes) {
				cancel()
			}
			return nil
		})
	}()

	var total int
	for i := 0; i < 2; i++ {
		select {
		case n := <-sizes:
			require.LessOrEqual(t, n, 2)
			total += n
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for deliveries")
		}
	}
	require.Equal(t, 3, total)
}

func TestFailedDeliveryIsRedelivered(t *testing.T) {
	t.Parallel()

	q := NewQueue(8, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, item("a")))

	attempts := make(chan struct{}, 2)
	go func() {
		first := true
		_ = q.Receive(ctx, func(_ context.Context, items []batch.WorkItem) error {
			attempts <- struct{}{}
			if first {
				first = false
				return errors.New("transient")
			}
			cancel()
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(time.Second):
			t.Fatal("expected redelivery after handler error")
		}
	}
}

func TestPublishCanceledContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Publish(ctx, item("a"))
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 1)
	q.Close()
	q.Close()
}

func TestLen(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 1)
	require.Zero(t, q.Len())
	require.NoError(t, q.Publish(context.Background(), item("a")))
	require.Equal(t, 1, q.Len())
}
