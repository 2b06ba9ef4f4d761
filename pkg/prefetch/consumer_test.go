package prefetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

// chanDispatcher forwards every dispatched batch list to a channel.
type chanDispatcher struct {
	got chan []IndexBatch
}

func newChanDispatcher() *chanDispatcher {
	return &chanDispatcher{got: make(chan []IndexBatch, 16)}
}

func (d *chanDispatcher) BatchDownloadAsync(batches []IndexBatch) {
	d.got <- batches
}

func TestQueueConsumer_DispatchesToDownloader(t *testing.T) {
	d := newChanDispatcher()
	c := NewQueueConsumer(ConsumerConfig{
		Notifier:     NewNotifier(NotifierConfig{}),
		Downloader:   d,
		PollInterval: 10 * time.Millisecond,
	})
	c.Start(context.Background())
	defer c.Stop(time.Second)

	if !c.Enqueue(IndexBatch{5, 6}) {
		t.Fatal("enqueue rejected")
	}

	select {
	case batches := <-d.got:
		want := []IndexBatch{{5, 6}}
		if !reflect.DeepEqual(batches, want) {
			t.Errorf("dispatched %v, want %v", batches, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch was never dispatched")
	}

	// Exactly one dispatch per enqueue.
	select {
	case extra := <-d.got:
		t.Errorf("unexpected extra dispatch: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueueConsumer_FullQueueDropsBatch(t *testing.T) {
	// Not started, so nothing drains the queue.
	c := NewQueueConsumer(ConsumerConfig{
		QueueSize: 1,
		Notifier:  NewNotifier(NotifierConfig{}),
	})

	if !c.Enqueue(IndexBatch{1}) {
		t.Fatal("first enqueue should succeed")
	}
	if c.Enqueue(IndexBatch{2}) {
		t.Error("second enqueue should be dropped")
	}
	if c.Pending() != 1 {
		t.Errorf("expected 1 pending batch, got %d", c.Pending())
	}
}

func TestQueueConsumer_StopDrainsCleanly(t *testing.T) {
	d := newChanDispatcher()
	c := NewQueueConsumer(ConsumerConfig{
		Notifier:     NewNotifier(NotifierConfig{}),
		Downloader:   d,
		PollInterval: 10 * time.Millisecond,
	})
	c.Start(context.Background())
	c.Stop(time.Second)

	// Stop again is a no-op.
	c.Stop(time.Second)

	if c.Enqueue(IndexBatch{1}) {
		t.Error("enqueue after stop should be rejected")
	}
}

func TestQueueConsumer_StopBeforeStartRejectsEnqueue(t *testing.T) {
	c := NewQueueConsumer(ConsumerConfig{
		Notifier: NewNotifier(NotifierConfig{}),
	})
	c.Stop(time.Second)

	if c.Enqueue(IndexBatch{1}) {
		t.Error("enqueue after stop should be rejected even when never started")
	}
	// Stop again is still a no-op.
	c.Stop(time.Second)
}

func TestQueueConsumer_NotifyPathUsedWithoutDownloader(t *testing.T) {
	hit := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case hit <- string(body):
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewQueueConsumer(ConsumerConfig{
		Notifier:     NewNotifier(NotifierConfig{Endpoint: srv.URL}),
		PollInterval: 10 * time.Millisecond,
	})
	c.Start(context.Background())
	defer c.Stop(time.Second)

	c.Enqueue(IndexBatch{9})

	select {
	case body := <-hit:
		if body != "[[9]]" {
			t.Errorf("unexpected body: %s", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached the endpoint")
	}
}
