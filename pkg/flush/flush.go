package flush

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hpclab/redshield/pkg/events"
	"github.com/hpclab/redshield/pkg/log"
	"github.com/hpclab/redshield/pkg/metrics"
)

// Flusher pushes encoded checkpoints from node-local cache to a slower
// tier in the background. Each transfer runs in its own goroutine, one
// per dataset id at a time; the encode path never blocks on it. Start/Test/Wait/Stop is the whole
// contract.
type Flusher struct {
	Broker *events.Broker // optional

	mu       sync.Mutex
	active   map[int]*transfer
	stopCh   chan struct{}
	stopOnce sync.Once
}

type transfer struct {
	id     int
	src    string
	dst    string
	done   chan struct{}
	err    error
	cancel chan struct{}
}

// NewFlusher returns a flusher ready to accept transfers.
func NewFlusher() *Flusher {
	return &Flusher{
		active: make(map[int]*transfer),
		stopCh: make(chan struct{}),
	}
}

// Start begins an asynchronous copy of the dataset directory src to
// dst. It returns immediately; at most one flush per dataset id may be
// in flight.
func (f *Flusher) Start(id int, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.stopCh:
		return fmt.Errorf("flusher is stopped")
	default:
	}

	if _, ok := f.active[id]; ok {
		return fmt.Errorf("flush already in progress for dataset %d", id)
	}

	t := &transfer{
		id:     id,
		src:    src,
		dst:    dst,
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}
	f.active[id] = t
	go f.run(t)
	return nil
}

// Test reports whether the flush for id has completed. A dataset with
// no in-flight flush tests as complete.
func (f *Flusher) Test(id int) bool {
	f.mu.Lock()
	t, ok := f.active[id]
	f.mu.Unlock()
	if !ok {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the flush for id finishes and returns its result.
func (f *Flusher) Wait(id int) error {
	f.mu.Lock()
	t, ok := f.active[id]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	<-t.done

	f.mu.Lock()
	delete(f.active, id)
	f.mu.Unlock()
	return t.err
}

// Stop cancels every in-flight transfer and rejects new ones. Called
// from teardown, never from the encode path.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })

	f.mu.Lock()
	transfers := make([]*transfer, 0, len(f.active))
	for _, t := range f.active {
		transfers = append(transfers, t)
	}
	f.mu.Unlock()

	for _, t := range transfers {
		close(t.cancel)
		<-t.done
	}
}

func (f *Flusher) run(t *transfer) {
	defer close(t.done)
	logger := log.WithDataset("flush", t.id)

	t.err = copyTree(t.src, t.dst, t.cancel)
	if t.err != nil {
		logger.Error().Err(t.err).Str("src", t.src).Str("dst", t.dst).Msg("flush failed")
		metrics.FlushesTotal.WithLabelValues("failure").Inc()
		f.publish(events.EventFlushFailed, t)
		return
	}

	logger.Info().Str("src", t.src).Str("dst", t.dst).Msg("flush complete")
	metrics.FlushesTotal.WithLabelValues("success").Inc()
	f.publish(events.EventFlushComplete, t)
}

func (f *Flusher) publish(typ events.EventType, t *transfer) {
	if f.Broker == nil {
		return
	}
	f.Broker.Publish(&events.Event{Type: typ, Dataset: t.id, Message: t.dst})
}

// copyTree copies the directory src under dst, checking for
// cancellation between files.
func copyTree(src, dst string, cancel <-chan struct{}) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-cancel:
			return fmt.Errorf("flush canceled")
		default:
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
