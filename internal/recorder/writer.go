package recorder

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
)

var (
	ErrQueueFull      = errors.New("recorder queue full")
	ErrClosed         = errors.New("recorder closed")
	ErrNotStarted     = errors.New("recorder not started")
	ErrAlreadyStarted = errors.New("recorder already started")
)

// Writer appends JSON-Lines records to a timestamped file from a buffered
// queue, one line per record.
type Writer struct {
	cfg Config
	ch  chan any
	wg  sync.WaitGroup
	err atomic.Value

	started uint32
	closed  uint32
}

// NewWriter creates a writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan any, cfg.QueueSize),
	}, nil
}

// Path returns the output file path for this writer instance.
func (w *Writer) Path() string {
	name := w.cfg.FilePrefix + "_" + time.Now().UTC().Format("20060102_150405") + ".jsonl"
	return filepath.Join(w.cfg.Dir, name)
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	file, err := os.OpenFile(w.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx, file)
	}()
	return nil
}

// Close stops the writer and flushes any buffered data.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

type errBox struct {
	err error
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(errBox).err
	}
	return nil
}

// TryAppend enqueues a record without blocking.
func (w *Writer) TryAppend(record any) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	select {
	case w.ch <- record:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Writer) run(ctx context.Context, file *os.File) {
	buf := bufio.NewWriterSize(file, w.cfg.BufferSize)

	var flushC <-chan time.Time
	if w.cfg.FlushInterval > 0 {
		flushTicker := time.NewTicker(w.cfg.FlushInterval)
		defer flushTicker.Stop()
		flushC = flushTicker.C
	}

	defer func() {
		if err := buf.Flush(); err != nil && w.Err() == nil {
			w.setErr(err)
		}
		if err := file.Close(); err != nil && w.Err() == nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drainNonBlocking(buf)
			return
		case record, ok := <-w.ch:
			if !ok {
				return
			}
			if err := writeLine(buf, record); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if err := buf.Flush(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) drainNonBlocking(buf *bufio.Writer) {
	for {
		select {
		case record, ok := <-w.ch:
			if !ok {
				return
			}
			if err := writeLine(buf, record); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func writeLine(buf *bufio.Writer, record any) error {
	line, err := sonic.ConfigFastest.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := buf.Write(line); err != nil {
		return err
	}
	return buf.WriteByte('\n')
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	w.err.CompareAndSwap(nil, errBox{err: err})
}
