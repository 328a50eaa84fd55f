package interject

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/zap"
)

// maxLineBytes bounds a single operator line. bufio's default 64 KiB
// cap is easy to exceed with a pasted block of text.
const maxLineBytes = 1 << 20

// Reader pumps a line-buffered operator input stream into a queue from
// its own goroutine. The goroutine blocks on the stream, never on the
// consumer, and exits silently at end of input; the queue simply stops
// receiving new entries. Its lifetime does not gate process shutdown,
// so there is no Stop: abandoning the stream source ends it.
type Reader struct {
	queue  *Queue
	logger *zap.Logger
	done   chan struct{}
}

// NewReader creates a reader feeding the given queue. A nil logger is
// replaced with a no-op logger.
func NewReader(queue *Queue, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		queue:  queue,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the pump goroutine over input. Lines are trimmed and
// blank lines dropped before queueing.
func (r *Reader) Start(input io.Reader) {
	go func() {
		defer close(r.done)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			r.queue.Push(line)
			r.logger.Debug("operator interjection queued", zap.Int("pending", r.queue.Len()))
		}
		if err := scanner.Err(); err != nil {
			// No further interjections will arrive for this run.
			r.logger.Warn("operator input terminated", zap.Error(err))
		}
	}()
}

// Done is closed once the input stream is exhausted. Used by tests;
// production callers do not wait on it.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}
