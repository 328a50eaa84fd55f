package interject

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueue_DrainReturnsPushOrder(t *testing.T) {
	q := NewQueue()
	q.Push("first")
	q.Push("second")
	q.Push("third")

	assert.Equal(t, []string{"first", "second", "third"}, q.DrainAll())
}

func TestQueue_DrainEmptiesTheQueue(t *testing.T) {
	q := NewQueue()
	q.Push("only")

	require.Len(t, q.DrainAll(), 1)
	assert.Nil(t, q.DrainAll())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EmptyDrainIsImmediate(t *testing.T) {
	q := NewQueue()

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Nil(t, q.DrainAll())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DrainAll blocked on an empty queue")
	}
}

func TestQueue_PushAfterDrainLandsInNextDrain(t *testing.T) {
	q := NewQueue()
	q.Push("before")

	first := q.DrainAll()
	q.Push("after")

	assert.Equal(t, []string{"before"}, first)
	assert.Equal(t, []string{"after"}, q.DrainAll())
}

func TestReader_PumpsTrimmedLines(t *testing.T) {
	q := NewQueue()
	r := NewReader(q, nil)

	r.Start(strings.NewReader("  hello  \n\n   \nworld\n"))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not finish")
	}

	assert.Equal(t, []string{"hello", "world"}, q.DrainAll())
}

func TestReader_AcceptsLinesPastDefaultScannerCap(t *testing.T) {
	q := NewQueue()
	r := NewReader(q, nil)

	long := strings.Repeat("x", 256*1024)
	r.Start(strings.NewReader(long + "\nafter\n"))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not finish")
	}

	got := q.DrainAll()
	require.Len(t, got, 2)
	assert.Len(t, got[0], 256*1024)
	assert.Equal(t, "after", got[1])
}

func TestReader_EOFEndsSilently(t *testing.T) {
	q := NewQueue()
	r := NewReader(q, nil)

	r.Start(strings.NewReader(""))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not exit at EOF")
	}
	assert.Equal(t, 0, q.Len())
}
