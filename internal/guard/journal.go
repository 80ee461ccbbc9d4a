package guard

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
)

// Decision is one enforced verdict.
type Decision struct {
	At      time.Time
	Kind    Kind
	Verdict Verdict
	URL     string
}

func (d Decision) line() []byte {
	return fmt.Appendf(nil, "%s %s %s %s\n", d.At.UTC().Format(time.RFC3339Nano), d.Kind, d.Verdict, d.URL)
}

// Journal keeps the most recent decisions in a fixed amount of memory.
// When full, the oldest lines are dropped.
type Journal struct {
	mu  sync.Mutex
	buf *ringbuffer.RingBuffer
	cap int
}

// NewJournal returns a Journal holding up to size bytes of decisions.
func NewJournal(size int) *Journal {
	return &Journal{buf: ringbuffer.New(size), cap: size}
}

// Record appends d, evicting whole lines from the front as needed.
func (j *Journal) Record(d Decision) {
	line := d.line()
	if len(line) > j.cap {
		line = append(line[:j.cap-1], '\n')
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for j.buf.Free() < len(line) {
		if !j.dropLine() {
			break
		}
	}
	_, _ = j.buf.Write(line)
}

// dropLine discards bytes up to and including the next newline.
func (j *Journal) dropLine() bool {
	for {
		b, err := j.buf.ReadByte()
		if err != nil {
			return false
		}
		if b == '\n' {
			return true
		}
	}
}

// Lines returns the retained decisions, oldest first.
func (j *Journal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := j.buf.Length()
	if n == 0 {
		return nil
	}
	p := make([]byte, n)
	read, _ := j.buf.Read(p)
	p = p[:read]
	_, _ = j.buf.Write(p)

	return strings.Split(string(bytes.TrimSuffix(p, []byte("\n"))), "\n")
}
