package guard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalKeepsOrder(t *testing.T) {
	j := NewJournal(4096)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	j.Record(Decision{At: at, Kind: KindRequest, Verdict: VerdictFulfill, URL: "http://localhost/a"})
	j.Record(Decision{At: at, Kind: KindRequest, Verdict: VerdictFulfill, URL: "http://localhost/b"})

	lines := j.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-01-02T03:04:05Z request fulfill http://localhost/a", lines[0])
	assert.Contains(t, lines[1], "http://localhost/b")

	// Reading does not consume.
	assert.Len(t, j.Lines(), 2)
}

func TestJournalEvictsOldest(t *testing.T) {
	j := NewJournal(256)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := range 20 {
		j.Record(Decision{At: at, Kind: KindRequest, Verdict: VerdictFulfill, URL: fmt.Sprintf("http://localhost/%02d", i)})
	}

	lines := j.Lines()
	require.NotEmpty(t, lines)
	assert.Less(t, len(lines), 20)
	assert.Contains(t, lines[len(lines)-1], "http://localhost/19")
	for _, l := range lines {
		assert.Contains(t, l, "request fulfill http://localhost/")
	}
}

func TestJournalEmpty(t *testing.T) {
	assert.Nil(t, NewJournal(64).Lines())
}
