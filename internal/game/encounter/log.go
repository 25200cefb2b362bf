package encounter

import "fmt"

// DefaultLogLimit is the number of lines an encounter log keeps.
const DefaultLogLimit = 256

// Log is an append-only, bounded sequence of human-readable event lines.
// When full, the oldest line is dropped.
type Log struct {
	limit   int
	lines   []string
	dropped int
}

// NewLog creates a Log holding at most limit lines. A limit below 1 uses
// DefaultLogLimit.
func NewLog(limit int) *Log {
	if limit < 1 {
		limit = DefaultLogLimit
	}
	return &Log{limit: limit, lines: make([]string, 0, min(limit, 64))}
}

// Add appends lines, evicting the oldest when over the limit.
func (l *Log) Add(lines ...string) {
	for _, line := range lines {
		if len(l.lines) == l.limit {
			copy(l.lines, l.lines[1:])
			l.lines = l.lines[:len(l.lines)-1]
			l.dropped++
		}
		l.lines = append(l.lines, line)
	}
}

// Addf appends one formatted line.
func (l *Log) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Lines returns a copy of the retained lines, oldest first.
func (l *Log) Lines() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the number of retained lines.
func (l *Log) Len() int { return len(l.lines) }

// Dropped returns how many lines have been evicted.
func (l *Log) Dropped() int { return l.dropped }
