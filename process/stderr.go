package process

import (
	"bytes"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// stderrLog logs every complete stderr line and keeps the last lines.
type stderrLog struct {
	logger  *zap.SugaredLogger
	limit   int
	mux     sync.Mutex
	partial []byte
	lines   []string
}

func (s *stderrLog) Write(data []byte) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.partial = append(s.partial, data...)
	for {
		index := bytes.IndexByte(s.partial, '\n')
		if index == -1 {
			break
		}
		s.add(string(bytes.TrimRight(s.partial[:index], "\r")))
		s.partial = s.partial[index+1:]
	}
	return len(data), nil
}

func (s *stderrLog) flush() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if len(s.partial) > 0 {
		s.add(string(s.partial))
		s.partial = nil
	}
}

func (s *stderrLog) add(line string) {
	s.logger.Info(line)
	s.lines = append(s.lines, line)
	if len(s.lines) > s.limit {
		s.lines = s.lines[len(s.lines)-s.limit:]
	}
}

// Tail returns the retained stderr lines.
func (s *stderrLog) Tail() string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return strings.Join(s.lines, "\n")
}
