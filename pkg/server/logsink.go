package server

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// LogSink is the persistent log collaborator: it accepts timestamped
// text lines and can return everything accumulated so far, which is
// what the GET_LOG command serves to clients.
type LogSink interface {
	Printf(format string, args ...any)
	Contents() (string, error)
	Close() error
}

const sinkTimeFormat = "2006-01-02 15:04:05"

// FileSink appends timestamped lines to a log file, one write per
// line so entries survive a crash mid-run.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileSink opens (or creates) the log file in append mode
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileSink{path: path, file: file}, nil
}

func (s *FileSink) Printf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(sinkTimeFormat), fmt.Sprintf(format, args...))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.WriteString(line)
	}
}

// Contents re-reads the file so entries from previous runs are
// included, matching how GET_LOG served the on-disk log originally.
func (s *FileSink) Contents() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}
	return string(data), nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// MemorySink keeps log lines in memory. Used by tests and when no log
// file is configured.
type MemorySink struct {
	mu  sync.Mutex
	buf strings.Builder
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(&s.buf, "[%s] %s\n", time.Now().Format(sinkTimeFormat), fmt.Sprintf(format, args...))
}

func (s *MemorySink) Contents() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String(), nil
}

func (s *MemorySink) Close() error {
	return nil
}
