package supervise

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// QueueSize bounds the lines buffered for the secondary consumer.
const QueueSize = 4096

// ErrDetached is returned by Forward once the secondary consumer can no longer receive lines.
var ErrDetached = errors.New("secondary consumer detached")

// Secondary is an optional consumer process fed a verbatim copy of every child output line on its stdin. Writes
// happen on a separate goroutine behind a bounded queue, so a slow or dead consumer never stalls the primary stream.
// Forward, Close and Terminate must be called from one goroutine.
type Secondary struct {
	*process
	stdin  io.WriteCloser
	queue  chan []byte
	writer chan struct{}
	broken atomic.Bool
	closed bool
	logger *log.Logger
}

// StartSecondary starts argv in dir. Its stdout and stderr go to stdout and stderr.
func StartSecondary(argv []string, dir string, stdout, stderr io.Writer, logger *log.Logger) (*Secondary, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	p, err := startProcess(cmd)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	s := &Secondary{
		process: p,
		stdin:   stdin,
		queue:   make(chan []byte, QueueSize),
		writer:  make(chan struct{}),
		logger:  logger,
	}
	go s.drain()
	return s, nil
}

func (s *Secondary) drain() {
	defer close(s.writer)
	for line := range s.queue {
		if s.broken.Load() {
			continue
		}
		if _, err := s.stdin.Write(line); err != nil {
			s.logger.Debug("secondary consumer write failed", "err", err)
			s.broken.Store(true)
		}
	}
}

// Forward queues raw for the consumer without blocking. A full queue drops the line. ErrDetached is returned once a
// write has failed or the consumer was closed.
func (s *Secondary) Forward(raw []byte) error {
	if s.closed || s.broken.Load() {
		return ErrDetached
	}
	select {
	case s.queue <- append([]byte(nil), raw...):
	default:
		s.logger.Debug("secondary consumer queue full, dropping line")
	}
	return nil
}

// Close flushes queued lines, closes the consumer's stdin and waits up to grace for it to exit. A consumer that stops
// reading or does not exit in time is terminated.
func (s *Secondary) Close(grace time.Duration) error {
	s.closeQueue()
	select {
	case <-s.writer:
		_ = s.stdin.Close()
	case <-time.After(grace):
		return s.Terminate(grace)
	}
	select {
	case <-s.Done():
		return nil
	case <-time.After(grace):
	}
	_, err := s.process.Terminate(grace)
	return err
}

// Terminate stops feeding the consumer, discarding queued lines, and terminates it.
func (s *Secondary) Terminate(grace time.Duration) error {
	s.broken.Store(true)
	_ = s.stdin.Close()
	s.closeQueue()
	<-s.writer
	_, err := s.process.Terminate(grace)
	return err
}

func (s *Secondary) closeQueue() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
