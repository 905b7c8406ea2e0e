package services

import (
	"sync"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// fileStream is an unbounded output sequence. The coordinator pushes without
// blocking; a pump goroutine delivers files to the consumer in order.
//
// The file channel closes after end is called and the queue drains. The
// error channel then delivers the value passed to settle and closes.
// Settling with an error drops undelivered files and closes both channels.
type fileStream struct {
	mu      sync.Mutex
	queue   []domain.File
	ended   bool
	settled bool
	result  error

	wake  chan struct{}
	abort chan struct{}
	files chan domain.File
	errs  chan error
}

func newFileStream() *fileStream {
	s := &fileStream{
		wake:  make(chan struct{}, 1),
		abort: make(chan struct{}),
		files: make(chan domain.File),
		errs:  make(chan error, 1),
	}
	go s.pump()
	return s
}

// channels returns the consumer side of the stream.
func (s *fileStream) channels() (<-chan domain.File, <-chan error) {
	return s.files, s.errs
}

// push queues f. It reports false once the stream has ended.
func (s *fileStream) push(f domain.File) bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, f)
	s.mu.Unlock()
	s.notify()
	return true
}

// end marks that no more files will be pushed.
func (s *fileStream) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.notify()
}

// settle records the terminal result. Only the first call has effect.
func (s *fileStream) settle(err error) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.result = err
	if err != nil {
		s.ended = true
		s.queue = nil
		close(s.abort)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *fileStream) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *fileStream) pump() {
	filesClosed := false
	for {
		s.mu.Lock()
		var (
			next    domain.File
			hasNext bool
		)
		if len(s.queue) > 0 {
			next, hasNext = s.queue[0], true
			s.queue[0] = domain.File{}
			s.queue = s.queue[1:]
		}
		ended, settled, result := s.ended, s.settled, s.result
		s.mu.Unlock()

		if hasNext {
			select {
			case s.files <- next:
			case <-s.abort:
			}
			continue
		}
		if ended && !filesClosed {
			close(s.files)
			filesClosed = true
		}
		if filesClosed && settled {
			s.errs <- result
			close(s.errs)
			return
		}
		<-s.wake
	}
}
