// Package relay bridges a collaborator's token stream onto an outbound
// writer. The pull loop over the upstream iterator and the write loop over
// the response run as an explicit producer/consumer pair with a dedicated
// error signal, so cancellation and mid-stream failure are first-class
// outcomes instead of implicit loop exits.
package relay

import (
	"context"
	"errors"
	"io"
)

// Source is the pull side of a collaborator stream. Next returns the next
// chunk of text, io.EOF at end-of-stream, or the upstream failure.
type Source interface {
	Next() (string, error)
}

// WriteFunc forwards one chunk to the caller. Implementations flush before
// returning so no chunk is buffered beyond what forwarding requires.
type WriteFunc func(chunk string) error

// Run forwards every chunk from src through write, in arrival order, until
// end-of-stream. It returns nil on a clean end-of-stream, the upstream error
// if the source fails mid-stream, the write error if the caller's connection
// drops, or ctx.Err on cancellation. Chunks are never reordered or dropped
// before a failure point.
func Run(ctx context.Context, src Source, write WriteFunc) error {
	chunks := make(chan string)
	pullErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(chunks)
		for {
			text, err := src.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					pullErr <- err
				}
				return
			}
			select {
			case chunks <- text:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case text, ok := <-chunks:
			if !ok {
				select {
				case err := <-pullErr:
					return err
				default:
					return nil
				}
			}
			if err := write(text); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SliceSource adapts a fixed chunk sequence into a Source.
type SliceSource struct {
	chunks []string
	next   int
}

// NewSliceSource returns a Source that yields the provided chunks in order.
func NewSliceSource(chunks ...string) *SliceSource {
	return &SliceSource{chunks: chunks}
}

// Next implements Source.
func (s *SliceSource) Next() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

// Prepend returns a Source that yields head before draining rest. The stream
// handler pulls the first chunk eagerly to distinguish a failed collaborator
// call from a mid-stream failure; Prepend stitches that chunk back on.
func Prepend(head string, rest Source) Source {
	return &prependSource{head: head, rest: rest}
}

type prependSource struct {
	head     string
	consumed bool
	rest     Source
}

func (s *prependSource) Next() (string, error) {
	if !s.consumed {
		s.consumed = true
		return s.head, nil
	}
	return s.rest.Next()
}
