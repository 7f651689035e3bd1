// Package writer implements the single background worker that serializes
// every disk write after mdat is opened, decoupling GPU/AAC completion
// latency from disk I/O. A single goroutine owns the shared *os.File; a
// queue in front of it lets two concurrent producers (video, audio) feed
// one consumer.
package writer

import (
	"fmt"
	"sync"

	"github.com/nvstream/coreenc/pkg/encerr"
)

// Kind tags a queued sample by track.
type Kind int

const (
	Video Kind = iota
	Audio
)

// Message is one queued sample plus whatever per-kind metadata the muxer
// needs to append it (Keyframe for video, Duration/SampleRate/Channels/ASC
// for audio).
type Message struct {
	Kind       Kind
	Bytes      []byte
	Keyframe   bool
	Duration   uint32
	SampleRate int
	Channels   int
	ASC        []byte
}

// Sink is the subset of Mp4Muxer the pump writes through.
type Sink interface {
	AppendVideo(sample []byte, keyframe bool) error
	AppendAudio(sample []byte, duration uint32, sampleRate, channels int, asc []byte) error
}

// Pump is the single-consumer FIFO queue. The queue is intentionally
// unbounded: encoder rates are bounded by frame rate, so memory growth is
// bounded by per-frame size times outstanding frames.
type Pump struct {
	sink Sink

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Message
	stopping bool
	stopped  bool

	errMu sync.Mutex
	err   error

	done chan struct{}
}

// New starts the pump's worker goroutine, writing through sink.
func New(sink Sink) *Pump {
	p := &Pump{sink: sink, done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// Enqueue hands a message to the worker. It reports false if the writer
// has already failed or stopped; subsequent enqueues after a failure are
// no-ops so producers do not block forever on a dead consumer.
func (p *Pump) Enqueue(msg Message) bool {
	if p.Failed() {
		return false
	}
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, msg)
	p.mu.Unlock()
	p.cond.Signal()
	return true
}

func (p *Pump) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopping {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.stopping {
			p.mu.Unlock()
			return
		}
		msg := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if err := p.write(msg); err != nil {
			p.setErr(err)
		}
	}
}

func (p *Pump) write(msg Message) error {
	switch msg.Kind {
	case Video:
		return p.sink.AppendVideo(msg.Bytes, msg.Keyframe)
	case Audio:
		return p.sink.AppendAudio(msg.Bytes, msg.Duration, msg.SampleRate, msg.Channels, msg.ASC)
	default:
		return nil
	}
}

func (p *Pump) setErr(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = fmt.Errorf("%w: %v", encerr.ErrWriterThreadError, err)
	}
	p.errMu.Unlock()
}

// Failed reports whether any write has ever failed.
func (p *Pump) Failed() bool {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err != nil
}

// Err returns the first write error, if any.
func (p *Pump) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Stop drains the residual queue and joins the worker. Safe to call more
// than once; calls after the first return immediately.
func (p *Pump) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.stopping = true
	p.mu.Unlock()
	p.cond.Signal()
	<-p.done
}
