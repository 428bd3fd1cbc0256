// Package memory provides a scriptable pushchannel.PushChannel fake for tests.
package memory

import (
	"context"
	"sync"

	"playercore/internal/pushchannel"
)

// PushChannel is an in-memory fake. Tests call Push to simulate an
// inbound command and inspect StartCalls/StopCalls for lifecycle
// assertions.
type PushChannel struct {
	mu sync.Mutex

	commands chan pushchannel.Command

	StartErr   error
	StartCalls []struct{ URL, Key string }
	StopCalls  int
	started    bool
}

// New creates a PushChannel with the given command buffer size.
func New(buffer int) *PushChannel {
	return &PushChannel{commands: make(chan pushchannel.Command, buffer)}
}

func (p *PushChannel) Start(_ context.Context, url, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, struct{ URL, Key string }{url, key})
	if p.StartErr != nil {
		return p.StartErr
	}
	p.started = true
	return nil
}

func (p *PushChannel) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls++
	p.started = false
}

func (p *PushChannel) Commands() <-chan pushchannel.Command { return p.commands }

// Push enqueues a command as if it had arrived over the wire. Tests must
// not call this after the channel's buffer is exhausted without a
// concurrent reader, same as any unbuffered/bounded channel.
func (p *PushChannel) Push(cmd pushchannel.Command) { p.commands <- cmd }

// Started reports whether Start has succeeded and Stop has not since been called.
func (p *PushChannel) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
