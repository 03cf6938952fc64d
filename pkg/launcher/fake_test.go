package launcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// fakeProcess is an in-memory node process. Unless told otherwise it exits
// on the first interrupt.
type fakeProcess struct {
	name string
	pid  int
	log  *eventLog

	mu              sync.Mutex
	ignoreInterrupt bool
	ignoreKill      bool
	interrupts      int
	kills           int

	exitCh   chan int
	exitOnce sync.Once
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Interrupt() error {
	p.mu.Lock()
	p.interrupts++
	ignore := p.ignoreInterrupt
	p.mu.Unlock()

	p.log.add("interrupt " + p.name)
	if !ignore {
		p.exit(0)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	ignore := p.ignoreKill
	p.mu.Unlock()

	p.log.add("kill " + p.name)
	if !ignore {
		p.exit(-1)
	}
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	return <-p.exitCh, nil
}

func (p *fakeProcess) Close() error { return nil }

func (p *fakeProcess) exit(code int) {
	p.exitOnce.Do(func() { p.exitCh <- code })
}

func (p *fakeProcess) counts() (interrupts, kills int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupts, p.kills
}

// eventLog records launches and signals across all processes in order
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeLauncher spawns fakeProcesses and records every request
type fakeLauncher struct {
	log eventLog

	mu        sync.Mutex
	requests  []procmgr.LaunchRequest
	procs     map[string]*fakeProcess
	failFor   map[string]error
	configure func(p *fakeProcess)
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		procs:   make(map[string]*fakeProcess),
		failFor: make(map[string]error),
	}
}

func (l *fakeLauncher) Launch(_ context.Context, req procmgr.LaunchRequest) (procmgr.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requests = append(l.requests, req)
	l.log.add("launch " + req.Name)
	if err := l.failFor[req.Name]; err != nil {
		return nil, err
	}

	p := &fakeProcess{
		name:   req.Name,
		pid:    1000 + len(l.requests),
		log:    &l.log,
		exitCh: make(chan int, 1),
	}
	if l.configure != nil {
		l.configure(p)
	}
	l.procs[req.Name] = p
	return p, nil
}

func (l *fakeLauncher) launched() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.requests))
	for _, r := range l.requests {
		names = append(names, r.Name)
	}
	return names
}

func (l *fakeLauncher) request(name string) (procmgr.LaunchRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.requests {
		if r.Name == name {
			return r, nil
		}
	}
	return procmgr.LaunchRequest{}, fmt.Errorf("%s was not launched", name)
}

func (l *fakeLauncher) process(name string) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[name]
}

// readyCounter is a probe that passes immediately and counts passes
type readyCounter struct {
	mu    sync.Mutex
	ready []string
}

func (r *readyCounter) Wait(_ context.Context, t Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, t.Name)
	return nil
}

func (r *readyCounter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ready)
}
