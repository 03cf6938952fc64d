package procmgr

import (
	"context"
	"sync"
)

// fakeProcess is an in-memory Process whose exit is driven by the test
type fakeProcess struct {
	pid int

	mu              sync.Mutex
	interrupts      int
	kills           int
	closes          int
	exitOnInterrupt bool
	ignoreKill      bool
	interruptErr    error

	exitCh   chan int
	exitOnce sync.Once
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{
		pid:             pid,
		exitOnInterrupt: true,
		exitCh:          make(chan int, 1),
	}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Interrupt() error {
	p.mu.Lock()
	p.interrupts++
	exit := p.exitOnInterrupt
	err := p.interruptErr
	p.mu.Unlock()

	if exit {
		p.exit(0)
	}
	return err
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	ignore := p.ignoreKill
	p.mu.Unlock()

	if !ignore {
		p.exit(-1)
	}
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	return <-p.exitCh, nil
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

func (p *fakeProcess) exit(code int) {
	p.exitOnce.Do(func() { p.exitCh <- code })
}

func (p *fakeProcess) counts() (interrupts, kills, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupts, p.kills, p.closes
}

// fakeLauncher hands out a prepared process, or fails
type fakeLauncher struct {
	mu       sync.Mutex
	requests []LaunchRequest
	proc     *fakeProcess
	err      error
	// when set, Launch blocks until it is closed
	gate chan struct{}
}

func (l *fakeLauncher) Launch(ctx context.Context, req LaunchRequest) (Process, error) {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}
