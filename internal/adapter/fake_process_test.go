package adapter

import (
	"io"
	"sync"
	"syscall"
	"time"
)

// fakeProcess is an in-memory process. onLine handles stdin lines; output
// written through emit reaches the session's reader in emit order, like a
// real interpreter answering one line at a time.
type fakeProcess struct {
	mu    sync.Mutex
	calls []string

	onLine    func(p *fakeProcess, line string)
	exitOnSig bool // SIGTERM stops it
	deaf      bool // Kill has no effect
	stuck     bool // stdin lines are ignored

	out    *io.PipeWriter
	writes chan func()
	done   chan struct{}
	once   sync.Once
}

func newFakeProcess() (*fakeProcess, io.Reader) {
	r, w := io.Pipe()
	p := &fakeProcess{out: w, writes: make(chan func(), 64), done: make(chan struct{})}
	go p.writeLoop()
	return p, r
}

func (p *fakeProcess) writeLoop() {
	for {
		select {
		case write := <-p.writes:
			write()
		case <-p.done:
			return
		}
	}
}

func (p *fakeProcess) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakeProcess) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProcess) emit(s string) {
	p.emitAfter(0, s)
}

// emitAfter writes s once d has passed and everything emitted earlier has
// been written.
func (p *fakeProcess) emitAfter(d time.Duration, s string) {
	p.writes <- func() {
		if d > 0 {
			select {
			case <-time.After(d):
			case <-p.done:
				return
			}
		}
		p.out.Write([]byte(s))
	}
}

// hang makes the process ignore every later line.
func (p *fakeProcess) hang() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stuck = true
}

func (p *fakeProcess) exit() {
	p.once.Do(func() {
		p.out.Close()
		close(p.done)
	})
}

func (p *fakeProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *fakeProcess) WriteLine(line string) error {
	if p.exited() {
		return io.ErrClosedPipe
	}
	p.record("write:" + line)
	p.mu.Lock()
	stuck := p.stuck
	p.mu.Unlock()
	if !stuck && p.onLine != nil {
		p.onLine(p, line)
	}
	return nil
}

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.record("signal:" + sig.String())
	if p.exitOnSig {
		p.exit()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.record("kill")
	if !p.deaf {
		p.exit()
	}
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }
