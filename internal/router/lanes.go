package router

import "sync"

// lanes serializes work per conversation: a new unit of work for a
// conversation starts only after the prior one finished. This is the
// single-in-flight discipline that keeps a second "notes" submission from
// racing an in-flight terminal write.
//
// Lane goroutines live as long as the process, mirroring the sessions they
// guard (idle conversations are never reclaimed).
type lanes struct {
	mu     sync.Mutex
	tasks  map[string]chan func()
	closed bool
	wg     sync.WaitGroup
}

func newLanes() *lanes {
	return &lanes{tasks: make(map[string]chan func())}
}

const laneBuffer = 16

// submit enqueues task on the conversation's lane, creating it on first use.
// Enqueueing blocks when a conversation has laneBuffer tasks outstanding;
// that backpressure is deliberate. Submissions after close are dropped, so a
// straggling timer drain during shutdown cannot spawn an unwaited lane.
func (l *lanes) submit(key string, task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	ch, ok := l.tasks[key]
	if !ok {
		ch = make(chan func(), laneBuffer)
		l.tasks[key] = ch
		l.wg.Add(1)
		go l.run(ch)
	}
	l.mu.Unlock()
	ch <- task
}

func (l *lanes) run(ch chan func()) {
	defer l.wg.Done()
	for task := range ch {
		task()
	}
}

// close stops all lanes after their queued tasks finish. Idempotent.
func (l *lanes) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.wg.Wait()
		return
	}
	l.closed = true
	for _, ch := range l.tasks {
		close(ch)
	}
	l.tasks = nil
	l.mu.Unlock()
	l.wg.Wait()
}
