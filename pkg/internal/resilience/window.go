package resilience

import "sync"

// outcome 一次调用的结果.
type outcome struct {
	failed bool
	slow   bool
}

// window 记录最近 size 次调用结果的环形缓冲.
type window struct {
	mu    sync.Mutex
	buf   []outcome
	next  int
	count int
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}

	return &window{buf: make([]outcome, size)}
}

func (w *window) record(failed, slow bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf[w.next] = outcome{failed: failed, slow: slow}
	w.next = (w.next + 1) % len(w.buf)

	if w.count < len(w.buf) {
		w.count++
	}
}

// snapshot 返回窗口内的调用数、失败数与慢调用数.
func (w *window) snapshot() (total, failed, slow int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := 0; i < w.count; i++ {
		o := w.buf[i]
		if o.failed {
			failed++
		}

		if o.slow {
			slow++
		}
	}

	return w.count, failed, slow
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next = 0
	w.count = 0
}
