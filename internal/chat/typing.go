package chat

import (
	"sync"
	"time"
)

// TypingIdle is how long after the last keystroke the typing state clears
const TypingIdle = 2 * time.Second

// Typer turns keystrokes into typing start/stop signals. emit runs outside
// the typer's lock and may be called from the timer goroutine.
type Typer struct {
	idle time.Duration
	emit func(isTyping bool)

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	typing   bool
	released bool
}

// NewTyper creates a typer. idle <= 0 uses TypingIdle.
func NewTyper(idle time.Duration, emit func(isTyping bool)) *Typer {
	if idle <= 0 {
		idle = TypingIdle
	}
	return &Typer{idle: idle, emit: emit}
}

// Keystroke marks the user as typing and re-arms the idle timer
func (t *Typer) Keystroke() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	start := !t.typing
	t.typing = true
	t.rearm()
	t.mu.Unlock()

	if start {
		t.emit(true)
	}
}

func (t *Typer) rearm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.idle, func() { t.expire(gen) })
}

func (t *Typer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	t.timer = nil
	t.mu.Unlock()

	t.emit(false)
}

// Stop clears the typing state, emitting false if the user was typing
func (t *Typer) Stop() {
	if t.clear() {
		t.emit(false)
	}
}

// Release clears the typing state without emitting and ignores further
// keystrokes
func (t *Typer) Release() {
	t.mu.Lock()
	t.released = true
	t.mu.Unlock()
	t.clear()
}

// Typing reports whether the user is currently typing
func (t *Typer) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

func (t *Typer) clear() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	was := t.typing
	t.typing = false
	return was
}
