/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package loop

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// EventMask is the set of readiness conditions a Source reacts to.
type EventMask uint32

const (
	EventIn EventMask = 1 << iota
	EventOut
	EventHangup
	EventError
)

// Callback runs when fd becomes ready for one of the events in mask.
type Callback func(fd int, mask EventMask)

// TimerCallback runs when a timer expires. If it returns a positive
// duration the timer is rearmed for that long; zero or negative means
// "don't repeat".
type TimerCallback func() time.Duration

// IdleCallback runs once per loop iteration while no fd is ready, in
// registration order, until removed.
type IdleCallback func()

// InvokeFunc runs on the loop goroutine when dispatched via Invoke.
type InvokeFunc func() error

type source struct {
	fd   int
	mask EventMask
	cb   Callback
}

type timer struct {
	id       uint64
	deadline time.Time
	cb       TimerCallback
	index    int
	canceled bool
}

type timerHeap []*timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { t := x.(*timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

type idleEntry struct {
	id uint64
	cb IdleCallback
}

// Loop is an epoll-driven reactor: one goroutine runs Run, every
// registration and callback executes there, and other goroutines may
// only reach in via Invoke.
type Loop struct {
	epfd int
	wake int // eventfd used to interrupt EpollWait from Invoke/Stop

	mu      sync.Mutex
	sources map[int]*source
	timers  timerHeap
	timerByID map[uint64]*timer
	idles   []idleEntry
	nextID  uint64
	invoked []InvokeFunc

	// BeforeIterate runs at the top of every iteration, before
	// EpollWait blocks; wire.Connection.Flush is registered here so
	// buffered writes go out before the loop sleeps.
	BeforeIterate func()

	stopping bool
	stopped  chan struct{}
}

// New creates a Loop. Call Run in its own goroutine.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("loop: epoll_create1: %w", err)
	}
	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("loop: eventfd: %w", err)
	}
	l := &Loop{
		epfd:      epfd,
		wake:      wake,
		sources:   make(map[int]*source),
		timerByID: make(map[uint64]*timer),
		stopped:   make(chan struct{}),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wake),
	}); err != nil {
		_ = unix.Close(wake)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("loop: epoll_ctl(wake): %w", err)
	}
	return l, nil
}

// AddFD registers fd for the given events, edge-triggered.
func (l *Loop) AddFD(fd int, mask EventMask, cb Callback) error {
	l.mu.Lock()
	l.sources[fd] = &source{fd: fd, mask: mask, cb: cb}
	l.mu.Unlock()

	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpoll(mask) | unix.EPOLLET,
		Fd:     int32(fd),
	})
}

// UpdateFD changes the event mask for an already-registered fd.
func (l *Loop) UpdateFD(fd int, mask EventMask) error {
	l.mu.Lock()
	src, ok := l.sources[fd]
	if ok {
		src.mask = mask
	}
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("loop: fd %d not registered", fd)
	}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpoll(mask) | unix.EPOLLET,
		Fd:     int32(fd),
	})
}

// RemoveFD unregisters fd. It does not close it.
func (l *Loop) RemoveFD(fd int) error {
	l.mu.Lock()
	delete(l.sources, fd)
	l.mu.Unlock()
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// AddTimer arms a one-shot or repeating timer and returns a handle
// usable with CancelTimer.
func (l *Loop) AddTimer(after time.Duration, cb TimerCallback) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	t := &timer{id: l.nextID, deadline: time.Now().Add(after), cb: cb}
	heap.Push(&l.timers, t)
	l.timerByID[t.id] = t
	return t.id
}

// CancelTimer prevents a pending timer from firing. It is a no-op if
// the timer already fired and did not repeat.
func (l *Loop) CancelTimer(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timerByID[id]; ok {
		t.canceled = true
		delete(l.timerByID, id)
	}
}

// AddIdle registers cb to run every iteration with no ready fds.
func (l *Loop) AddIdle(cb IdleCallback) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.idles = append(l.idles, idleEntry{id: id, cb: cb})
	return id
}

// RemoveIdle unregisters a previously added idle callback.
func (l *Loop) RemoveIdle(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.idles {
		if e.id == id {
			l.idles = append(l.idles[:i], l.idles[i+1:]...)
			return
		}
	}
}

// Invoke schedules fn to run on the loop goroutine and wakes the loop
// if it's blocked in EpollWait. It does not wait for fn to complete;
// use a channel in fn to make it synchronous from the caller's side.
func (l *Loop) Invoke(fn InvokeFunc) {
	l.mu.Lock()
	l.invoked = append(l.invoked, fn)
	l.mu.Unlock()
	l.signal()
}

// InvokeSync runs fn on the loop goroutine and blocks the caller until
// it returns, per spec.md §5's synchronous Invoke variant.
func (l *Loop) InvokeSync(fn InvokeFunc) error {
	done := make(chan error, 1)
	l.Invoke(func() error {
		err := fn()
		done <- err
		return err
	})
	return <-done
}

func (l *Loop) signal() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(l.wake, buf[:])
}

// Stop breaks out of Run after the current iteration.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopping = true
	l.mu.Unlock()
	l.signal()
}

// Close releases the loop's epoll and eventfd descriptors. Call after
// Run has returned.
func (l *Loop) Close() error {
	err1 := unix.Close(l.wake)
	err2 := unix.Close(l.epfd)
	if err1 != nil {
		return err1
	}
	return err2
}

// Run drives the reactor until Stop is called. It must run on exactly
// one goroutine for the lifetime of the Loop.
func (l *Loop) Run() {
	defer close(l.stopped)
	events := make([]unix.EpollEvent, 64)

	for {
		l.mu.Lock()
		stopping := l.stopping
		before := l.BeforeIterate
		l.mu.Unlock()
		if stopping {
			return
		}
		if before != nil {
			before()
		}

		timeout := l.nextTimeout()
		n, err := unix.EpollWait(l.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		l.runInvoked()
		l.runExpiredTimers()

		any := n > 0
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == l.wake {
				l.drainWake()
				continue
			}
			l.dispatch(fd, events[i].Events)
		}
		if !any {
			l.runIdles()
		}
	}
}

func (l *Loop) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(l.wake, buf[:])
}

func (l *Loop) dispatch(fd int, raw uint32) {
	l.mu.Lock()
	src, ok := l.sources[fd]
	l.mu.Unlock()
	if !ok || src.cb == nil {
		return
	}
	src.cb(fd, fromEpoll(raw))
}

func (l *Loop) runInvoked() {
	l.mu.Lock()
	fns := l.invoked
	l.invoked = nil
	l.mu.Unlock()
	for _, fn := range fns {
		_ = fn()
	}
}

func (l *Loop) runIdles() {
	l.mu.Lock()
	idles := make([]IdleCallback, len(l.idles))
	for i, e := range l.idles {
		idles[i] = e.cb
	}
	l.mu.Unlock()
	for _, cb := range idles {
		cb()
	}
}

func (l *Loop) nextTimeout() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.idles) > 0 {
		return 0
	}
	if len(l.timers) == 0 {
		return -1
	}
	d := time.Until(l.timers[0].deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int(ms)
}

func (l *Loop) runExpiredTimers() {
	now := time.Now()
	var fired []*timer
	l.mu.Lock()
	for len(l.timers) > 0 && !l.timers[0].deadline.After(now) {
		t := heap.Pop(&l.timers).(*timer)
		if !t.canceled {
			fired = append(fired, t)
		}
	}
	l.mu.Unlock()

	for _, t := range fired {
		repeat := t.cb()
		if repeat > 0 {
			l.mu.Lock()
			t.deadline = time.Now().Add(repeat)
			t.canceled = false
			heap.Push(&l.timers, t)
			l.mu.Unlock()
		}
	}
}

func toEpoll(m EventMask) uint32 {
	var e uint32
	if m&EventIn != 0 {
		e |= unix.EPOLLIN
	}
	if m&EventOut != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpoll(raw uint32) EventMask {
	var m EventMask
	if raw&unix.EPOLLIN != 0 {
		m |= EventIn
	}
	if raw&unix.EPOLLOUT != 0 {
		m |= EventOut
	}
	if raw&unix.EPOLLHUP != 0 {
		m |= EventHangup
	}
	if raw&unix.EPOLLERR != 0 {
		m |= EventError
	}
	return m
}
