package checkin

import (
	"context"
	"sort"
	"sync"
	"time"

	"courseattend/internal/apiclient"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// Advance moves time forward by d, firing due timers in order.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	for {
		f.mu.Lock()
		var due []*fakeTimer
		for _, t := range f.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			f.now = target
			f.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		f.now = next.at
		f.mu.Unlock()
		next.fn()
	}
}

// Pending counts scheduled, unfired, unstopped timers.
func (f *fakeClock) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type lookupCall struct {
	slug  string
	loc   apiclient.Coords
	phone string
}

type fakeBackend struct {
	mu       sync.Mutex
	session  apiclient.Session
	lookErr  error
	roster   map[string]apiclient.RosterEntry
	phoneErr error
	markErr  error
	lookups  []lookupCall
	marks    []apiclient.MarkRequest
	// gate, when set, blocks identity lookups until closed
	gate chan struct{}
}

func (b *fakeBackend) GetSessionBySlug(ctx context.Context, slug string, loc apiclient.Coords, phone string) (*apiclient.SlugLookup, error) {
	b.mu.Lock()
	b.lookups = append(b.lookups, lookupCall{slug, loc, phone})
	gate := b.gate
	b.mu.Unlock()
	if phone != "" && gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lookErr != nil {
		return nil, b.lookErr
	}
	res := &apiclient.SlugLookup{Session: b.session}
	if phone != "" {
		if b.phoneErr != nil {
			return nil, b.phoneErr
		}
		if st, ok := b.roster[phone]; ok {
			res.Student = &st
		}
	}
	return res, nil
}

func (b *fakeBackend) MarkAttendance(_ context.Context, slug string, in apiclient.MarkRequest) (*apiclient.Mark, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, in)
	if b.markErr != nil {
		return nil, b.markErr
	}
	return &apiclient.Mark{ID: "m-" + in.StudentID, Status: in.Status}, nil
}

func (b *fakeBackend) markCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.marks)
}
