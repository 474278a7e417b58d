package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"courseattend/internal/apiclient"
)

// State is a step of the check-in flow.
type State string

const (
	AcquiringLocation State = "acquiring_location"
	LocationReady     State = "location_ready"
	LocationDenied    State = "location_denied"
	LocationFailed    State = "location_failed"
	SessionLoaded     State = "session_loaded"
	SessionRejected   State = "session_rejected"
	IdentityResolved  State = "identity_resolved"
	Marked            State = "marked"
)

// Terminal reports whether no further action can leave s.
func (s State) Terminal() bool {
	switch s {
	case LocationDenied, LocationFailed, SessionRejected, Marked:
		return true
	}
	return false
}

var (
	ErrWindowClosed     = errors.New("checkin: attendance window closed")
	ErrPhoneRequired    = errors.New("checkin: phone required")
	ErrIdentityNotFound = errors.New("checkin: no student for phone")
	ErrSubmission       = errors.New("checkin: submission failed")
	ErrAlreadyMarked    = errors.New("checkin: already marked")
	ErrInvalidState     = errors.New("checkin: action not available in current state")
	ErrInvalidStatus    = errors.New("checkin: status must be present or absent")
	ErrBusy             = errors.New("checkin: request in flight")
	ErrStale            = errors.New("checkin: result discarded, flow moved on")
)

// Backend is the slice of the REST API the flow talks to.
type Backend interface {
	GetSessionBySlug(ctx context.Context, slug string, loc apiclient.Coords, phone string) (*apiclient.SlugLookup, error)
	MarkAttendance(ctx context.Context, slug string, in apiclient.MarkRequest) (*apiclient.Mark, error)
}

// SessionInfo is what the visitor sees of the attendance window.
type SessionInfo struct {
	Slug       string    `json:"slug"`
	CourseName string    `json:"courseName"`
	Batch      string    `json:"batch"`
	OpensAt    time.Time `json:"opensAt"`
	ClosesAt   time.Time `json:"closesAt"`
}

// Identity is the student resolved from the visitor's phone.
type Identity struct {
	StudentID   string               `json:"studentId"`
	Name        string               `json:"name"`
	PhoneMasked string               `json:"phoneMasked,omitempty"`
	Status      apiclient.MarkStatus `json:"status,omitempty"`
}

// Snapshot is a consistent copy of the flow for rendering.
type Snapshot struct {
	Slug        string               `json:"slug"`
	State       State                `json:"state"`
	Location    *apiclient.Coords    `json:"location,omitempty"`
	Session     *SessionInfo         `json:"session,omitempty"`
	Remaining   int                  `json:"remaining"`
	WindowOpen  bool                 `json:"windowOpen"`
	Phone       string               `json:"phone"`
	Student     *Identity            `json:"student,omitempty"`
	Marked      apiclient.MarkStatus `json:"marked,omitempty"`
	Error       ErrorKind            `json:"error,omitempty"`
	Message     string               `json:"message,omitempty"`
	Reminder    string               `json:"reminder,omitempty"`
	Success     string               `json:"success,omitempty"`
	Busy        bool                 `json:"busy"`
	CanContinue bool                 `json:"canContinue"`
	CanSubmit   bool                 `json:"canSubmit"`
}

// Transition is reported to observers after every state change.
type Transition struct {
	Slug string
	From State
	To   State
	Kind ErrorKind
	At   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option { return func(c *Controller) { c.clock = clock } }

// WithMessages replaces the default copy.
func WithMessages(m Messages) Option { return func(c *Controller) { c.msgs = m } }

// WithOptions replaces the geolocation options.
func WithOptions(o Options) Option { return func(c *Controller) { c.opts = o } }

// WithObserver registers fn for transitions. It is called without the
// controller lock held, in transition order.
func WithObserver(fn func(Transition)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// Controller drives one visitor through location, session, identity and
// submission. Methods are safe for concurrent use; network calls run
// without the lock and their results are applied only if the flow is still
// where it was when the call was issued.
type Controller struct {
	slug      string
	backend   Backend
	locator   Locator
	clock     Clock
	msgs      Messages
	opts      Options
	observers []func(Transition)

	mu        sync.Mutex
	epoch     uint64
	phoneGen  uint64
	state     State
	loc       *apiclient.Coords
	session   *SessionInfo
	countdown *Countdown
	remaining int
	open      bool
	phone     string
	student   *Identity
	marked    apiclient.MarkStatus
	errKind   ErrorKind
	message   string
	reminder  string
	success   string
	busy      bool
	closed    bool
	pending   []Transition
}

// NewController creates a flow for slug in state AcquiringLocation.
func NewController(slug string, backend Backend, locator Locator, opts ...Option) *Controller {
	c := &Controller{
		slug:    slug,
		backend: backend,
		locator: locator,
		clock:   SystemClock,
		msgs:    DefaultMessages(""),
		opts:    DefaultOptions,
		state:   AcquiringLocation,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Slug is the link token this flow serves.
func (c *Controller) Slug() string { return c.slug }

// Start (re)runs the flow from AcquiringLocation: one position reading,
// then the session lookup. Any running countdown is cancelled first.
func (c *Controller) Start(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.closed {
		c.unlock()
		return c.Snapshot()
	}
	c.resetLocked()
	epoch := c.epoch
	locator, opts := c.locator, c.opts
	c.unlock()

	lctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	var (
		loc apiclient.Coords
		err error
	)
	if locator == nil {
		err = ErrUnsupported
	} else {
		loc, err = locator.Locate(lctx, opts)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			err = &GeoError{Code: PositionTimeout, Message: "timed out"}
		}
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.unlock()
		return c.Snapshot()
	}
	if err != nil {
		c.failLocationLocked(err)
		c.unlock()
		return c.Snapshot()
	}
	c.loc = &loc
	c.setStateLocked(LocationReady)
	c.unlock()

	c.loadSession(ctx, epoch, loc)
	return c.Snapshot()
}

// Relocate swaps the locator (the visitor's location changed) and restarts.
func (c *Controller) Relocate(ctx context.Context, locator Locator) Snapshot {
	c.mu.Lock()
	c.locator = locator
	c.mu.Unlock()
	return c.Start(ctx)
}

// Close cancels the countdown and discards any late results.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.unlock()
	c.closed = true
	c.epoch++
	c.stopCountdownLocked()
}

// SetPhone updates the phone field. Changing it after identity resolution
// returns the flow to SessionLoaded; results for the previous phone are
// discarded.
func (c *Controller) SetPhone(phone string) error {
	c.mu.Lock()
	defer c.unlock()
	switch c.state {
	case SessionLoaded:
	case IdentityResolved:
		if strings.TrimSpace(phone) == strings.TrimSpace(c.phone) {
			c.phone = phone
			return nil
		}
		c.student = nil
		c.setStateLocked(SessionLoaded)
	default:
		return ErrInvalidState
	}
	c.phone = phone
	c.phoneGen++
	c.clearErrorLocked()
	return nil
}

// Continue resolves the visitor's identity from the phone field.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	if c.state != SessionLoaded {
		c.unlock()
		return ErrInvalidState
	}
	if !c.open {
		c.setErrorLocked(KindWindowClosed, c.msgs.WindowClosed)
		c.unlock()
		return ErrWindowClosed
	}
	phone := strings.TrimSpace(c.phone)
	if phone == "" {
		c.setErrorLocked(KindValidation, c.msgs.PhoneRequired)
		c.unlock()
		return ErrPhoneRequired
	}
	if c.busy {
		c.unlock()
		return ErrBusy
	}
	c.busy = true
	c.clearErrorLocked()
	epoch, gen, loc := c.epoch, c.phoneGen, *c.loc
	c.unlock()

	res, err := c.backend.GetSessionBySlug(ctx, c.slug, loc, phone)

	c.mu.Lock()
	defer c.unlock()
	if epoch != c.epoch {
		return ErrStale
	}
	c.busy = false
	if gen != c.phoneGen || c.state != SessionLoaded {
		return ErrStale
	}
	if err != nil || res == nil || res.Student == nil {
		msg := c.msgs.IdentityNotFound
		if err != nil {
			msg = apiclient.Message(err, c.msgs.IdentityNotFound)
		}
		c.setErrorLocked(KindIdentityNotFound, msg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIdentityNotFound, err)
		}
		return ErrIdentityNotFound
	}

	st := res.Student
	c.student = &Identity{StudentID: st.ID, Name: st.Name, PhoneMasked: st.PhoneMasked, Status: st.Status}
	c.setStateLocked(IdentityResolved)
	if st.Status != "" {
		c.marked = st.Status
		c.setStateLocked(Marked)
	}
	return nil
}

// Mark submits the resolved student's attendance.
func (c *Controller) Mark(ctx context.Context, status apiclient.MarkStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	c.mu.Lock()
	switch {
	case c.state == Marked:
		c.unlock()
		return ErrAlreadyMarked
	case c.state != IdentityResolved:
		c.unlock()
		return ErrInvalidState
	case !c.open:
		c.setErrorLocked(KindWindowClosed, c.msgs.WindowClosed)
		c.unlock()
		return ErrWindowClosed
	case c.busy:
		c.unlock()
		return ErrBusy
	}
	phone := strings.TrimSpace(c.phone)
	if phone == "" {
		c.setErrorLocked(KindValidation, c.msgs.PhoneRequired)
		c.unlock()
		return ErrPhoneRequired
	}
	c.busy = true
	c.success = ""
	c.clearErrorLocked()
	epoch, gen, loc := c.epoch, c.phoneGen, *c.loc
	req := apiclient.MarkRequest{
		StudentID: c.student.StudentID,
		Status:    status,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Phone:     phone,
	}
	c.unlock()

	_, err := c.backend.MarkAttendance(ctx, c.slug, req)

	c.mu.Lock()
	defer c.unlock()
	if epoch != c.epoch {
		return ErrStale
	}
	c.busy = false
	if gen != c.phoneGen || c.state != IdentityResolved {
		return ErrStale
	}
	if err != nil {
		c.setErrorLocked(KindSubmissionFailed, apiclient.Message(err, c.msgs.SubmissionFailed))
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	c.marked = status
	c.student.Status = status
	c.success = c.msgs.Marked
	c.setStateLocked(Marked)
	return nil
}

// Snapshot returns the current view of the flow.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Slug:       c.slug,
		State:      c.state,
		Remaining:  c.remaining,
		WindowOpen: c.open,
		Phone:      c.phone,
		Marked:     c.marked,
		Error:      c.errKind,
		Message:    c.message,
		Reminder:   c.reminder,
		Success:    c.success,
		Busy:       c.busy,
	}
	if c.loc != nil {
		loc := *c.loc
		s.Location = &loc
	}
	if c.session != nil {
		info := *c.session
		s.Session = &info
	}
	if c.student != nil {
		id := *c.student
		s.Student = &id
	}
	if !c.open && s.Error == KindNone && (c.state == SessionLoaded || c.state == IdentityResolved) {
		s.Error = KindWindowClosed
		s.Message = c.msgs.WindowClosed
	}
	hasPhone := strings.TrimSpace(c.phone) != ""
	s.CanContinue = c.state == SessionLoaded && c.open && !c.busy && hasPhone
	s.CanSubmit = c.state == IdentityResolved && c.open && !c.busy && hasPhone &&
		c.student != nil && c.student.Status == ""
	return s
}

func (c *Controller) loadSession(ctx context.Context, epoch uint64, loc apiclient.Coords) {
	res, err := c.backend.GetSessionBySlug(ctx, c.slug, loc, "")

	c.mu.Lock()
	if epoch != c.epoch {
		c.unlock()
		return
	}
	if err != nil || res == nil {
		c.reminder = c.msgs.CampusReminder
		c.setErrorLocked(KindSessionRejected, apiclient.Message(err, c.msgs.SessionRejected))
		c.setStateLocked(SessionRejected)
		c.unlock()
		return
	}
	c.session = &SessionInfo{
		Slug:       res.Session.Slug,
		CourseName: res.Session.Course.Name,
		Batch:      res.Session.Batch,
		OpensAt:    res.Session.OpensAt,
		ClosesAt:   res.Session.ClosesAt,
	}
	if c.session.Slug == "" {
		c.session.Slug = c.slug
	}
	cd := NewCountdown(c.clock, res.Session.ClosesAt, func(left int) { c.onTick(epoch, left) })
	c.countdown = cd
	c.remaining = cd.Start()
	c.open = c.remaining > 0
	c.setStateLocked(SessionLoaded)
	c.unlock()
}

func (c *Controller) onTick(epoch uint64, left int) {
	c.mu.Lock()
	defer c.unlock()
	if epoch != c.epoch {
		return
	}
	c.remaining = left
	c.open = left > 0
}

func (c *Controller) failLocationLocked(err error) {
	var geo *GeoError
	switch {
	case errors.Is(err, ErrUnsupported):
		c.setErrorLocked(KindLocationUnsupported, c.msgs.LocationUnsupported)
		c.setStateLocked(LocationFailed)
	case errors.As(err, &geo) && geo.Code == PermissionDenied:
		c.setErrorLocked(KindLocationDenied, c.msgs.LocationDenied)
		c.setStateLocked(LocationDenied)
	default:
		c.setErrorLocked(KindLocationFailed, c.msgs.LocationFailed)
		c.setStateLocked(LocationFailed)
	}
}

func (c *Controller) resetLocked() {
	c.epoch++
	c.stopCountdownLocked()
	c.loc = nil
	c.session = nil
	c.remaining = 0
	c.open = false
	c.student = nil
	c.marked = ""
	c.busy = false
	c.success = ""
	c.reminder = ""
	c.clearErrorLocked()
	c.setStateLocked(AcquiringLocation)
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
}

func (c *Controller) setErrorLocked(kind ErrorKind, msg string) {
	c.errKind = kind
	c.message = msg
}

func (c *Controller) clearErrorLocked() {
	c.errKind = KindNone
	c.message = ""
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.pending = append(c.pending, Transition{
		Slug: c.slug,
		From: c.state,
		To:   s,
		Kind: c.errKind,
		At:   c.clock.Now(),
	})
	c.state = s
}

// unlock releases the lock and then notifies observers of queued transitions.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, t := range pending {
		for _, fn := range c.observers {
			fn(t)
		}
	}
}
