package pages

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"

	"courseattend/internal/apiclient"
)

// SessionsBackend is the part of the API the sessions page uses.
type SessionsBackend interface {
	ListCourses(ctx context.Context) ([]apiclient.Course, error)
	ListSessions(ctx context.Context) ([]apiclient.Session, error)
	CreateSession(ctx context.Context, course, batch string) (*apiclient.Session, error)
}

// SessionForm opens a new attendance window.
type SessionForm struct {
	Course string `json:"course" validate:"required"`
	Batch  string `json:"batch" validate:"required"`
}

// SessionRow is one listed attendance window with its share link.
type SessionRow struct {
	apiclient.Session
	Status apiclient.SessionStatus `json:"status"`
	Link   string                  `json:"link"`
}

// SessionsView is the sessions page as rendered.
type SessionsView struct {
	Courses   []apiclient.Course `json:"courses"`
	Sessions  []SessionRow       `json:"sessions"`
	Created   *SessionRow        `json:"created,omitempty"`
	CanCreate bool               `json:"canCreate"`
	Loading   bool               `json:"loading"`
	Error     string             `json:"error,omitempty"`
}

// Sessions lists attendance windows and lets trainers open new ones.
// Admins see the list only.
type Sessions struct {
	backend   SessionsBackend
	env       Env
	publicURL string

	mu       sync.Mutex
	fetch    fetchState
	courses  []apiclient.Course
	sessions []apiclient.Session
	created  *apiclient.Session
}

func NewSessions(backend SessionsBackend, env Env, publicURL string) *Sessions {
	return &Sessions{backend: backend, env: env, publicURL: strings.TrimRight(publicURL, "/")}
}

// Load fetches courses and sessions.
func (p *Sessions) Load(ctx context.Context) error {
	p.mu.Lock()
	gen := p.fetch.begin()
	p.mu.Unlock()

	courses, err := p.backend.ListCourses(ctx)
	var sessions []apiclient.Session
	if err == nil {
		sessions, err = p.backend.ListSessions(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fetch.finish(gen, err, "Failed to load sessions.") || err != nil {
		return err
	}
	p.courses = courses
	p.sessions = sessions
	return nil
}

// Create opens a window for course and batch and returns it with its link.
func (p *Sessions) Create(ctx context.Context, form SessionForm) (*SessionRow, error) {
	if !p.env.trainer() {
		return nil, ErrForbidden
	}
	form.Batch = strings.TrimSpace(form.Batch)
	if err := check(form); err != nil {
		return nil, err
	}
	s, err := p.backend.CreateSession(ctx, form.Course, form.Batch)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.created = s
	p.mu.Unlock()
	row := p.row(*s)
	return &row, p.Load(ctx)
}

// Link is the public check-in URL for slug.
func (p *Sessions) Link(slug string) string {
	return p.publicURL + "/attend/" + url.PathEscape(slug)
}

// QRCode renders the share link of slug as a PNG.
func (p *Sessions) QRCode(slug string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(p.Link(slug), qrcode.Medium, size)
}

func (p *Sessions) row(s apiclient.Session) SessionRow {
	return SessionRow{Session: s, Status: s.Status(p.env.now()), Link: p.Link(s.Slug)}
}

// View returns the sessions newest first with their current status.
func (p *Sessions) View() SessionsView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := SessionsView{
		Courses:   append([]apiclient.Course(nil), p.courses...),
		CanCreate: p.env.trainer(),
		Loading:   p.fetch.loading,
		Error:     p.fetch.err,
	}
	for _, s := range newestFirst(p.sessions) {
		v.Sessions = append(v.Sessions, p.row(s))
	}
	if p.created != nil {
		row := p.row(*p.created)
		v.Created = &row
	}
	return v
}

func newestFirst(in []apiclient.Session) []apiclient.Session {
	out := append([]apiclient.Session(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpensAt.After(out[j].OpensAt) })
	return out
}
