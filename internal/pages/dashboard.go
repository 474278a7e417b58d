package pages

import (
	"context"
	"sync"

	"courseattend/internal/apiclient"
)

const (
	dashboardRows     = 15
	dashboardSessions = 5
)

// DashboardBackend is the part of the API the dashboard uses.
type DashboardBackend interface {
	Analytics(ctx context.Context, f apiclient.AnalyticsFilter) ([]apiclient.AnalyticsRow, error)
	ListSessions(ctx context.Context) ([]apiclient.Session, error)
}

// RecentSession is a dashboard session entry.
type RecentSession struct {
	apiclient.Session
	Expired bool `json:"expired"`
}

// DashboardView is the dashboard as rendered.
type DashboardView struct {
	Students  int                      `json:"students"`
	Analytics []apiclient.AnalyticsRow `json:"analytics"`
	Recent    []RecentSession          `json:"recent"`
	Loading   bool                     `json:"loading"`
	Error     string                   `json:"error,omitempty"`
}

// Dashboard summarises analytics and the latest sessions.
type Dashboard struct {
	backend DashboardBackend
	env     Env

	mu       sync.Mutex
	fetch    fetchState
	rows     []apiclient.AnalyticsRow
	sessions []apiclient.Session
}

func NewDashboard(backend DashboardBackend, env Env) *Dashboard {
	return &Dashboard{backend: backend, env: env}
}

// Load fetches unfiltered analytics and the session list.
func (p *Dashboard) Load(ctx context.Context) error {
	p.mu.Lock()
	gen := p.fetch.begin()
	p.mu.Unlock()

	rows, err := p.backend.Analytics(ctx, apiclient.AnalyticsFilter{})
	var sessions []apiclient.Session
	if err == nil {
		sessions, err = p.backend.ListSessions(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fetch.finish(gen, err, "Failed to load dashboard.") || err != nil {
		return err
	}
	p.rows = rows
	p.sessions = sessions
	return nil
}

// View returns the student count, the first analytics rows and the most
// recent sessions.
func (p *Dashboard) View() DashboardView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := DashboardView{
		Students: len(p.rows),
		Loading:  p.fetch.loading,
		Error:    p.fetch.err,
	}
	v.Analytics = append([]apiclient.AnalyticsRow(nil), p.rows[:min(len(p.rows), dashboardRows)]...)
	recent := newestFirst(p.sessions)
	now := p.env.now()
	for _, s := range recent[:min(len(recent), dashboardSessions)] {
		v.Recent = append(v.Recent, RecentSession{Session: s, Expired: s.Status(now) == apiclient.SessionExpired})
	}
	return v
}
