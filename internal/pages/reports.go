package pages

import (
	"context"
	"sync"

	"courseattend/internal/apiclient"
)

// ReportsBackend is the part of the API the reports page uses.
type ReportsBackend interface {
	ListCourses(ctx context.Context) ([]apiclient.Course, error)
	DailyReport(ctx context.Context, date string) (*apiclient.DailyReport, error)
	Analytics(ctx context.Context, f apiclient.AnalyticsFilter) ([]apiclient.AnalyticsRow, error)
	ExportAttendance(ctx context.Context, f apiclient.AnalyticsFilter) (*apiclient.File, error)
	ExportReport(ctx context.Context, f apiclient.AnalyticsFilter) (*apiclient.File, error)
}

const dateLayout = "2006-01-02"

// ReportFilter is the analytics filter form.
type ReportFilter struct {
	CourseID string `json:"courseId"`
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (f ReportFilter) api() apiclient.AnalyticsFilter {
	return apiclient.AnalyticsFilter{CourseID: f.CourseID, From: f.From, To: f.To}
}

type dailyForm struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ReportsView is the reports page as rendered.
type ReportsView struct {
	Date      string                   `json:"date"`
	Daily     *apiclient.DailyReport   `json:"daily,omitempty"`
	Filter    ReportFilter             `json:"filter"`
	Courses   []apiclient.Course       `json:"courses"`
	Analytics []apiclient.AnalyticsRow `json:"analytics"`
	Loading   bool                     `json:"loading"`
	Error     string                   `json:"error,omitempty"`
}

// Reports shows the daily report and filterable analytics with export.
type Reports struct {
	backend ReportsBackend
	env     Env

	mu        sync.Mutex
	daily     fetchState
	stats     fetchState
	date      string
	report    *apiclient.DailyReport
	filter    ReportFilter
	courses   []apiclient.Course
	analytics []apiclient.AnalyticsRow
}

func NewReports(backend ReportsBackend, env Env) *Reports {
	return &Reports{backend: backend, env: env}
}

// Load fetches courses, the daily report (today unless a date was chosen)
// and analytics for the current filter.
func (p *Reports) Load(ctx context.Context) error {
	courses, err := p.backend.ListCourses(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.courses = courses
	date := p.date
	filter := p.filter
	p.mu.Unlock()
	if date == "" {
		date = p.env.now().Format(dateLayout)
	}
	if err := p.SetDate(ctx, date); err != nil {
		return err
	}
	return p.SetFilter(ctx, filter)
}

// SetDate loads the daily report for date (YYYY-MM-DD).
func (p *Reports) SetDate(ctx context.Context, date string) error {
	if err := check(dailyForm{Date: date}); err != nil {
		return err
	}
	p.mu.Lock()
	p.date = date
	gen := p.daily.begin()
	p.mu.Unlock()

	rep, err := p.backend.DailyReport(ctx, date)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.daily.finish(gen, err, "Failed to load daily report.") || err != nil {
		return err
	}
	p.report = rep
	return nil
}

// SetFilter reloads analytics for f.
func (p *Reports) SetFilter(ctx context.Context, f ReportFilter) error {
	if err := check(f); err != nil {
		return err
	}
	p.mu.Lock()
	p.filter = f
	gen := p.stats.begin()
	p.mu.Unlock()

	rows, err := p.backend.Analytics(ctx, f.api())

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stats.finish(gen, err, "Failed to load analytics.") || err != nil {
		return err
	}
	p.analytics = rows
	return nil
}

// Export downloads the attendance workbook for the current filter.
func (p *Reports) Export(ctx context.Context) (*apiclient.File, error) {
	p.mu.Lock()
	f := p.filter
	p.mu.Unlock()
	return p.backend.ExportAttendance(ctx, f.api())
}

// ExportSummary downloads the analytics summary for the current filter.
func (p *Reports) ExportSummary(ctx context.Context) (*apiclient.File, error) {
	p.mu.Lock()
	f := p.filter
	p.mu.Unlock()
	return p.backend.ExportReport(ctx, f.api())
}

// View returns a copy of the page state.
func (p *Reports) View() ReportsView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := ReportsView{
		Date:      p.date,
		Daily:     p.report,
		Filter:    p.filter,
		Courses:   append([]apiclient.Course(nil), p.courses...),
		Analytics: append([]apiclient.AnalyticsRow(nil), p.analytics...),
		Loading:   p.daily.loading || p.stats.loading,
		Error:     p.daily.err,
	}
	if v.Error == "" {
		v.Error = p.stats.err
	}
	return v
}
