package apiclient

import (
	"context"
	"net/url"
	"strconv"
)

// DailyReport returns sessions and marks for date (YYYY-MM-DD).
func (c *Client) DailyReport(ctx context.Context, date string) (*DailyReport, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var out DailyReport
	if err := c.getJSON(ctx, "/reports/daily", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analytics returns per-student attendance totals.
func (c *Client) Analytics(ctx context.Context, f AnalyticsFilter) ([]AnalyticsRow, error) {
	var out []AnalyticsRow
	if err := c.getJSON(ctx, "/reports/analytics", f.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StudentsGrid returns month-wise present/absent counts with mock scores.
func (c *Client) StudentsGrid(ctx context.Context, f GridFilter) (*GridReport, error) {
	q := url.Values{}
	q.Set("course", f.Course)
	q.Set("batch", f.Batch)
	if f.Year > 0 {
		q.Set("year", strconv.Itoa(f.Year))
	}
	var out GridReport
	if err := c.getJSON(ctx, "/reports/students-grid", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportReport downloads the report export.
func (c *Client) ExportReport(ctx context.Context, f AnalyticsFilter) (*File, error) {
	return c.getFile(ctx, "/reports/export", f.values(), "report-export.xlsx")
}

func (f AnalyticsFilter) values() url.Values {
	q := url.Values{}
	if f.CourseID != "" {
		q.Set("courseId", f.CourseID)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	return q
}
