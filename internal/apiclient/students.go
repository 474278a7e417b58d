package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// ListStudents returns the roster, optionally filtered by course id and batch.
func (c *Client) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	q := url.Values{}
	if f.Course != "" {
		q.Set("course", f.Course)
	}
	if f.Batch != "" {
		q.Set("batch", f.Batch)
	}
	var out []Student
	if err := c.getJSON(ctx, "/students", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStudent returns one student.
func (c *Client) GetStudent(ctx context.Context, id string) (*Student, error) {
	var out Student
	if err := c.getJSON(ctx, "/students/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateStudent adds a student.
func (c *Client) CreateStudent(ctx context.Context, in StudentInput) (*Student, error) {
	var out Student
	if err := c.doJSON(ctx, http.MethodPost, "/students", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStudent replaces a student's details.
func (c *Client) UpdateStudent(ctx context.Context, id string, in StudentUpdate) (*Student, error) {
	var out Student
	if err := c.doJSON(ctx, http.MethodPut, "/students/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchMockScore sets or clears (nil) the mock interview score.
func (c *Client) PatchMockScore(ctx context.Context, id string, score *int) error {
	in := struct {
		MockInterviewScore *int `json:"mockInterviewScore"`
	}{score}
	return c.doJSON(ctx, http.MethodPatch, "/students/"+url.PathEscape(id)+"/mock-score", nil, in, nil)
}

// DeleteStudent removes one student.
func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/students/"+url.PathEscape(id), nil, nil, nil)
}

// BulkDeleteStudents removes every listed student in one request and
// returns the number the backend deleted.
func (c *Client) BulkDeleteStudents(ctx context.Context, ids []string) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	in := struct {
		IDs []string `json:"ids"`
	}{ids}
	if err := c.doJSON(ctx, http.MethodPost, "/students/bulk-delete", nil, in, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}
