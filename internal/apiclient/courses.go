package apiclient

import (
	"context"
	"net/http"
)

// ListCourses returns all courses.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	var out []Course
	if err := c.getJSON(ctx, "/courses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCourse adds a course by name.
func (c *Client) CreateCourse(ctx context.Context, name string) (*Course, error) {
	var out Course
	if err := c.doJSON(ctx, http.MethodPost, "/courses", nil, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
