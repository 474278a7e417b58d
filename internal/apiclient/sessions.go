package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// CreateSession opens a new attendance window for a course and batch.
func (c *Client) CreateSession(ctx context.Context, course, batch string) (*Session, error) {
	var out Session
	in := map[string]string{"course": course, "batch": batch}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns recent sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.getJSON(ctx, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSessionBySlug resolves a slug for a visitor at loc. When phone is
// non-empty the backend also tries to resolve the visitor's identity.
func (c *Client) GetSessionBySlug(ctx context.Context, slug string, loc Coords, phone string) (*SlugLookup, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	if phone != "" {
		q.Set("phone", phone)
	}
	var out SlugLookup
	if err := c.getJSON(ctx, "/sessions/"+url.PathEscape(slug), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkAttendance submits one attendance decision for the session behind slug.
func (c *Client) MarkAttendance(ctx context.Context, slug string, in MarkRequest) (*Mark, error) {
	var out Mark
	if err := c.doJSON(ctx, http.MethodPost, "/attendance/mark/"+url.PathEscape(slug), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
