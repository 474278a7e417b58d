package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

// ImportStudents uploads a roster workbook as multipart field "file".
func (c *Client) ImportStudents(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("apiclient: write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("apiclient: close multipart: %w", err)
	}

	const path = "/excel/import/students"
	resp, err := c.send(ctx, http.MethodPost, path, nil, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("apiclient: decode %s: %w", path, err)
	}
	return &out, nil
}

// StudentTemplate downloads the empty roster workbook.
func (c *Client) StudentTemplate(ctx context.Context) (*File, error) {
	return c.getFile(ctx, "/excel/template/students", nil, "student-upload-template.xlsx")
}

// ExportAttendance downloads the attendance workbook for f.
func (c *Client) ExportAttendance(ctx context.Context, f AnalyticsFilter) (*File, error) {
	return c.getFile(ctx, "/excel/export/attendance", f.values(), "attendance-export.xlsx")
}
