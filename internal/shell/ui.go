package shell

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"courseattend/internal/apiclient"
	"courseattend/internal/pages"
	"courseattend/internal/visits"
)

const maxUpload = 10 << 20

func (s *Server) Dashboard(c *gin.Context) {
	p := mustWorkspace(c).pages.Dashboard
	if err := p.Load(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

// ListStudents applies the course/batch query as the roster filter.
func (s *Server) ListStudents(c *gin.Context) {
	p := mustWorkspace(c).pages.Students
	ctx := c.Request.Context()
	if len(p.View().Courses) == 0 {
		if err := p.Load(ctx); err != nil {
			s.fail(c, err)
			return
		}
	}
	f := apiclient.StudentFilter{Course: c.Query("course"), Batch: c.Query("batch")}
	if err := p.SetFilter(ctx, f); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

func (s *Server) CreateStudent(c *gin.Context) {
	var form pages.StudentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := mustWorkspace(c).pages.Students
	st, err := p.Create(c.Request.Context(), form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": st, "page": p.View()})
}

// EditStudent returns the edit form filled from the backend.
func (s *Server) EditStudent(c *gin.Context) {
	form, err := mustWorkspace(c).pages.Students.Edit(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (s *Server) CreateCourse(c *gin.Context) {
	var form pages.CourseForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := mustWorkspace(c).pages.Students
	course, err := p.AddCourse(c.Request.Context(), form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"course": course, "page": p.View()})
}

func (s *Server) UpdateStudent(c *gin.Context) {
	var form pages.StudentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := mustWorkspace(c).pages.Students
	st, err := p.Update(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st, "page": p.View()})
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

// DeleteStudent needs {"confirm": true}; the browser asks the user first.
func (s *Server) DeleteStudent(c *gin.Context) {
	var req confirmRequest
	if !bindOptional(c, &req) {
		return
	}
	p := mustWorkspace(c).pages.Students
	if err := p.Delete(c.Request.Context(), c.Param("id"), pages.Answer(req.Confirm)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

type selectionRequest struct {
	IDs      []string `json:"ids"`
	Selected bool     `json:"selected"`
	All      *bool    `json:"all"`
}

// SelectStudents toggles ids, or every listed student when "all" is set.
func (s *Server) SelectStudents(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := mustWorkspace(c).pages.Students
	if req.All != nil {
		p.SelectAll(*req.All)
	}
	for _, id := range req.IDs {
		p.Select(id, req.Selected)
	}
	c.JSON(http.StatusOK, p.View())
}

func (s *Server) BulkDeleteStudents(c *gin.Context) {
	var req confirmRequest
	if !bindOptional(c, &req) {
		return
	}
	p := mustWorkspace(c).pages.Students
	n, err := p.BulkDelete(c.Request.Context(), pages.Answer(req.Confirm))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "page": p.View()})
}

// ImportStudents takes the workbook from the multipart "file" field.
func (s *Server) ImportStudents(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Choose a file to import."})
		return
	}
	if fh.Size > maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large."})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}
	p := mustWorkspace(c).pages.Students
	res, err := p.Import(c.Request.Context(), fh.Filename, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": res.Added, "skipped": res.Skipped, "page": p.View()})
}

func (s *Server) StudentTemplate(c *gin.Context) {
	f, err := mustWorkspace(c).pages.Students.Template(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	sendFile(c, f)
}

func (s *Server) ListSessions(c *gin.Context) {
	p := mustWorkspace(c).pages.Sessions
	if err := p.Load(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

func (s *Server) CreateSession(c *gin.Context) {
	var form pages.SessionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := mustWorkspace(c).pages.Sessions
	row, err := p.Create(c.Request.Context(), form)
	if err != nil && row == nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": row, "page": p.View()})
}

// SessionQR renders the share link of a slug as a PNG.
func (s *Server) SessionQR(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	if size < 64 || size > 1024 {
		size = 256
	}
	png, err := mustWorkspace(c).pages.Sessions.QRCode(c.Param("slug"), size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func reportFilter(c *gin.Context) pages.ReportFilter {
	return pages.ReportFilter{CourseID: c.Query("courseId"), From: c.Query("from"), To: c.Query("to")}
}

// Reports loads the daily report for ?date (default today) and analytics
// for ?courseId, ?from and ?to.
func (s *Server) Reports(c *gin.Context) {
	p := mustWorkspace(c).pages.Reports
	ctx := c.Request.Context()
	if len(p.View().Courses) == 0 {
		if err := p.Load(ctx); err != nil {
			s.fail(c, err)
			return
		}
	}
	if date := c.Query("date"); date != "" {
		if err := p.SetDate(ctx, date); err != nil {
			s.fail(c, err)
			return
		}
	}
	if err := p.SetFilter(ctx, reportFilter(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

// ExportReport sends the attendance workbook, or the analytics summary
// with ?kind=summary.
func (s *Server) ExportReport(c *gin.Context) {
	p := mustWorkspace(c).pages.Reports
	if err := p.SetFilter(c.Request.Context(), reportFilter(c)); err != nil {
		s.fail(c, err)
		return
	}
	export := p.Export
	if c.Query("kind") == "summary" {
		export = p.ExportSummary
	}
	f, err := export(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	sendFile(c, f)
}

// Grid loads courses and, when ?course and ?batch are given, the grid.
func (s *Server) Grid(c *gin.Context) {
	p := mustWorkspace(c).pages.Grid
	ctx := c.Request.Context()
	if err := p.Load(ctx); err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("course") != "" || c.Query("batch") != "" {
		year, _ := strconv.Atoi(c.Query("year"))
		form := pages.GridForm{Course: c.Query("course"), Batch: c.Query("batch"), Year: year}
		if err := p.Show(ctx, form); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, p.View())
}

type scoreRequest struct {
	Score string `json:"score"`
}

func (s *Server) SetGridScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := mustWorkspace(c).pages.Grid
	if err := p.SetScore(c.Request.Context(), c.Param("id"), req.Score); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

// ListVisits shows recorded check-in outcomes to admins.
func (s *Server) ListVisits(c *gin.Context) {
	ws := mustWorkspace(c)
	if ws.user.Role != apiclient.RoleAdmin {
		s.fail(c, pages.ErrForbidden)
		return
	}
	if s.visits == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "visit log not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	slug := c.Query("slug")
	list, err := s.visits.List(c.Request.Context(), visits.Filter{Slug: slug, State: c.Query("state"), Limit: limit, Offset: offset})
	if err != nil {
		s.fail(c, err)
		return
	}
	body := gin.H{"visits": list}
	if slug != "" {
		sum, err := s.visits.Summary(c.Request.Context(), slug)
		if err != nil {
			s.fail(c, err)
			return
		}
		body["summary"] = sum
	}
	c.JSON(http.StatusOK, body)
}

func sendFile(c *gin.Context, f *apiclient.File) {
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	c.Data(http.StatusOK, ct, f.Data)
}
