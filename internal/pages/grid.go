package pages

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"courseattend/internal/apiclient"
)

// GridBackend is the part of the API the student grid uses.
type GridBackend interface {
	ListCourses(ctx context.Context) ([]apiclient.Course, error)
	StudentsGrid(ctx context.Context, f apiclient.GridFilter) (*apiclient.GridReport, error)
	PatchMockScore(ctx context.Context, id string, score *int) error
}

// GridSelectMessage is shown when the grid is requested without course and batch.
const GridSelectMessage = "Select course and enter batch."

// GridForm selects one grid.
type GridForm struct {
	Course string `json:"course"`
	Batch  string `json:"batch"`
	Year   int    `json:"year"`
}

type scoreForm struct {
	MockInterviewScore *int `json:"mockInterviewScore" validate:"omitempty,min=0,max=100"`
}

// GridView is the student grid as rendered.
type GridView struct {
	Form    GridForm              `json:"form"`
	Years   []int                 `json:"years"`
	Courses []apiclient.Course    `json:"courses"`
	Report  *apiclient.GridReport `json:"report,omitempty"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
}

// Grid is the month-wise attendance grid with inline mock score edits.
type Grid struct {
	backend GridBackend
	env     Env

	mu      sync.Mutex
	fetch   fetchState
	form    GridForm
	courses []apiclient.Course
	report  *apiclient.GridReport
}

func NewGrid(backend GridBackend, env Env) *Grid {
	return &Grid{backend: backend, env: env}
}

// YearOptions are the selectable years: current and the two before it.
func (p *Grid) YearOptions() []int {
	y := p.env.now().Year()
	return []int{y, y - 1, y - 2}
}

// Load fetches the course list.
func (p *Grid) Load(ctx context.Context) error {
	courses, err := p.backend.ListCourses(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.fetch.err = apiclient.Message(err, "Failed to load courses.")
		return err
	}
	p.courses = courses
	return nil
}

// Show loads the grid for form. Course and batch are required; a zero year
// means the current one.
func (p *Grid) Show(ctx context.Context, form GridForm) error {
	form.Batch = strings.TrimSpace(form.Batch)
	if form.Course == "" || form.Batch == "" {
		return &ValidationError{Message: GridSelectMessage}
	}
	if form.Year == 0 {
		form.Year = p.env.now().Year()
	}
	if !slices.Contains(p.YearOptions(), form.Year) {
		return &ValidationError{Field: "year", Message: "Select a year from the list."}
	}

	p.mu.Lock()
	p.form = form
	gen := p.fetch.begin()
	p.mu.Unlock()

	rep, err := p.backend.StudentsGrid(ctx, apiclient.GridFilter{Course: form.Course, Batch: form.Batch, Year: form.Year})

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fetch.finish(gen, err, "Failed to load grid.") || err != nil {
		return err
	}
	p.report = rep
	return nil
}

// ParseScore reads an inline score edit: empty clears, otherwise 0–100.
func ParseScore(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ValidationError{Field: "mockInterviewScore", Message: ScoreRangeMessage}
	}
	if err := check(scoreForm{MockInterviewScore: &n}); err != nil {
		return nil, err
	}
	return &n, nil
}

// SetScore saves an inline score edit and updates the shown row.
func (p *Grid) SetScore(ctx context.Context, studentID, raw string) error {
	score, err := ParseScore(raw)
	if err != nil {
		return err
	}
	if err := p.backend.PatchMockScore(ctx, studentID, score); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.report == nil {
		return nil
	}
	for i := range p.report.Students {
		if p.report.Students[i].ID == studentID {
			p.report.Students[i].MockInterviewScore = score
		}
	}
	return nil
}

// View returns a copy of the page state.
func (p *Grid) View() GridView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := GridView{
		Form:    p.form,
		Years:   p.YearOptions(),
		Courses: append([]apiclient.Course(nil), p.courses...),
		Loading: p.fetch.loading,
		Error:   p.fetch.err,
	}
	if p.report != nil {
		rep := *p.report
		rep.Students = append([]apiclient.GridStudent(nil), p.report.Students...)
		v.Report = &rep
	}
	return v
}
