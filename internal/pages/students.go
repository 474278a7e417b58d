package pages

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"courseattend/internal/apiclient"
	"courseattend/internal/logger"
	"courseattend/internal/spreadsheet"
)

// StudentsBackend is the part of the API the roster page uses.
type StudentsBackend interface {
	ListCourses(ctx context.Context) ([]apiclient.Course, error)
	CreateCourse(ctx context.Context, name string) (*apiclient.Course, error)
	ListStudents(ctx context.Context, f apiclient.StudentFilter) ([]apiclient.Student, error)
	GetStudent(ctx context.Context, id string) (*apiclient.Student, error)
	CreateStudent(ctx context.Context, in apiclient.StudentInput) (*apiclient.Student, error)
	UpdateStudent(ctx context.Context, id string, in apiclient.StudentUpdate) (*apiclient.Student, error)
	DeleteStudent(ctx context.Context, id string) error
	BulkDeleteStudents(ctx context.Context, ids []string) (int, error)
	ImportStudents(ctx context.Context, filename string, data []byte) (*apiclient.ImportResult, error)
	StudentTemplate(ctx context.Context) (*apiclient.File, error)
}

// StudentForm is the add/edit form. The add form never carries a score.
type StudentForm struct {
	Name               string `json:"name" validate:"required"`
	Email              string `json:"email" validate:"required,email"`
	Phone              string `json:"phone" validate:"required"`
	Course             string `json:"course" validate:"required"`
	Batch              string `json:"batch" validate:"required"`
	MockInterviewScore *int   `json:"mockInterviewScore" validate:"omitempty,min=0,max=100"`
}

func (f StudentForm) input() apiclient.StudentInput {
	return apiclient.StudentInput{
		Name:   strings.TrimSpace(f.Name),
		Email:  strings.TrimSpace(f.Email),
		Phone:  strings.TrimSpace(f.Phone),
		Course: f.Course,
		Batch:  strings.TrimSpace(f.Batch),
	}
}

// StudentsView is the roster page as rendered.
type StudentsView struct {
	Filter     apiclient.StudentFilter `json:"filter"`
	Courses    []apiclient.Course      `json:"courses"`
	Students   []apiclient.Student     `json:"students"`
	Selected   []string                `json:"selected"`
	AllChecked bool                    `json:"allChecked"`
	CanEdit    bool                    `json:"canEdit"`
	Loading    bool                    `json:"loading"`
	Error      string                  `json:"error,omitempty"`
	Notice     string                  `json:"notice,omitempty"`
}

// Students is the roster page: filterable list, add/edit/delete, selection
// with bulk delete, spreadsheet import and template download.
type Students struct {
	backend StudentsBackend
	env     Env

	mu       sync.Mutex
	fetch    fetchState
	filter   apiclient.StudentFilter
	courses  []apiclient.Course
	students []apiclient.Student
	selected map[string]struct{}
	notice   string
}

func NewStudents(backend StudentsBackend, env Env) *Students {
	return &Students{backend: backend, env: env, selected: map[string]struct{}{}}
}

// Load fetches courses and the roster for the current filter.
func (p *Students) Load(ctx context.Context) error {
	courses, err := p.backend.ListCourses(ctx)
	if err != nil {
		p.mu.Lock()
		p.fetch.err = apiclient.Message(err, "Failed to load courses.")
		p.mu.Unlock()
		return err
	}
	p.mu.Lock()
	p.courses = courses
	p.mu.Unlock()
	return p.reload(ctx)
}

// SetFilter replaces the course/batch filter and reloads the roster.
func (p *Students) SetFilter(ctx context.Context, f apiclient.StudentFilter) error {
	p.mu.Lock()
	p.filter = apiclient.StudentFilter{Course: f.Course, Batch: strings.TrimSpace(f.Batch)}
	p.mu.Unlock()
	return p.reload(ctx)
}

func (p *Students) reload(ctx context.Context) error {
	p.mu.Lock()
	gen := p.fetch.begin()
	filter := p.filter
	p.mu.Unlock()

	students, err := p.backend.ListStudents(ctx, filter)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fetch.finish(gen, err, "Failed to load students.") {
		return nil
	}
	if err != nil {
		return err
	}
	p.students = students
	live := make(map[string]struct{}, len(p.selected))
	for _, s := range students {
		if _, ok := p.selected[s.ID]; ok {
			live[s.ID] = struct{}{}
		}
	}
	p.selected = live
	return nil
}

// Select adds or removes one student from the selection.
func (p *Students) Select(id string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.listed(id) {
		return
	}
	if on {
		p.selected[id] = struct{}{}
	} else {
		delete(p.selected, id)
	}
}

// SelectAll selects every listed student, or clears the selection.
func (p *Students) SelectAll(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = map[string]struct{}{}
	if !on {
		return
	}
	for _, s := range p.students {
		p.selected[s.ID] = struct{}{}
	}
}

// Selected returns the selected ids in sorted order.
func (p *Students) Selected() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectedLocked()
}

func (p *Students) selectedLocked() []string {
	ids := make([]string, 0, len(p.selected))
	for id := range p.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Students) listed(id string) bool {
	for _, s := range p.students {
		if s.ID == id {
			return true
		}
	}
	return false
}

// CourseForm adds a course.
type CourseForm struct {
	Name string `json:"name" validate:"required"`
}

// AddCourse creates a course and refreshes the course list.
func (p *Students) AddCourse(ctx context.Context, form CourseForm) (*apiclient.Course, error) {
	if !p.env.admin() {
		return nil, ErrForbidden
	}
	form.Name = strings.TrimSpace(form.Name)
	if err := check(form); err != nil {
		return nil, err
	}
	course, err := p.backend.CreateCourse(ctx, form.Name)
	if err != nil {
		return nil, err
	}
	courses, err := p.backend.ListCourses(ctx)
	if err != nil {
		return course, err
	}
	p.mu.Lock()
	p.courses = courses
	p.mu.Unlock()
	p.setNotice("Course added.")
	return course, nil
}

// Edit returns the edit form filled from the backend's current record.
func (p *Students) Edit(ctx context.Context, id string) (StudentForm, error) {
	if !p.env.admin() {
		return StudentForm{}, ErrForbidden
	}
	st, err := p.backend.GetStudent(ctx, id)
	if err != nil {
		return StudentForm{}, err
	}
	return StudentForm{
		Name:               st.Name,
		Email:              st.Email,
		Phone:              st.Phone,
		Course:             st.Course.ID,
		Batch:              st.Batch,
		MockInterviewScore: st.MockInterviewScore,
	}, nil
}

// Create adds a student. Any score on the form is ignored.
func (p *Students) Create(ctx context.Context, form StudentForm) (*apiclient.Student, error) {
	if !p.env.admin() {
		return nil, ErrForbidden
	}
	form.MockInterviewScore = nil
	if err := check(form); err != nil {
		return nil, err
	}
	st, err := p.backend.CreateStudent(ctx, form.input())
	if err != nil {
		return nil, err
	}
	p.setNotice("Student added.")
	return st, p.reload(ctx)
}

// Update replaces a student's details; a nil score clears it.
func (p *Students) Update(ctx context.Context, id string, form StudentForm) (*apiclient.Student, error) {
	if !p.env.admin() {
		return nil, ErrForbidden
	}
	if err := check(form); err != nil {
		return nil, err
	}
	st, err := p.backend.UpdateStudent(ctx, id, apiclient.StudentUpdate{
		StudentInput:       form.input(),
		MockInterviewScore: form.MockInterviewScore,
	})
	if err != nil {
		return nil, err
	}
	p.setNotice("Student updated.")
	return st, p.reload(ctx)
}

// Delete removes one student after confirmation.
func (p *Students) Delete(ctx context.Context, id string, confirm Confirmer) error {
	if !p.env.admin() {
		return ErrForbidden
	}
	if !confirm.Confirm(ctx, "Delete this student?") {
		return ErrCancelled
	}
	if err := p.backend.DeleteStudent(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.selected, id)
	p.mu.Unlock()
	p.setNotice("Student deleted.")
	return p.reload(ctx)
}

// BulkDelete removes every selected student in one request after
// confirmation. The selection is cleared only when the request succeeds.
func (p *Students) BulkDelete(ctx context.Context, confirm Confirmer) (int, error) {
	if !p.env.admin() {
		return 0, ErrForbidden
	}
	ids := p.Selected()
	if len(ids) == 0 {
		return 0, ErrNoSelection
	}
	if !confirm.Confirm(ctx, fmt.Sprintf("Delete %d selected student(s)?", len(ids))) {
		return 0, ErrCancelled
	}
	n, err := p.backend.BulkDeleteStudents(ctx, ids)
	if err != nil {
		return 0, err
	}
	logger.LogInfo("students bulk deleted", "requested", len(ids), "deleted", n)
	p.mu.Lock()
	p.selected = map[string]struct{}{}
	p.mu.Unlock()
	p.setNotice(fmt.Sprintf("Deleted %d student(s).", n))
	return n, p.reload(ctx)
}

// Import checks the workbook locally, uploads it and reloads the roster.
func (p *Students) Import(ctx context.Context, filename string, data []byte) (*apiclient.ImportResult, error) {
	if !p.env.admin() {
		return nil, ErrForbidden
	}
	sum, err := spreadsheet.InspectRoster(data)
	if err != nil {
		return nil, &ValidationError{Field: "file", Message: importMessage(err)}
	}
	logger.LogDebug("roster workbook accepted", "file", filename, "sheet", sum.Sheet, "rows", sum.Rows)
	res, err := p.backend.ImportStudents(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	p.setNotice(fmt.Sprintf("Import done: %d added, %d skipped.", res.Added, res.Skipped))
	return res, p.reload(ctx)
}

// Template downloads the import template from the backend.
func (p *Students) Template(ctx context.Context) (*apiclient.File, error) {
	return p.backend.StudentTemplate(ctx)
}

func (p *Students) setNotice(msg string) {
	p.mu.Lock()
	p.notice = msg
	p.mu.Unlock()
}

// View returns a copy of the page state.
func (p *Students) View() StudentsView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := StudentsView{
		Filter:   p.filter,
		Courses:  append([]apiclient.Course(nil), p.courses...),
		Students: append([]apiclient.Student(nil), p.students...),
		Selected: p.selectedLocked(),
		CanEdit:  p.env.admin(),
		Loading:  p.fetch.loading,
		Error:    p.fetch.err,
		Notice:   p.notice,
	}
	v.AllChecked = len(p.students) > 0 && len(p.selected) == len(p.students)
	return v
}

func importMessage(err error) string {
	var missing *spreadsheet.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return "The sheet is missing columns: " + strings.Join(missing.Columns, ", ") + "."
	case errors.Is(err, spreadsheet.ErrEmpty), errors.Is(err, spreadsheet.ErrNoSheet):
		return "The workbook has no rows to import."
	default:
		return "Select an .xlsx file exported from the template."
	}
}
