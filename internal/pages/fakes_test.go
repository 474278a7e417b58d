package pages

import (
	"context"
	"sync"

	"courseattend/internal/apiclient"
)

type fakeAPI struct {
	mu        sync.Mutex
	courses   []apiclient.Course
	students  []apiclient.Student
	sessions  []apiclient.Session
	analytics []apiclient.AnalyticsRow
	grid      *apiclient.GridReport
	daily     *apiclient.DailyReport
	listErr   error
	bulkErr   error

	listCalls   int
	filters     []apiclient.StudentFilter
	created     []apiclient.StudentInput
	updated     []apiclient.StudentUpdate
	deleted     []string
	bulkCalls   [][]string
	imports     []string
	sessionReqs [][2]string
	dates       []string
	analyticsQ  []apiclient.AnalyticsFilter
	exports     []apiclient.AnalyticsFilter
	gridQ       []apiclient.GridFilter
	scores      map[string]*int
	newCourses  []string
	summaries   []apiclient.AnalyticsFilter
}

func (f *fakeAPI) ListCourses(context.Context) ([]apiclient.Course, error) {
	return f.courses, nil
}

func (f *fakeAPI) CreateCourse(_ context.Context, name string) (*apiclient.Course, error) {
	f.newCourses = append(f.newCourses, name)
	c := apiclient.Course{ID: "c-" + name, Name: name}
	f.courses = append(f.courses, c)
	return &c, nil
}

func (f *fakeAPI) GetStudent(_ context.Context, id string) (*apiclient.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if s.ID == id {
			st := s
			return &st, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Message: "Student not found"}
}

func (f *fakeAPI) ListStudents(_ context.Context, flt apiclient.StudentFilter) ([]apiclient.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.filters = append(f.filters, flt)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]apiclient.Student(nil), f.students...), nil
}

func (f *fakeAPI) CreateStudent(_ context.Context, in apiclient.StudentInput) (*apiclient.Student, error) {
	f.created = append(f.created, in)
	st := apiclient.Student{ID: "new", Name: in.Name, Phone: in.Phone}
	f.students = append(f.students, st)
	return &st, nil
}

func (f *fakeAPI) UpdateStudent(_ context.Context, id string, in apiclient.StudentUpdate) (*apiclient.Student, error) {
	f.updated = append(f.updated, in)
	return &apiclient.Student{ID: id, Name: in.Name, MockInterviewScore: in.MockInterviewScore}, nil
}

func (f *fakeAPI) DeleteStudent(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	f.remove(id)
	return nil
}

func (f *fakeAPI) BulkDeleteStudents(_ context.Context, ids []string) (int, error) {
	f.bulkCalls = append(f.bulkCalls, append([]string(nil), ids...))
	if f.bulkErr != nil {
		return 0, f.bulkErr
	}
	for _, id := range ids {
		f.remove(id)
	}
	return len(ids), nil
}

func (f *fakeAPI) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.students[:0]
	for _, s := range f.students {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.students = kept
}

func (f *fakeAPI) ImportStudents(_ context.Context, name string, _ []byte) (*apiclient.ImportResult, error) {
	f.imports = append(f.imports, name)
	return &apiclient.ImportResult{Added: 2, Skipped: 1}, nil
}

func (f *fakeAPI) StudentTemplate(context.Context) (*apiclient.File, error) {
	return &apiclient.File{Name: "students-template.xlsx", Data: []byte{1}}, nil
}

func (f *fakeAPI) ListSessions(context.Context) ([]apiclient.Session, error) {
	return f.sessions, nil
}

func (f *fakeAPI) CreateSession(_ context.Context, course, batch string) (*apiclient.Session, error) {
	f.sessionReqs = append(f.sessionReqs, [2]string{course, batch})
	s := apiclient.Session{Slug: "new-slug", Batch: batch, Course: apiclient.CourseRef{ID: course}}
	f.sessions = append(f.sessions, s)
	return &s, nil
}

func (f *fakeAPI) DailyReport(_ context.Context, date string) (*apiclient.DailyReport, error) {
	f.dates = append(f.dates, date)
	if f.daily == nil {
		return &apiclient.DailyReport{}, nil
	}
	return f.daily, nil
}

func (f *fakeAPI) Analytics(_ context.Context, flt apiclient.AnalyticsFilter) ([]apiclient.AnalyticsRow, error) {
	f.analyticsQ = append(f.analyticsQ, flt)
	return f.analytics, nil
}

func (f *fakeAPI) ExportAttendance(_ context.Context, flt apiclient.AnalyticsFilter) (*apiclient.File, error) {
	f.exports = append(f.exports, flt)
	return &apiclient.File{Name: "attendance.xlsx"}, nil
}

func (f *fakeAPI) ExportReport(_ context.Context, flt apiclient.AnalyticsFilter) (*apiclient.File, error) {
	f.summaries = append(f.summaries, flt)
	return &apiclient.File{Name: "report-export.xlsx"}, nil
}

func (f *fakeAPI) StudentsGrid(_ context.Context, flt apiclient.GridFilter) (*apiclient.GridReport, error) {
	f.gridQ = append(f.gridQ, flt)
	if f.grid == nil {
		return &apiclient.GridReport{Year: flt.Year}, nil
	}
	return f.grid, nil
}

func (f *fakeAPI) PatchMockScore(_ context.Context, id string, score *int) error {
	if f.scores == nil {
		f.scores = map[string]*int{}
	}
	f.scores[id] = score
	return nil
}

var _ Backend = (*fakeAPI)(nil)
