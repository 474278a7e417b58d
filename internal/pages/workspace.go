package pages

import "courseattend/internal/apiclient"

// Backend is everything the staff pages call; *apiclient.Client satisfies it.
type Backend interface {
	StudentsBackend
	SessionsBackend
	ReportsBackend
	GridBackend
	DashboardBackend
}

// Workspace holds one signed-in user's pages so that selections and
// filters survive between requests.
type Workspace struct {
	Students  *Students
	Sessions  *Sessions
	Reports   *Reports
	Grid      *Grid
	Dashboard *Dashboard
}

// NewWorkspace builds every page over backend for a user with role.
func NewWorkspace(backend Backend, env Env, publicURL string) *Workspace {
	return &Workspace{
		Students:  NewStudents(backend, env),
		Sessions:  NewSessions(backend, env, publicURL),
		Reports:   NewReports(backend, env),
		Grid:      NewGrid(backend, env),
		Dashboard: NewDashboard(backend, env),
	}
}

var _ Backend = (*apiclient.Client)(nil)
