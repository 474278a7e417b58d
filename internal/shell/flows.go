package shell

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"courseattend/internal/apiclient"
	"courseattend/internal/checkin"
	"courseattend/internal/logger"
	"courseattend/internal/metrics"
	"courseattend/internal/visits"
)

// flow is one visitor's hosted check-in.
type flow struct {
	id      string
	ctrl    *checkin.Controller
	started time.Time

	mu       sync.Mutex
	recorded checkin.State
}

// positionReport is what the browser's geolocation call produced.
type positionReport struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Unsupported bool     `json:"unsupported"`
	Error       *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p positionReport) locator() (checkin.Locator, bool) {
	switch {
	case p.Unsupported:
		return checkin.Reported{Err: checkin.ErrUnsupported}, true
	case p.Error != nil:
		return checkin.Reported{Err: &checkin.GeoError{Code: checkin.GeoErrorCode(p.Error.Code), Message: p.Error.Message}}, true
	case p.Lat != nil && p.Lng != nil:
		return checkin.Reported{Coords: apiclient.Coords{Lat: *p.Lat, Lng: *p.Lng}}, true
	}
	return nil, false
}

// Bootstrap hands the check-in page the geolocation options and copy it
// must use before it reports a position.
func (s *Server) Bootstrap(c *gin.Context) {
	msgs := checkin.DefaultMessages(s.cfg.CampusName)
	o := s.geoOptions()
	c.JSON(http.StatusOK, gin.H{
		"slug":   c.Param("slug"),
		"campus": s.cfg.CampusName,
		"geolocation": gin.H{
			"enableHighAccuracy": o.HighAccuracy,
			"timeout":            o.Timeout.Milliseconds(),
			"maximumAge":         o.MaximumAge.Milliseconds(),
		},
		"messages": gin.H{
			"locationUnsupported": msgs.LocationUnsupported,
			"locationDenied":      msgs.LocationDenied,
			"locationFailed":      msgs.LocationFailed,
		},
	})
}

// StartFlow creates a flow for the slug from the reported position and runs
// it up to the session lookup.
func (s *Server) StartFlow(c *gin.Context) {
	var req positionReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	loc, ok := req.locator()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report a position, an error or unsupported"})
		return
	}
	f := s.newFlow(c.Param("slug"), loc)
	snap := f.ctrl.Start(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"flowId": f.id, "flow": snap})
}

// geoOptions are the geolocation options handed to the browser and enforced
// by each flow.
func (s *Server) geoOptions() checkin.Options {
	o := checkin.DefaultOptions
	if s.cfg.GeoTimeout > 0 {
		o.Timeout = s.cfg.GeoTimeout
	}
	if s.cfg.GeoMaximumAge > 0 {
		o.MaximumAge = s.cfg.GeoMaximumAge
	}
	return o
}

func (s *Server) newFlow(slug string, loc checkin.Locator) *flow {
	f := &flow{id: uuid.NewString(), started: s.clock.Now()}
	f.ctrl = checkin.NewController(slug, s.api, loc,
		checkin.WithClock(s.clock),
		checkin.WithOptions(s.geoOptions()),
		checkin.WithMessages(checkin.DefaultMessages(s.cfg.CampusName)),
		checkin.WithObserver(observeTransition),
		checkin.WithObserver(func(t checkin.Transition) {
			if t.To.Terminal() {
				s.recordVisit(f, false)
			}
		}),
	)
	s.flows.put(f.id, f)
	metrics.ActiveFlows.Inc()
	return f
}

func (s *Server) lookupFlow(c *gin.Context) (*flow, bool) {
	f, ok := s.flows.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Check-in expired. Reload the link to start again."})
		return nil, false
	}
	return f, true
}

func (s *Server) FlowSnapshot(c *gin.Context) {
	f, ok := s.lookupFlow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"flowId": f.id, "flow": f.ctrl.Snapshot()})
}

// RelocateFlow restarts the flow from a new position report.
func (s *Server) RelocateFlow(c *gin.Context) {
	f, ok := s.lookupFlow(c)
	if !ok {
		return
	}
	var req positionReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	loc, ok := req.locator()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report a position, an error or unsupported"})
		return
	}
	snap := f.ctrl.Relocate(c.Request.Context(), loc)
	c.JSON(http.StatusOK, gin.H{"flowId": f.id, "flow": snap})
}

type phoneRequest struct {
	Phone *string `json:"phone"`
}

func (s *Server) SetFlowPhone(c *gin.Context) {
	f, ok := s.lookupFlow(c)
	if !ok {
		return
	}
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}
	s.flowResult(c, f, f.ctrl.SetPhone(*req.Phone))
}

// ContinueFlow resolves the visitor from the phone, optionally given in the body.
func (s *Server) ContinueFlow(c *gin.Context) {
	f, ok := s.lookupFlow(c)
	if !ok {
		return
	}
	var req phoneRequest
	if !bindOptional(c, &req) {
		return
	}
	if req.Phone != nil {
		if err := f.ctrl.SetPhone(*req.Phone); err != nil {
			s.flowResult(c, f, err)
			return
		}
	}
	s.flowResult(c, f, f.ctrl.Continue(c.Request.Context()))
}

type markRequest struct {
	Status apiclient.MarkStatus `json:"status"`
}

func (s *Server) MarkFlow(c *gin.Context) {
	f, ok := s.lookupFlow(c)
	if !ok {
		return
	}
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	s.flowResult(c, f, f.ctrl.Mark(c.Request.Context(), req.Status))
}

// CloseFlow ends the flow when the visitor leaves the page.
func (s *Server) CloseFlow(c *gin.Context) {
	f, ok := s.flows.remove(c.Param("id"))
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	s.endFlow(f)
	c.Status(http.StatusNoContent)
}

// flowResult answers with the snapshot and a status matching err.
func (s *Server) flowResult(c *gin.Context, f *flow, err error) {
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, checkin.ErrPhoneRequired), errors.Is(err, checkin.ErrInvalidStatus):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, checkin.ErrIdentityNotFound):
		status = http.StatusNotFound
	case errors.Is(err, checkin.ErrSubmission):
		status = http.StatusBadGateway
	case errors.Is(err, checkin.ErrWindowClosed), errors.Is(err, checkin.ErrAlreadyMarked),
		errors.Is(err, checkin.ErrInvalidState), errors.Is(err, checkin.ErrBusy), errors.Is(err, checkin.ErrStale):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"flowId": f.id, "flow": f.ctrl.Snapshot()})
}

func (s *Server) evictFlow(_ string, f *flow) {
	s.endFlow(f)
}

func (s *Server) endFlow(f *flow) {
	f.ctrl.Close()
	metrics.ActiveFlows.Dec()
	s.recordVisit(f, true)
}

func (s *Server) closeFlows() {
	for {
		var ids []string
		s.flows.mu.Lock()
		for id := range s.flows.entries {
			ids = append(ids, id)
		}
		s.flows.mu.Unlock()
		if len(ids) == 0 {
			return
		}
		for _, id := range ids {
			if f, ok := s.flows.remove(id); ok {
				s.endFlow(f)
			}
		}
	}
}

// recordVisit publishes the flow's outcome once per terminal state. When
// closing, a flow that never reached a terminal state is recorded as it
// stands.
func (s *Server) recordVisit(f *flow, closing bool) {
	if s.recorder == nil {
		return
	}
	snap := f.ctrl.Snapshot()
	f.mu.Lock()
	if f.recorded == snap.State || (closing && f.recorded != "") {
		f.mu.Unlock()
		return
	}
	f.recorded = snap.State
	f.mu.Unlock()

	v := visits.Visit{
		FlowID:    f.id,
		Slug:      f.ctrl.Slug(),
		State:     string(snap.State),
		ErrorKind: string(snap.Error),
		Status:    string(snap.Marked),
		StartedAt: f.started,
		EndedAt:   s.clock.Now(),
	}
	if snap.Student != nil {
		v.StudentID = snap.Student.StudentID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, v); err != nil {
		logger.LogError("visit publish failed", err, "flow_id", f.id, "slug", f.ctrl.Slug())
	}
}
