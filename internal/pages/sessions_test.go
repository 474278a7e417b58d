package pages

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"courseattend/internal/apiclient"
)

var pageNow = time.Date(2026, 10, 5, 9, 1, 0, 0, time.UTC)

func fixedEnv(role apiclient.Role) Env {
	return Env{Role: role, Now: func() time.Time { return pageNow }}
}

func TestSessionsRowsCarryStatusAndLink(t *testing.T) {
	api := &fakeAPI{sessions: []apiclient.Session{
		{Slug: "old", OpensAt: pageNow.Add(-time.Hour), ClosesAt: pageNow.Add(-58 * time.Minute)},
		{Slug: "batch1-oct5", OpensAt: pageNow.Add(-time.Minute), ClosesAt: pageNow.Add(time.Minute)},
		{Slug: "later", OpensAt: pageNow.Add(time.Hour), ClosesAt: pageNow.Add(time.Hour + 2*time.Minute)},
	}}
	p := NewSessions(api, fixedEnv(apiclient.RoleAdmin), "https://attend.example.com/")
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v := p.View()
	if v.CanCreate {
		t.Fatal("admins only view sessions")
	}
	want := []struct {
		slug   string
		status apiclient.SessionStatus
	}{
		{"later", apiclient.SessionScheduled},
		{"batch1-oct5", apiclient.SessionOpen},
		{"old", apiclient.SessionExpired},
	}
	for i, w := range want {
		row := v.Sessions[i]
		if row.Slug != w.slug || row.Status != w.status {
			t.Fatalf("row %d = %s/%s, want %s/%s", i, row.Slug, row.Status, w.slug, w.status)
		}
	}
	if v.Sessions[1].Link != "https://attend.example.com/attend/batch1-oct5" {
		t.Fatalf("link = %q", v.Sessions[1].Link)
	}
}

func TestSessionsCreateIsTrainerOnly(t *testing.T) {
	api := &fakeAPI{}
	admin := NewSessions(api, fixedEnv(apiclient.RoleAdmin), "http://x")
	if _, err := admin.Create(context.Background(), SessionForm{Course: "c1", Batch: "B1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin Create = %v", err)
	}

	trainer := NewSessions(api, fixedEnv(apiclient.RoleTrainer), "http://x")
	_, err := trainer.Create(context.Background(), SessionForm{Course: "c1", Batch: "  "})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "Batch is required." {
		t.Fatalf("blank batch = %v", err)
	}
	row, err := trainer.Create(context.Background(), SessionForm{Course: "c1", Batch: "B1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.Link != "http://x/attend/new-slug" || len(api.sessionReqs) != 1 {
		t.Fatalf("row = %+v reqs = %v", row, api.sessionReqs)
	}
	if v := trainer.View(); v.Created == nil || len(v.Sessions) != 1 {
		t.Fatalf("view = %+v", v)
	}
}

func TestSessionQRCodeIsPNG(t *testing.T) {
	p := NewSessions(&fakeAPI{}, fixedEnv(apiclient.RoleTrainer), "http://x")
	png, err := p.QRCode("batch1-oct5", 0)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("not a PNG")
	}
}
