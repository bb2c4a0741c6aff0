package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
)

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Safety.ExpiryDate = copyTime(p.Safety.ExpiryDate)
	c.Safety.Allergens = append([]string(nil), p.Safety.Allergens...)
	return &c
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	c.ThreadID = copyID(m.ThreadID)
	c.AcceptedAt = copyTime(m.AcceptedAt)
	c.ClosedAt = copyTime(m.ClosedAt)
	return &c
}

func copyEvent(e *models.MatchEvent) *models.MatchEvent {
	c := *e
	c.ActorID = copyID(e.ActorID)
	return &c
}

func copyThread(t *models.Thread) *models.Thread {
	c := *t
	c.RefID = copyID(t.RefID)
	c.LastMessageAt = copyTime(t.LastMessageAt)
	c.Participants = append([]uuid.UUID(nil), t.Participants...)
	return &c
}

func copyParticipant(p *models.ThreadParticipant) *models.ThreadParticipant {
	c := *p
	c.LastReadAt = copyTime(p.LastReadAt)
	return &c
}

func copyMessage(m *models.Message) *models.Message {
	c := *m
	c.SenderID = copyID(m.SenderID)
	return &c
}

func copyMembership(m *models.Membership) *models.Membership {
	c := *m
	return &c
}

func copyReport(r *models.Report) *models.Report {
	c := *r
	c.ResolvedBy = copyID(r.ResolvedBy)
	c.ResolvedAt = copyTime(r.ResolvedAt)
	return &c
}

func copyAction(a *models.ModerationAction) *models.ModerationAction {
	c := *a
	c.ModeratorID = copyID(a.ModeratorID)
	c.ReportID = copyID(a.ReportID)
	c.ExpiresAt = copyTime(a.ExpiresAt)
	if a.DurationDays != nil {
		d := *a.DurationDays
		c.DurationDays = &d
	}
	return &c
}
