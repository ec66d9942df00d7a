// Package repotest provides in-memory repositories for service tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
)

// Users is an in-memory UserRepository
type Users struct {
	mu    sync.Mutex
	users []*model.User
	Err   error
}

func NewUsers(users ...*model.User) *Users {
	return &Users{users: users}
}

func (s *Users) Add(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

func (s *Users) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return
		}
	}
}

func (s *Users) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) ListPatients(_ context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*model.User
	for _, u := range s.users {
		if u.Role == model.RolePatient && u.Status != model.UserStatusInactive {
			out = append(out, u)
		}
	}
	return out, nil
}

// Vitals is an in-memory VitalsRepository. FailFor makes Append fail for
// the given patients.
type Vitals struct {
	mu       sync.Mutex
	readings []*model.VitalsReading
	FailFor  map[uuid.UUID]error
}

func NewVitals() *Vitals {
	return &Vitals{FailFor: map[uuid.UUID]error{}}
}

func (s *Vitals) Append(_ context.Context, r *model.VitalsReading) (*model.VitalsReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailFor[r.PatientID]; err != nil {
		return nil, err
	}
	stored := *r
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	s.readings = append(s.readings, &stored)
	return &stored, nil
}

func (s *Vitals) Latest(_ context.Context, patientID uuid.UUID) (*model.VitalsReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.VitalsReading
	for _, r := range s.readings {
		if r.PatientID == patientID && (latest == nil || r.RecordedAt.After(latest.RecordedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (s *Vitals) Range(_ context.Context, patientID uuid.UUID, start, end time.Time, limit int) ([]*model.VitalsReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.VitalsReading
	for _, r := range s.readings {
		if r.PatientID == patientID && !r.RecordedAt.Before(start) && !r.RecordedAt.After(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Vitals) Summarize(_ context.Context, patientID uuid.UUID, start, end time.Time) (*model.WindowSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var in []*model.VitalsReading
	for _, r := range s.readings {
		if r.PatientID == patientID && !r.RecordedAt.Before(start) && !r.RecordedAt.After(end) {
			in = append(in, r)
		}
	}
	return vitals.Aggregate(in), nil
}

// All returns every stored reading
func (s *Vitals) All() []*model.VitalsReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.VitalsReading(nil), s.readings...)
}

// Alerts is an in-memory AlertRepository that also records outbox events
type Alerts struct {
	mu     sync.Mutex
	alerts []*model.Alert
	events []*model.OutboxEvent
	Err    error
}

func NewAlerts() *Alerts {
	return &Alerts{}
}

func (s *Alerts) CreateWithEvent(_ context.Context, a *model.Alert, e *model.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	c := *a
	s.alerts = append(s.alerts, &c)
	if e != nil {
		s.events = append(s.events, e)
	}
	return nil
}

func (s *Alerts) Get(_ context.Context, id uuid.UUID) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Alerts) List(_ context.Context, f model.AlertFilter) ([]*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Since != nil && a.CreatedAt.Before(*f.Since) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Alerts) FindRecentOpen(_ context.Context, patientID uuid.UUID, t model.AlertType, parameter string, since time.Time) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.PatientID == patientID && a.Type == t && a.Details.Parameter == parameter &&
			a.Status.Open() && a.CreatedAt.After(since) {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Alerts) Transition(_ context.Context, t model.AlertTransition, eventType string) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID != t.AlertID {
			continue
		}
		allowed := false
		for _, from := range t.From {
			if a.Status == from {
				allowed = true
			}
		}
		if !allowed {
			return nil, repository.ErrStaleTransition
		}

		at := t.At
		a.Status = t.To
		a.UpdatedAt = at
		switch t.To {
		case model.AlertStatusAcknowledged:
			a.AcknowledgedBy, a.AcknowledgedAt = t.ActorID, &at
		case model.AlertStatusResolved:
			a.ResolvedBy, a.ResolvedAt, a.ResolutionNotes = t.ActorID, &at, t.Notes
		case model.AlertStatusEscalated:
			a.EscalatedBy, a.EscalatedAt, a.EscalationReason = t.ActorID, &at, t.Reason
		}
		if eventType != "" {
			e, err := model.NewAlertEvent(eventType, a, at)
			if err != nil {
				return nil, err
			}
			s.events = append(s.events, e)
		}
		c := *a
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Alerts) ListEscalationCandidates(_ context.Context, olderThan time.Time, severities []model.Severity, limit int) ([]*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Alert
	for _, a := range s.alerts {
		if a.Status != model.AlertStatusPending || a.CreatedAt.After(olderThan) {
			continue
		}
		for _, sev := range severities {
			if a.Severity == sev {
				c := *a
				out = append(out, &c)
				break
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Alerts) CountBySeverity(_ context.Context, patientID uuid.UUID, start, end time.Time) (map[model.Severity]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[model.Severity]int{}
	for _, sev := range model.Severities {
		counts[sev] = 0
	}
	for _, a := range s.alerts {
		if a.PatientID == patientID && !a.CreatedAt.Before(start) && !a.CreatedAt.After(end) {
			counts[a.Severity]++
		}
	}
	return counts, nil
}

func (s *Alerts) CountOpen(_ context.Context, patientID uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total, critical int
	for _, a := range s.alerts {
		if a.PatientID == patientID && a.Status != model.AlertStatusResolved {
			total++
			if a.Severity == model.SeverityCritical {
				critical++
			}
		}
	}
	return total, critical, nil
}

// All returns a snapshot of stored alerts in creation order
func (s *Alerts) All() []*model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		c := *a
		out = append(out, &c)
	}
	return out
}

// Events returns recorded outbox events in write order
func (s *Alerts) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.OutboxEvent(nil), s.events...)
}

// Outbox is an in-memory OutboxRepository
type Outbox struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutbox(events ...*model.OutboxEvent) *Outbox {
	return &Outbox{events: events}
}

func (s *Outbox) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range s.events {
		if e.Status == model.OutboxStatusPending {
			c := *e
			out = append(out, &c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Outbox) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.ID == id {
			now := time.Now().UTC()
			e.Status = model.OutboxStatusProcessed
			e.ProcessedAt = &now
			e.ErrorMessage = nil
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Outbox) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.ID == id {
			e.RetryCount++
			msg := errMsg
			e.ErrorMessage = &msg
			if e.RetryCount >= maxRetries {
				e.Status = model.OutboxStatusFailed
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Outbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*model.OutboxEvent
	var n int64
	for _, e := range s.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return n, nil
}

// Get returns the stored event with id
func (s *Outbox) Get(id uuid.UUID) *model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.ID == id {
			c := *e
			return &c
		}
	}
	return nil
}

var (
	_ repository.UserRepository   = (*Users)(nil)
	_ repository.VitalsRepository = (*Vitals)(nil)
	_ repository.AlertRepository  = (*Alerts)(nil)
	_ repository.OutboxRepository = (*Outbox)(nil)
)
