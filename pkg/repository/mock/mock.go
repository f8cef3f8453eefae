package mock

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

// Store is an in-memory implementation of every repository interface, used by
// unit tests that do not need SQLite.
type Store struct {
	mu sync.Mutex

	nextID    int64
	Users     map[int64]*models.User
	Events    []models.EngagementEvent
	Snapshots map[string]*models.DailySnapshot // keyed by userID/date
	Alerts    map[int64]*models.BehaviorAlert
	Schemas   map[string]models.EventSchema

	// error injection
	SnapshotErr error
	AlertErr    error
}

var _ repository.UserRepo = (*Store)(nil)
var _ repository.EventRepo = (*Store)(nil)
var _ repository.SnapshotRepo = (*Store)(nil)
var _ repository.AlertRepo = (*Store)(nil)
var _ repository.SchemaRepo = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		Users:     make(map[int64]*models.User),
		Snapshots: make(map[string]*models.DailySnapshot),
		Alerts:    make(map[int64]*models.BehaviorAlert),
		Schemas:   make(map[string]models.EventSchema),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func snapKey(userID int64, date string) string {
	return strconv.FormatInt(userID, 10) + "/" + date
}

// SeedSnapshot places a snapshot directly into the store, bypassing the
// upsert, for tests that need prior-day state.
func (s *Store) SeedSnapshot(snap *models.DailySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.ID == 0 {
		snap.ID = s.id()
	}
	cp := *snap
	s.Snapshots[snapKey(snap.UserID, snap.SnapshotDate)] = &cp
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	cp.ID = s.id()
	s.Users[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.Users {
		if models.NormalizeRole(u.Role) == models.NormalizeRole(role) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, e *models.EngagementEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.ID = s.id()
	s.Events = append(s.Events, cp)
	return cp.ID, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.EngagementEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.EngagementEvent
	for _, e := range s.Events {
		if e.UserID == userID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OccurredAt > all[j].OccurredAt })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) CountByUser(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.Events {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListByTypesSince(ctx context.Context, types []string, since int64) ([]models.EngagementEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []models.EngagementEvent
	for _, e := range s.Events {
		if want[e.Type] && e.OccurredAt >= since {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt > out[j].OccurredAt })
	return out, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snap *models.DailySnapshot) (int64, error) {
	if s.SnapshotErr != nil {
		return 0, s.SnapshotErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snapKey(snap.UserID, snap.SnapshotDate)
	if old, ok := s.Snapshots[key]; ok {
		snap.ID = old.ID
	} else {
		snap.ID = s.id()
	}
	cp := *snap
	s.Snapshots[key] = &cp
	return cp.ID, nil
}

func (s *Store) GetSnapshot(ctx context.Context, userID int64, dateKey string) (*models.DailySnapshot, error) {
	if s.SnapshotErr != nil {
		return nil, s.SnapshotErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.Snapshots[snapKey(userID, dateKey)]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (s *Store) GetLatestSnapshot(ctx context.Context, userID int64) (*models.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.DailySnapshot
	for _, snap := range s.Snapshots {
		if snap.UserID != userID {
			continue
		}
		if latest == nil || snap.SnapshotDate > latest.SnapshotDate {
			latest = snap
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) GetSnapshotBefore(ctx context.Context, userID int64, dateKey string) (*models.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.DailySnapshot
	for _, snap := range s.Snapshots {
		if snap.UserID != userID || snap.SnapshotDate >= dateKey {
			continue
		}
		if best == nil || snap.SnapshotDate > best.SnapshotDate {
			best = snap
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *Store) ListUserSnapshots(ctx context.Context, userID int64, fromDate, toDate string) ([]models.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DailySnapshot
	for _, snap := range s.Snapshots {
		if snap.UserID == userID && snap.SnapshotDate >= fromDate && snap.SnapshotDate <= toDate {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate < out[j].SnapshotDate })
	return out, nil
}

func (s *Store) ListSnapshotsByDate(ctx context.Context, dateKey string) ([]models.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DailySnapshot
	for _, snap := range s.Snapshots {
		if snap.SnapshotDate == dateKey {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) ListSnapshotsRange(ctx context.Context, fromDate, toDate string) ([]models.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DailySnapshot
	for _, snap := range s.Snapshots {
		if snap.SnapshotDate >= fromDate && snap.SnapshotDate <= toDate {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate < out[j].SnapshotDate })
	return out, nil
}

func (s *Store) EnsureOpenAlert(ctx context.Context, a *models.BehaviorAlert) (*models.BehaviorAlert, error) {
	if s.AlertErr != nil {
		return nil, s.AlertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Alerts {
		if existing.UserID == a.UserID && existing.SnapshotDate == a.SnapshotDate &&
			existing.Type == a.Type && existing.Status == models.AlertOpen {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *a
	cp.ID = s.id()
	cp.Status = models.AlertOpen
	s.Alerts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetAlertByID(ctx context.Context, id int64) (*models.BehaviorAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAlerts(ctx context.Context, status string, userID int64, limit int) ([]models.BehaviorAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BehaviorAlert
	for _, a := range s.Alerts {
		if status != "" && a.Status != status {
			continue
		}
		if userID != 0 && a.UserID != userID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AcknowledgeAlert(ctx context.Context, id int64, ackAt int64) (*models.BehaviorAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if a.Status == models.AlertOpen {
		a.Status = models.AlertAcknowledged
		a.AcknowledgedAt = &ackAt
	}
	cp := *a
	return &cp, nil
}

func (s *Store) UpsertEventSchema(ctx context.Context, eventType, version, schemaJSON string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.Schemas[eventType]
	if !ok {
		es = models.EventSchema{ID: s.id(), EventType: eventType}
	}
	es.Version = version
	es.SchemaJSON = schemaJSON
	s.Schemas[eventType] = es
	return es.ID, nil
}

func (s *Store) ListEventSchemas(ctx context.Context) ([]models.EventSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EventSchema
	for _, es := range s.Schemas {
		out = append(out, es)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
