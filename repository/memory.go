package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

// The Memory* stores are in-process stand-ins for the MySQL repositories.
// They keep the same contracts (lifecycle filtering, unique grants, paired
// xp/level writes) and back DB_DRIVER=memory runs and tests.

type sequence struct {
	mu   sync.Mutex
	last uint
}

func (s *sequence) next(explicit uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if explicit != 0 {
		if explicit > s.last {
			s.last = explicit
		}
		return explicit
	}
	s.last++
	return s.last
}

type MemoryQuests struct {
	mu     sync.RWMutex
	seq    *sequence
	quests map[uint]models.Quest
}

func NewMemoryQuests() *MemoryQuests {
	seq := &sequence{}
	return &MemoryQuests{seq: seq, quests: make(map[uint]models.Quest)}
}

func (r *MemoryQuests) Create(_ context.Context, q *models.Quest) error {
	q.ID = r.seq.next(q.ID)
	if q.Status == "" {
		q.Status = models.QuestActive
	}
	now := time.Now()
	q.CreatedAt, q.UpdatedAt = now, now
	stored := *q
	stored.Steps = models.CloneSteps(q.Steps)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.quests[q.ID] = stored
	return nil
}

func (r *MemoryQuests) FindQuestWithDetails(_ context.Context, id uint) (models.QuestSnapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quests[id]
	if !ok || !q.RecordStatus.IsActive() {
		return models.QuestSnapshot{}, false, nil
	}
	return q.Snapshot(), true, nil
}

func (r *MemoryQuests) UpdateQuestSteps(_ context.Context, id uint, steps []models.Step) error {
	return r.update(id, func(q *models.Quest) { q.Steps = models.CloneSteps(steps) })
}

func (r *MemoryQuests) SetStatus(_ context.Context, id uint, status models.QuestStatus) error {
	return r.update(id, func(q *models.Quest) { q.Status = status })
}

func (r *MemoryQuests) Delete(_ context.Context, id uint) error {
	return r.update(id, func(q *models.Quest) { q.RecordStatus = models.Deleted })
}

func (r *MemoryQuests) update(id uint, fn func(*models.Quest)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quests[id]
	if !ok || !q.RecordStatus.IsActive() {
		return ErrNotFound
	}
	fn(&q)
	q.UpdatedAt = time.Now()
	r.quests[id] = q
	return nil
}

type contributerKey struct{ quest, user uint }

type MemoryContributers struct {
	mu   sync.RWMutex
	seq  *sequence
	rows map[contributerKey]models.QuestContributer
}

func NewMemoryContributers() *MemoryContributers {
	seq := &sequence{}
	return &MemoryContributers{seq: seq, rows: make(map[contributerKey]models.QuestContributer)}
}

func (r *MemoryContributers) Join(_ context.Context, questID, userID uint) (models.QuestContributer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := contributerKey{questID, userID}
	c, ok := r.rows[k]
	if ok && c.RecordStatus.IsActive() {
		return models.QuestContributer{}, ErrConflict
	}
	now := time.Now()
	if !ok {
		c = models.QuestContributer{ID: r.seq.next(0), QuestID: questID, UserID: userID, CreatedAt: now}
	}
	c.RecordStatus = models.Active
	c.Confirmed = false
	c.ConfirmedAt = nil
	c.UpdatedAt = now
	r.rows[k] = c
	return c, nil
}

func (r *MemoryContributers) Confirm(_ context.Context, questID, userID uint) error {
	return r.update(questID, userID, func(c *models.QuestContributer) {
		now := time.Now()
		c.Confirmed = true
		c.ConfirmedAt = &now
	})
}

func (r *MemoryContributers) Remove(_ context.Context, questID, userID uint) error {
	return r.update(questID, userID, func(c *models.QuestContributer) {
		c.RecordStatus = models.Deleted
		c.Confirmed = false
	})
}

func (r *MemoryContributers) update(questID, userID uint, fn func(*models.QuestContributer)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := contributerKey{questID, userID}
	c, ok := r.rows[k]
	if !ok || !c.RecordStatus.IsActive() {
		return ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now()
	r.rows[k] = c
	return nil
}

func (r *MemoryContributers) ConfirmedCount(ctx context.Context, questID uint) (int, error) {
	ids, err := r.ConfirmedUsers(ctx, questID)
	return len(ids), err
}

func (r *MemoryContributers) ConfirmedUsers(_ context.Context, questID uint) ([]uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uint
	for k, c := range r.rows {
		if k.quest == questID && c.RecordStatus.IsActive() && c.Confirmed {
			ids = append(ids, k.user)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type MemoryContributions struct {
	mu   sync.RWMutex
	seq  *sequence
	rows []models.Contribution
}

func NewMemoryContributions() *MemoryContributions {
	seq := &sequence{}
	return &MemoryContributions{seq: seq}
}

func (r *MemoryContributions) Add(_ context.Context, c *models.Contribution) error {
	c.ID = r.seq.next(c.ID)
	c.CreatedAt = time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *c)
	return nil
}

func (r *MemoryContributions) Sum(_ context.Context, questID uint, stepType models.StepType) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, c := range r.rows {
		if c.QuestID == questID && c.StepType == stepType && c.RecordStatus.IsActive() {
			total += c.Amount
		}
	}
	return total, nil
}

type grantKey struct{ user, achievement uint }

type MemoryAchievements struct {
	mu           sync.RWMutex
	seq          *sequence
	achievements map[uint]models.Achievement
	grants       map[grantKey]models.UserAchievement
}

func NewMemoryAchievements() *MemoryAchievements {
	seq := &sequence{}
	return &MemoryAchievements{
		seq:          seq,
		achievements: make(map[uint]models.Achievement),
		grants:       make(map[grantKey]models.UserAchievement),
	}
}

func (r *MemoryAchievements) Create(_ context.Context, a *models.Achievement) error {
	a.ID = r.seq.next(a.ID)
	a.CreatedAt = time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.achievements[a.ID] = *a
	return nil
}

func (r *MemoryAchievements) AssignToUser(_ context.Context, userID, achievementID, questID uint) (models.UserAchievement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.achievements[achievementID]
	if !ok || !a.RecordStatus.IsActive() {
		return models.UserAchievement{}, ErrNotFound
	}
	k := grantKey{userID, achievementID}
	if _, dup := r.grants[k]; dup {
		return models.UserAchievement{}, ErrConflict
	}
	g := models.UserAchievement{ID: r.seq.next(0), UserID: userID, AchievementID: achievementID, QuestID: questRef(questID), ReceivedAt: time.Now()}
	r.grants[k] = g
	return g, nil
}

func (r *MemoryAchievements) ListForUser(_ context.Context, userID uint) ([]models.UserAchievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.UserAchievement
	for k, g := range r.grants {
		if k.user == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryUsers struct {
	mu    sync.RWMutex
	seq   *sequence
	users map[uint]models.User
}

func NewMemoryUsers() *MemoryUsers {
	seq := &sequence{}
	return &MemoryUsers{seq: seq, users: make(map[uint]models.User)}
}

func (r *MemoryUsers) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	u.ID = r.seq.next(u.ID)
	if u.Level == 0 {
		u.Level = 1
	}
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUsers) Get(_ context.Context, id uint) (models.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok || !u.RecordStatus.IsActive() {
		return models.User{}, false, nil
	}
	return u, true, nil
}

func (r *MemoryUsers) GetExperience(ctx context.Context, id uint) (int, error) {
	u, ok, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	return u.Experience, nil
}

func (r *MemoryUsers) UpdateExperienceAndLevel(_ context.Context, id uint, experience, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.RecordStatus.IsActive() {
		return ErrNotFound
	}
	u.Experience, u.Level = experience, level
	r.users[id] = u
	return nil
}

func (r *MemoryUsers) AdjustExperience(_ context.Context, id uint, fn func(current int) (experience, level int)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.RecordStatus.IsActive() {
		return ErrNotFound
	}
	u.Experience, u.Level = fn(u.Experience)
	r.users[id] = u
	return nil
}
