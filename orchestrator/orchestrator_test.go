package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/cache"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/leveling"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/progress"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingGranter struct{}

func (failingGranter) AssignToUser(context.Context, uint, uint, uint) (models.UserAchievement, error) {
	return models.UserAchievement{}, errors.New("deadlock found when trying to get lock")
}

type harness struct {
	stores         repository.Stores
	questBus       *events.Bus
	achievementBus *events.Bus
	kv             *cache.MemoryStore
	logs           *syncBuffer
	orch           *Orchestrator
}

func newHarness(t *testing.T, granter AchievementGranter) *harness {
	t.Helper()
	logs := &syncBuffer{}
	logger := log.New(logs, "", 0)
	h := &harness{
		stores:         repository.NewMemoryStores(),
		questBus:       events.NewBus("quest", logger),
		achievementBus: events.NewBus("achievement", logger),
		kv:             cache.NewMemoryStore(),
		logs:           logs,
	}
	t.Cleanup(func() {
		h.questBus.Close()
		h.achievementBus.Close()
	})
	if granter == nil {
		granter = h.stores.Achievements
	}
	agg := progress.NewAggregator(h.stores.Quests, h.stores.Contributers, h.stores.Contributions, h.questBus, logger)
	h.orch = New(Deps{
		QuestBus:       h.questBus,
		AchievementBus: h.achievementBus,
		Achievements:   granter,
		Progress:       agg,
		Cache:          cache.NewQuestCache(h.kv, h.stores.Quests, agg, time.Minute, logger),
		Experience:     leveling.NewService(h.stores.Users, logger),
		Logger:         logger,
	})
	return h
}

func (h *harness) achievement(t *testing.T) uint {
	t.Helper()
	a := models.Achievement{Title: "Helping hand"}
	require.NoError(t, h.stores.Achievements.Create(context.Background(), &a))
	return a.ID
}

func (h *harness) user(t *testing.T) uint {
	t.Helper()
	u := models.User{Name: "Vera", Email: "vera@example.com"}
	require.NoError(t, h.stores.Users.Create(context.Background(), &u))
	return u.ID
}

func completed(questID, userID, achievementID uint, reward int) events.Event {
	data := map[string]interface{}{"experienceReward": reward}
	if achievementID != 0 {
		data["achievementId"] = achievementID
	}
	return events.New(events.QuestCompleted, questID, userID, data)
}

func TestHandleQuestCompleted_AwardsOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	achievementID := h.achievement(t)
	sub := h.achievementBus.Subscribe(events.OfType(events.AchievementAwarded))
	defer sub.Unsubscribe()

	assert.Equal(t, Awarded, h.orch.HandleQuestCompleted(ctx, completed(3, 11, achievementID, 120)))
	assert.Equal(t, AlreadyAwarded, h.orch.HandleQuestCompleted(ctx, completed(3, 11, achievementID, 120)))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, uint(11), ev.UserID)
		got, ok := ev.Uint("achievementId")
		assert.True(t, ok)
		assert.Equal(t, achievementID, got)
		assert.Equal(t, 120, ev.Int("experienceReward"))
	case <-time.After(time.Second):
		t.Fatal("achievement_awarded not delivered")
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected second award: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	grants, err := h.stores.Achievements.ListForUser(ctx, 11)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.NotNil(t, grants[0].QuestID)
	assert.Equal(t, uint(3), *grants[0].QuestID)
	assert.Empty(t, h.logs.String())
}

func TestHandleQuestCompleted_Outcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("no achievement", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.Equal(t, NoAchievement, h.orch.HandleQuestCompleted(ctx, completed(1, 2, 0, 50)))
	})

	t.Run("unknown achievement warns", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.Equal(t, Skipped, h.orch.HandleQuestCompleted(ctx, completed(1, 2, 999, 50)))
		assert.Contains(t, h.logs.String(), "[warn]")
		assert.Contains(t, h.logs.String(), "achievement 999")
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t, failingGranter{})
		assert.Equal(t, Failed, h.orch.HandleQuestCompleted(ctx, completed(1, 2, 5, 50)))
		assert.Contains(t, h.logs.String(), "deadlock")
		assert.NotContains(t, h.logs.String(), "[warn]")
	})
}

func TestStart_CompletionGrantsExperienceThroughAward(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.orch.Start()
	defer h.orch.Stop()

	achievementID := h.achievement(t)
	userID := h.user(t)

	h.questBus.Publish(completed(4, userID, achievementID, 160))
	h.questBus.Publish(completed(4, userID, achievementID, 160))

	require.Eventually(t, func() bool {
		xp, err := h.stores.Users.GetExperience(ctx, userID)
		return err == nil && xp == 160
	}, time.Second, 5*time.Millisecond)

	h.questBus.Close()
	h.achievementBus.Close()
	u, _, err := h.stores.Users.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 160, u.Experience)
	assert.Equal(t, 2, u.Level)
}

func TestStart_CompletionWithoutAchievementGrantsNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.orch.Start()
	userID := h.user(t)

	h.questBus.Publish(completed(4, userID, 0, 500))
	h.questBus.Close()
	h.achievementBus.Close()

	xp, err := h.stores.Users.GetExperience(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, xp)
}

func TestStart_ProgressChangeSyncsAndRefreshesCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.orch.Start()
	defer h.orch.Stop()

	target := 10
	q := models.Quest{Title: "Beach cleanup", Steps: []models.Step{
		{Type: models.StepContributers, Requirement: &models.Requirement{TargetValue: &target}},
	}}
	require.NoError(t, h.stores.Quests.Create(ctx, &q))

	for _, u := range []uint{21, 22, 23} {
		_, err := h.stores.Contributers.Join(ctx, q.ID, u)
		require.NoError(t, err)
		require.NoError(t, h.stores.Contributers.Confirm(ctx, q.ID, u))
	}
	h.questBus.Publish(events.New(events.ContributerAdded, q.ID, 23, nil))

	require.Eventually(t, func() bool {
		_, err := h.kv.Get(ctx, cache.Key(q.ID))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	snap, ok, err := h.stores.Quests.FindQuestWithDetails(ctx, q.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, snap.Steps[0].Requirement.CurrentValue)
}

func TestHandleProgressChange_ValidationIsLoggedAsWarning(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	q := models.Quest{Title: "Book drive", Steps: []models.Step{{Type: models.StepNoRequired}}}
	require.NoError(t, h.stores.Quests.Create(ctx, &q))

	assert.NotPanics(t, func() {
		h.orch.HandleProgressChange(ctx, events.New(events.CheckinConfirmed, q.ID, 1, nil))
	})
	assert.Contains(t, h.logs.String(), "[warn]")
	assert.Contains(t, h.logs.String(), "step not found")

	_, err := h.kv.Get(ctx, cache.Key(q.ID))
	assert.NoError(t, err)
}

func TestHandleProgressChange_UsesEventStepType(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	target := 500
	q := models.Quest{Title: "Fundraiser", Steps: []models.Step{
		{Type: models.StepFinance, Requirement: &models.Requirement{TargetValue: &target}},
	}}
	require.NoError(t, h.stores.Quests.Create(ctx, &q))
	require.NoError(t, h.stores.Contributions.Add(ctx, &models.Contribution{QuestID: q.ID, StepType: models.StepFinance, UserID: 1, Amount: 125}))

	h.orch.HandleProgressChange(ctx, events.New(events.StepVolunteerAdded, q.ID, 1, map[string]interface{}{"stepType": "finance"}))

	snap, _, err := h.stores.Quests.FindQuestWithDetails(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 125, snap.Steps[0].Requirement.CurrentValue)
	assert.Empty(t, h.logs.String())
}

func TestStop_Unsubscribes(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.Start()
	h.orch.Stop()

	achievementID := h.achievement(t)
	h.questBus.Publish(completed(1, 2, achievementID, 10))
	h.questBus.Close()

	grants, err := h.stores.Achievements.ListForUser(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "already_awarded", AlreadyAwarded.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
