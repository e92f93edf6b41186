package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/events"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/repository"
)

type countingQuests struct {
	*repository.MemoryQuests
	finds  int
	writes int
}

func (c *countingQuests) FindQuestWithDetails(ctx context.Context, id uint) (models.QuestSnapshot, bool, error) {
	c.finds++
	return c.MemoryQuests.FindQuestWithDetails(ctx, id)
}

func (c *countingQuests) UpdateQuestSteps(ctx context.Context, id uint, steps []models.Step) error {
	c.writes++
	return c.MemoryQuests.UpdateQuestSteps(ctx, id, steps)
}

type fixture struct {
	quests        *countingQuests
	contributers  *repository.MemoryContributers
	contributions *repository.MemoryContributions
	bus           *events.Bus
	agg           *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		quests:        &countingQuests{MemoryQuests: repository.NewMemoryQuests()},
		contributers:  repository.NewMemoryContributers(),
		contributions: repository.NewMemoryContributions(),
		bus:           events.NewBus("quest", nil),
	}
	t.Cleanup(f.bus.Close)
	f.agg = NewAggregator(f.quests, f.contributers, f.contributions, f.bus, nil)
	return f
}

func target(v int) *models.Requirement {
	return &models.Requirement{TargetValue: &v}
}

func (f *fixture) quest(t *testing.T, steps ...models.Step) uint {
	t.Helper()
	q := models.Quest{Title: "Plant trees", Steps: steps}
	require.NoError(t, f.quests.Create(context.Background(), &q))
	return q.ID
}

func (f *fixture) confirm(t *testing.T, questID uint, users ...uint) {
	t.Helper()
	ctx := context.Background()
	for _, u := range users {
		_, err := f.contributers.Join(ctx, questID, u)
		require.NoError(t, err)
		require.NoError(t, f.contributers.Confirm(ctx, questID, u))
	}
}

func TestSync_ConfirmedContributers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.quest(t,
		models.Step{Type: models.StepFinance, Requirement: target(1000)},
		models.Step{Type: models.StepContributers, Requirement: target(10)},
	)
	f.confirm(t, id, 1, 2, 3, 4, 5, 6, 7)
	for _, u := range []uint{8, 9, 10} {
		_, err := f.contributers.Join(ctx, id, u)
		require.NoError(t, err)
	}

	got, err := f.agg.Sync(ctx, id, models.StepContributers)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	snap, _, err := f.quests.MemoryQuests.FindQuestWithDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, snap.Steps[1].Requirement.CurrentValue)
	assert.Equal(t, 10, *snap.Steps[1].Requirement.TargetValue)
	assert.Equal(t, 0, snap.Steps[0].Requirement.CurrentValue)
}

func TestSync_SumsContributions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.quest(t, models.Step{Type: models.StepFinance, Requirement: target(1000)})
	require.NoError(t, f.contributions.Add(ctx, &models.Contribution{QuestID: id, StepType: models.StepFinance, UserID: 1, Amount: 250}))
	require.NoError(t, f.contributions.Add(ctx, &models.Contribution{QuestID: id, StepType: models.StepFinance, UserID: 2, Amount: 150}))
	require.NoError(t, f.contributions.Add(ctx, &models.Contribution{QuestID: id, StepType: models.StepMaterial, UserID: 2, Amount: 9}))

	got, err := f.agg.Sync(ctx, id, models.StepFinance)
	require.NoError(t, err)
	assert.Equal(t, 400, got)
}

func TestSync_IdempotentWithoutSecondWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.quest(t, models.Step{Type: models.StepContributers, Requirement: target(10)})
	f.confirm(t, id, 1, 2, 3)

	first, err := f.agg.Sync(ctx, id, models.StepContributers)
	require.NoError(t, err)
	second, err := f.agg.Sync(ctx, id, models.StepContributers)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.quests.writes)
}

func TestSync_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.quest(t)
	noReq := f.quest(t, models.Step{Type: models.StepContributers})
	noTarget := f.quest(t, models.Step{Type: models.StepFinance, Requirement: &models.Requirement{}})
	free := f.quest(t, models.Step{Type: models.StepNoRequired, Requirement: target(1)})

	tests := []struct {
		name  string
		quest uint
		step  models.StepType
		want  error
	}{
		{"no steps", empty, models.StepContributers, ErrNoSteps},
		{"step missing", noReq, models.StepFinance, ErrStepNotFound},
		{"no requirement", noReq, models.StepContributers, ErrRequirementMissing},
		{"no target", noTarget, models.StepFinance, ErrRequirementMissing},
		{"unsyncable", free, models.StepNoRequired, ErrUnsyncableStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.agg.Sync(ctx, tt.quest, tt.step)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, 0, f.quests.writes)
}

func TestSync_QuestNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.Sync(context.Background(), 404, models.StepFinance)
	assert.ErrorIs(t, err, ErrQuestNotFound)
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestSync_PublishesRequirementUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.bus.Subscribe(events.OfType(events.RequirementUpdated))
	defer sub.Unsubscribe()

	id := f.quest(t, models.Step{Type: models.StepContributers, Requirement: target(5)})
	f.confirm(t, id, 4, 5)

	_, err := f.agg.Sync(ctx, id, models.StepContributers)
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, id, ev.QuestID)
		assert.Equal(t, "contributers", ev.String("stepType"))
		assert.Equal(t, 2, ev.Int("currentValue"))
		steps, ok := ev.Data["steps"].([]models.Step)
		require.True(t, ok)
		assert.Equal(t, 2, steps[0].Requirement.CurrentValue)
	case <-time.After(time.Second):
		t.Fatal("requirement_updated not delivered")
	}
}

func TestRecompute_ComputesEachTypeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.quest(t,
		models.Step{Type: models.StepContributers, Requirement: target(3)},
		models.Step{Type: models.StepNoRequired},
		models.Step{Type: models.StepContributers, Title: "second wave", Requirement: target(6)},
	)
	f.confirm(t, id, 1, 2)

	snap, _, err := f.quests.FindQuestWithDetails(ctx, id)
	require.NoError(t, err)
	changed, err := f.agg.Recompute(ctx, &snap)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, snap.Steps[0].Requirement.CurrentValue)
	assert.Equal(t, 2, snap.Steps[2].Requirement.CurrentValue)
	assert.Nil(t, snap.Steps[1].Requirement)

	changed, err = f.agg.Recompute(ctx, &snap)
	require.NoError(t, err)
	assert.False(t, changed)
}
