package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
)

type workflowMocks struct {
	fetch, save, publish, prune, record *testsuite.MockCallWrapper
}

func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *workflowMocks, *[]RecordRefreshRunInput) {
	t.Helper()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	register(env, activities)

	runs := &[]RecordRefreshRunInput{}
	m := &workflowMocks{
		fetch:   env.OnActivity(activities.FetchTokenStats, mock.Anything, mock.Anything),
		save:    env.OnActivity(activities.SaveTokenStats, mock.Anything, mock.Anything),
		publish: env.OnActivity(activities.PublishTokenStats, mock.Anything, mock.Anything),
		prune:   env.OnActivity(activities.PruneTokenStats, mock.Anything, mock.Anything),
		record: env.OnActivity(activities.RecordRefreshRun, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				*runs = append(*runs, args.Get(1).(RecordRefreshRunInput))
			}),
	}
	m.record.Return(nil)
	return env, m, runs
}

func sampleStats() *pricefeed.TokenStats {
	return &pricefeed.TokenStats{
		Symbol:         "TAO",
		Price:          412.5,
		PriceChange24h: 2.15,
		Volume24h:      3.1e7,
		MarketCap:      2.9e9,
		FetchedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRefreshTokenStatsWorkflow(t *testing.T) {
	t.Run("fetch, save and publish", func(t *testing.T) {
		env, m, runs := newWorkflowEnv(t)
		m.fetch.Return(sampleStats(), nil)
		m.save.Return(&db.TokenStats{ID: 7, Symbol: "TAO", Price: 412.5}, nil)
		m.publish.Return(true, nil)
		m.prune.Return(int64(3), nil)

		env.ExecuteWorkflow(RefreshTokenStatsWorkflow, RefreshTokenStatsInput{Symbol: "TAO", Retention: 24 * time.Hour})
		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result RefreshTokenStatsResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, "TAO", result.Symbol)
		assert.Equal(t, 412.5, result.Price)
		assert.Equal(t, 2.15, result.Change24h)
		assert.Equal(t, int64(7), result.StatsID)
		assert.True(t, result.Published)
		assert.Equal(t, int64(3), result.Pruned)
		assert.Nil(t, result.Error)

		require.Len(t, *runs, 1)
		assert.Equal(t, RunStatusSuccess, (*runs)[0].Status)
		assert.NotNil(t, (*runs)[0].FinishedAt)
	})

	t.Run("no retention skips pruning", func(t *testing.T) {
		env, m, _ := newWorkflowEnv(t)
		m.fetch.Return(sampleStats(), nil)
		m.save.Return(&db.TokenStats{ID: 1, Symbol: "TAO"}, nil)
		m.publish.Return(true, nil)
		pruned := 0
		m.prune.Run(func(mock.Arguments) { pruned++ }).Return(int64(0), nil)

		env.ExecuteWorkflow(RefreshTokenStatsWorkflow, RefreshTokenStatsInput{Symbol: "TAO"})
		require.NoError(t, env.GetWorkflowError())
		assert.Zero(t, pruned)
	})

	t.Run("publish failure does not fail the run", func(t *testing.T) {
		env, m, runs := newWorkflowEnv(t)
		m.fetch.Return(sampleStats(), nil)
		m.save.Return(&db.TokenStats{ID: 2, Symbol: "TAO"}, nil)
		m.publish.Return(false, errors.New("nats unavailable"))

		env.ExecuteWorkflow(RefreshTokenStatsWorkflow, RefreshTokenStatsInput{Symbol: "TAO"})
		require.NoError(t, env.GetWorkflowError())

		var result RefreshTokenStatsResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.False(t, result.Published)
		assert.Equal(t, int64(2), result.StatsID)
		require.Len(t, *runs, 1)
		assert.Equal(t, RunStatusSuccess, (*runs)[0].Status)
	})

	t.Run("fetch failure fails the run", func(t *testing.T) {
		env, m, runs := newWorkflowEnv(t)
		m.fetch.Return(nil, errors.New("coingecko 429"))

		env.ExecuteWorkflow(RefreshTokenStatsWorkflow, RefreshTokenStatsInput{Symbol: "TAO"})
		assert.Error(t, env.GetWorkflowError())

		require.Len(t, *runs, 1)
		assert.Equal(t, RunStatusFailed, (*runs)[0].Status)
		require.NotNil(t, (*runs)[0].Error)
		assert.Contains(t, *(*runs)[0].Error, "failed to fetch token stats")
	})

	t.Run("save failure fails the run", func(t *testing.T) {
		env, m, runs := newWorkflowEnv(t)
		m.fetch.Return(sampleStats(), nil)
		m.save.Return(nil, errors.New("database error"))

		env.ExecuteWorkflow(RefreshTokenStatsWorkflow, RefreshTokenStatsInput{Symbol: "TAO"})
		assert.Error(t, env.GetWorkflowError())
		require.Len(t, *runs, 1)
		assert.Equal(t, RunStatusFailed, (*runs)[0].Status)
	})
}

func TestRefreshTokenStatsWorkflow_ActivityRetries(t *testing.T) {
	env, m, _ := newWorkflowEnv(t)

	calls := 0
	m.fetch.Run(func(mock.Arguments) {
		calls++
		if calls < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(sampleStats(), nil)
	m.save.Return(&db.TokenStats{ID: 9, Symbol: "TAO"}, nil)
	m.publish.Return(true, nil)

	env.ExecuteWorkflow(RefreshTokenStatsWorkflow, RefreshTokenStatsInput{Symbol: "TAO"})
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, calls)
}
