package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
}

type fakeJob struct {
	name     string
	schedule string
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(_ context.Context) error { return nil }

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(testLogger())
	job := &fakeJob{name: "daily_margin", schedule: "30 18 * * MON-FRI"}

	require.NoError(t, s.AddJob(job))
	err := s.AddJob(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(testLogger())
	err := s.AddJob(&fakeJob{name: "broken", schedule: "not a cron spec"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to schedule")
}

func TestAddJobAcceptsStandardFiveFieldSpec(t *testing.T) {
	s := New(testLogger())
	assert.NoError(t, s.AddJob(&fakeJob{name: "weekday", schedule: "30 18 * * MON-FRI"}))
	assert.NoError(t, s.AddJob(&fakeJob{name: "daily", schedule: "@daily"}))
}

func TestRunJobUnknownName(t *testing.T) {
	s := New(testLogger())
	err := s.RunJob("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRemoveJob(t *testing.T) {
	s := New(testLogger())
	require.NoError(t, s.AddJob(&fakeJob{name: "daily_margin", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("daily_margin"))
	assert.Empty(t, s.GetAllJobs())

	err := s.RemoveJob("daily_margin")
	require.Error(t, err)
}

func TestGetJobHistoryUnknownName(t *testing.T) {
	s := New(testLogger())
	_, err := s.GetJobHistory("missing")
	require.Error(t, err)
}

func TestJobHistoryKeepsLastHundred(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: fmt.Sprintf("r%d", i), Success: true})
	}

	assert.Len(t, h.Results, 100)
	assert.Equal(t, "r50", h.Results[0].JobName)
	assert.Equal(t, "r149", h.Results[99].JobName)
}

func TestJobHistorySuccessRate(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.GetSuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})

	assert.InDelta(t, 2.0/3.0, h.GetSuccessRate(), 1e-12)
	assert.Len(t, h.GetFailedResults(), 1)
}

func TestJobHistoryLatestResults(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 5; i++ {
		h.AddResult(JobResult{JobName: fmt.Sprintf("r%d", i)})
	}

	latest := h.GetLatestResults(2)
	require.Len(t, latest, 2)
	assert.Equal(t, "r3", latest[0].JobName)
	assert.Equal(t, "r4", latest[1].JobName)

	assert.Len(t, h.GetLatestResults(10), 5)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}

func TestGetJobStats(t *testing.T) {
	s := New(testLogger())
	require.NoError(t, s.AddJob(&fakeJob{name: "daily_margin", schedule: "@daily"}))

	s.history["daily_margin"].AddResult(JobResult{JobName: "daily_margin", Success: true})
	s.history["daily_margin"].AddResult(JobResult{JobName: "daily_margin", Success: false, Error: "boom"})

	stats := s.GetJobStats()
	require.Contains(t, stats, "daily_margin")

	st := stats["daily_margin"]
	assert.Equal(t, "@daily", st.Schedule)
	assert.Equal(t, 2, st.TotalRuns)
	assert.Equal(t, 1, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	assert.NotNil(t, st.LastRun)
	assert.NotNil(t, st.LastFailure)
}
