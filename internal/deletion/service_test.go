package deletion

import (
	"context"
	"time"

	accountmodels "erasure/internal/account/models"
	"erasure/internal/deletion/models"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/requestcontext"
)

func (s *JobSuite) newService(job *Job) *Service {
	svc, err := NewService(job, s.accounts, s.audits, s.runs)
	s.Require().NoError(err)
	return svc
}

func (s *JobSuite) TestTriggerDeletionJobRunsManually() {
	accountID, _ := s.seedAccount("manual@example.com")
	s.requestDeletion(accountID, s.t0)
	s.clock.Advance(8 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := s.newService(s.newJob(s.owned)).TriggerDeletionJob(ctx)
	s.Require().NoError(err)
	s.Equal(models.TriggerManual, run.Trigger)
	s.Equal(1, run.SuccessCount, "an operator hanging up does not abort the run")
}

func (s *JobSuite) TestListPendingDeletions() {
	soon, _ := s.seedAccount("soon@example.com")
	later, _ := s.seedAccount("later@example.com")
	s.seedAccount("active@example.com")
	s.requestDeletion(soon, s.t0.Add(-8*24*time.Hour))
	s.requestDeletion(later, s.t0)

	ctx := requestcontext.WithTime(context.Background(), s.t0.Add(time.Hour))
	pending, err := s.newService(s.newJob(s.owned)).ListPendingDeletions(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)

	s.Equal(soon, pending[0].AccountID)
	s.True(pending[0].IsExpired)
	s.Negative(pending[0].SecondsRemaining)
	s.Equal("so****@example.com", *pending[0].Email)
	s.Equal("+447****oo", *pending[0].Phone)

	s.Equal(later, pending[1].AccountID)
	s.False(pending[1].IsExpired)
	s.Equal(int64((7*24*time.Hour-time.Hour)/time.Second), pending[1].SecondsRemaining)
}

func (s *JobSuite) TestDeletionLogsAndStats() {
	gone, _ := s.seedAccount("gone@example.com")
	broken, _ := s.seedAccount("broken@example.com")
	s.seedAccount("active@example.com")
	s.requestDeletion(gone, s.t0)
	s.requestDeletion(broken, s.t0)
	s.clock.Advance(8 * 24 * time.Hour)

	owned := failingOwnedData{OwnedDataStore: s.owned, failFor: broken, resource: accountmodels.ResourceSettings}
	job := s.newJob(owned)
	_, err := job.Run(context.Background(), models.TriggerScheduled)
	s.Require().NoError(err)
	svc := s.newService(job)
	ctx := requestcontext.WithTime(context.Background(), s.clock.Now())

	s.Run("logs page through executed entries", func() {
		logs, err := svc.GetDeletionJobLogs(ctx, audit.Page{Number: 1, Size: 1})
		s.Require().NoError(err)
		s.Equal(2, logs.Total)
		s.Len(logs.Items, 1)
		s.Equal(1, logs.PageSize)
		s.Require().Len(logs.RecentRuns, 1)
		s.Equal(1, logs.RecentRuns[0].FailureCount)
		for _, e := range logs.Items {
			s.Equal(audit.ActionDeletionExecuted, e.Action)
		}
	})

	s.Run("stats count by status and result", func() {
		stats, err := svc.GetDeletionStats(ctx)
		s.Require().NoError(err)
		s.Equal(int64(1), stats.AccountsByStatus[accountmodels.StatusActive])
		s.Equal(int64(1), stats.AccountsByStatus[accountmodels.StatusPendingDelete])
		s.Equal(int64(1), stats.AccountsByStatus[accountmodels.StatusDeleted])
		s.Equal(1, stats.DeletedToday)
		s.Equal(1, stats.DeletedTotal)
		s.Equal(1, stats.FailedTotal)
	})

	s.Run("deletions before today are not counted as today", func() {
		tomorrow := requestcontext.WithTime(context.Background(), s.clock.Now().Add(24*time.Hour))
		stats, err := svc.GetDeletionStats(tomorrow)
		s.Require().NoError(err)
		s.Zero(stats.DeletedToday)
		s.Equal(1, stats.DeletedTotal)
	})
}
