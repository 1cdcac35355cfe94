package handler

import (
	"time"

	"erasure/internal/deletion"
	"erasure/internal/deletion/models"
	audit "erasure/pkg/platform/audit"
)

type pendingItem struct {
	AccountID         string     `json:"accountId"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	Nickname          *string    `json:"nickname"`
	DeleteRequestedAt *time.Time `json:"deleteRequestedAt"`
	DeleteScheduledAt *time.Time `json:"deleteScheduledAt"`
	SecondsRemaining  int64      `json:"secondsRemaining"`
	IsExpired         bool       `json:"isExpired"`
}

type pendingResponse struct {
	Items []pendingItem `json:"items"`
	Total int           `json:"total"`
}

func toPendingResponse(pending []deletion.PendingDeletion) pendingResponse {
	items := make([]pendingItem, 0, len(pending))
	for _, p := range pending {
		items = append(items, pendingItem{
			AccountID:         p.AccountID.String(),
			Email:             p.Email,
			Phone:             p.Phone,
			Nickname:          p.Nickname,
			DeleteRequestedAt: p.DeleteRequestedAt,
			DeleteScheduledAt: p.DeleteScheduledAt,
			SecondsRemaining:  p.SecondsRemaining,
			IsExpired:         p.IsExpired,
		})
	}
	return pendingResponse{Items: items, Total: len(items)}
}

type logItem struct {
	ID        string        `json:"id"`
	Action    string        `json:"action"`
	AccountID string        `json:"accountId"`
	Result    string        `json:"result"`
	Timestamp time.Time     `json:"timestamp"`
	Details   audit.Details `json:"details"`
}

type logsResponse struct {
	Items      []logItem        `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	RecentRuns []*models.JobRun `json:"recentRuns"`
}

func toLogsResponse(logs *deletion.JobLogs) logsResponse {
	items := make([]logItem, 0, len(logs.Items))
	for _, e := range logs.Items {
		items = append(items, logItem{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			AccountID: e.AccountID.String(),
			Result:    string(e.Result),
			Timestamp: e.Timestamp,
			Details:   e.Details,
		})
	}
	runs := logs.RecentRuns
	if runs == nil {
		runs = []*models.JobRun{}
	}
	return logsResponse{
		Items:      items,
		Total:      logs.Total,
		Page:       logs.Page,
		PageSize:   logs.PageSize,
		RecentRuns: runs,
	}
}

type statsResponse struct {
	AccountsByStatus map[string]int64 `json:"accountsByStatus"`
	DeletedToday     int              `json:"deletedToday"`
	DeletedTotal     int              `json:"deletedTotal"`
	FailedTotal      int              `json:"failedTotal"`
}

func toStatsResponse(stats *deletion.Stats) statsResponse {
	byStatus := make(map[string]int64, len(stats.AccountsByStatus))
	for status, n := range stats.AccountsByStatus {
		byStatus[string(status)] = n
	}
	return statsResponse{
		AccountsByStatus: byStatus,
		DeletedToday:     stats.DeletedToday,
		DeletedTotal:     stats.DeletedTotal,
		FailedTotal:      stats.FailedTotal,
	}
}
