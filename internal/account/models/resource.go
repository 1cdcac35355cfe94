package models

// Resource names an account-owned table purged by the deletion job.
type Resource string

const (
	ResourceMessages          Resource = "messages"
	ResourceConversations     Resource = "conversations"
	ResourceReadings          Resource = "readings"
	ResourceChartComputations Resource = "chart_computations"
	ResourceChartProfiles     Resource = "chart_profiles"
	ResourceSettings          Resource = "settings"
	ResourceRateLimitCounters Resource = "rate_limit_counters"
)

// PurgeOrder lists owned resources children-first so no foreign key is violated.
var PurgeOrder = []Resource{
	ResourceMessages,
	ResourceConversations,
	ResourceReadings,
	ResourceChartComputations,
	ResourceChartProfiles,
	ResourceSettings,
	ResourceRateLimitCounters,
}
