package api

import "time"

// HealthCheckOutput is the response for GET /healthz.
type HealthCheckOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// TierInfo describes one configured retention tier.
type TierInfo struct {
	Name       string `json:"name"`
	MaxBackups int    `json:"maxBackups"`
}

// ListTiersOutput is the response for GET /api/tiers.
type ListTiersOutput struct {
	Body struct {
		Tiers []TierInfo `json:"tiers"`
	}
}

// ListTierRunsInput selects the recorded runs of one tier.
type ListTierRunsInput struct {
	Tier  string `path:"tier"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"500"`
}

// TierRun is one recorded tier outcome.
type TierRun struct {
	RunID      string    `json:"runId"`
	State      string    `json:"state"`
	CreatedID  string    `json:"createdId,omitempty"`
	EvictedID  string    `json:"evictedId,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	RanAt      time.Time `json:"ranAt"`
	DurationMS int64     `json:"durationMs"`
}

// ListTierRunsOutput is the response for GET /api/tiers/{tier}/runs.
type ListTierRunsOutput struct {
	Body struct {
		Tier string    `json:"tier"`
		Runs []TierRun `json:"runs"`
	}
}

// TriggerRunOutput is the response for POST /api/runs.
type TriggerRunOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}
