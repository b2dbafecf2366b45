package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerTiers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTiers",
		Method:      http.MethodGet,
		Path:        "/api/tiers",
		Tags:        []string{"Tiers"},
	}, func(ctx context.Context, input *struct{}) (*ListTiersOutput, error) {
		out := &ListTiersOutput{}
		out.Body.Tiers = make([]TierInfo, 0, len(s.tiers))
		for _, t := range s.tiers {
			out.Body.Tiers = append(out.Body.Tiers, TierInfo{Name: string(t.Name), MaxBackups: t.MaxBackups})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listTierRuns",
		Method:      http.MethodGet,
		Path:        "/api/tiers/{tier}/runs",
		Tags:        []string{"Tiers"},
	}, func(ctx context.Context, input *ListTierRunsInput) (*ListTierRunsOutput, error) {
		if !s.hasTier(input.Tier) {
			return nil, huma.Error404NotFound("tier not configured: " + input.Tier)
		}
		if s.history == nil {
			return nil, huma.Error503ServiceUnavailable("run history is disabled")
		}

		entries, err := s.history.Recent(ctx, input.Tier, input.Limit)
		if err != nil {
			slog.Error("failed to read run history", "tier", input.Tier, "error", err)
			return nil, huma.Error500InternalServerError("failed to read run history")
		}

		out := &ListTierRunsOutput{}
		out.Body.Tier = input.Tier
		out.Body.Runs = make([]TierRun, 0, len(entries))
		for _, e := range entries {
			run := TierRun{
				RunID:      e.RunID,
				State:      e.State,
				CreatedID:  e.CreatedID,
				EvictedID:  e.EvictedID,
				RanAt:      e.RanAt.UTC(),
				DurationMS: e.DurationMS,
			}
			if e.Errors != "" {
				run.Errors = strings.Split(e.Errors, "\n")
			}
			out.Body.Runs = append(out.Body.Runs, run)
		}
		return out, nil
	})
}

func (s *Server) registerRuns(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "triggerRun",
		Method:        http.MethodPost,
		Path:          "/api/runs",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *struct{}) (*TriggerRunOutput, error) {
		s.trigger()
		out := &TriggerRunOutput{}
		out.Body.Status = "queued"
		return out, nil
	})
}

func (s *Server) hasTier(name string) bool {
	for _, t := range s.tiers {
		if string(t.Name) == name {
			return true
		}
	}
	return false
}
