package coordinator

import "github.com/chaosswarm/chaosswarm/pkg/api"

// Aggregate merges per-target results into a submission response. The
// submission succeeds only when every target succeeded; otherwise the first
// failure's message becomes the headline. Every execution is kept either way.
func Aggregate(results []api.ExecutionResult) api.SubmitResponse {
	resp := api.SubmitResponse{
		Status:     api.StatusSuccess,
		Executions: results,
	}
	for _, r := range results {
		if !r.Succeeded() {
			resp.Status = api.StatusFailure
			resp.Message = r.Message
			break
		}
	}
	return resp
}
