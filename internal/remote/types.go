package remote

import "github.com/tillworks/quota/internal/goal"

// MetricsWindow selects the aggregation window for a sales totals query.
type MetricsWindow string

const (
	WindowToday     MetricsWindow = "today"
	WindowThisMonth MetricsWindow = "this_month"
)

type listGoalsResponse struct {
	Goals []goal.Goal `json:"goals"`
}

type totalsResponse struct {
	TotalSales float64 `json:"total_sales"`
}
