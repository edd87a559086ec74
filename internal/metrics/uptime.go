package metrics

import (
	"math"
	"sort"
	"time"

	"boardkiosk/internal/models"
)

// BoardUptime summarises reachability of the remote service as seen from one board page.
type BoardUptime struct {
	Board         string  `json:"board"`
	UptimePercent float64 `json:"uptime_percent"`
	TotalProbes   int     `json:"total_probes"`
	Passing       int     `json:"passing"`
	Failing       int     `json:"failing"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	Outages       int     `json:"outages"`
	LastState     string  `json:"last_state,omitempty"`
	LastUpdated   string  `json:"last_updated,omitempty"`
}

// ComputeConnectivityUptime aggregates probe samples per board, sorted by board id.
// An outage is a run of consecutive failing probes.
func ComputeConnectivityUptime(samples []models.ConnectivityStatus) []BoardUptime {
	type acc struct {
		passing   int
		failing   int
		latency   int64
		outages   int
		lastOK    bool
		lastTime  time.Time
		seenFirst bool
	}

	ordered := make([]models.ConnectivityStatus, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CheckedAt.Before(ordered[j].CheckedAt)
	})

	state := make(map[string]*acc)
	for _, sample := range ordered {
		board := state[sample.Board]
		if board == nil {
			board = &acc{}
			state[sample.Board] = board
		}
		if sample.OK {
			board.passing++
			board.latency += sample.LatencyMs
		} else {
			board.failing++
			if !board.seenFirst || board.lastOK {
				board.outages++
			}
		}
		board.seenFirst = true
		board.lastOK = sample.OK
		board.lastTime = sample.CheckedAt
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]BoardUptime, 0, len(keys))
	for _, id := range keys {
		data := state[id]
		total := data.passing + data.failing
		result := BoardUptime{
			Board:       id,
			TotalProbes: total,
			Passing:     data.passing,
			Failing:     data.failing,
			Outages:     data.outages,
			LastState:   string(models.StateOffline),
			LastUpdated: data.lastTime.UTC().Format(time.RFC3339),
		}
		if data.lastOK {
			result.LastState = string(models.StateOnline)
		}
		if total > 0 {
			result.UptimePercent = round2(float64(data.passing) / float64(total) * 100)
		}
		if data.passing > 0 {
			result.AvgLatencyMs = round2(float64(data.latency) / float64(data.passing))
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
