package history

import (
	"sort"
	"time"

	"boardkiosk/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots we generate per board.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4

	classOnline  = "state-success"
	classOffline = "state-error"
	classMissing = "state-missing"
)

// BuildBoardTimelines builds one connectivity timeline per board, in board order.
func BuildBoardTimelines(boards []models.Board, samples map[string][]models.ConnectivityStatus, start, end time.Time, points int) []models.BoardTimeline {
	out := make([]models.BoardTimeline, 0, len(boards))
	for _, b := range boards {
		out = append(out, models.BoardTimeline{
			BoardID:   b.ID,
			BoardName: b.Name,
			Timeline:  BuildConnectivityTimeline(samples[b.ID], start, end, points),
		})
	}
	return out
}

// BuildConnectivityTimeline reduces probe samples into compact timeline points.
// A bucket takes the state of its last sample; empty buckets inherit the previous
// state while the gap stays within twice the usual probe spacing.
func BuildConnectivityTimeline(entries []models.ConnectivityStatus, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	samples := make([]models.ConnectivityStatus, 0, len(entries))
	for _, entry := range entries {
		if !entry.CheckedAt.IsZero() {
			samples = append(samples, entry)
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CheckedAt.Before(samples[j].CheckedAt)
	})

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}
	gapThreshold := deriveGap(samples)

	idx := 0
	var last *models.ConnectivityStatus
	for idx < len(samples) && samples[idx].CheckedAt.Before(start) {
		last = &samples[idx]
		idx++
	}

	result := make([]models.TimelinePoint, 0, points)
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}
		point := models.TimelinePoint{
			ClassName: classMissing,
			Label:     "No data",
			Start:     bucketStart,
			End:       bucketEnd,
		}

		first := idx
		for idx < len(samples) && samples[idx].CheckedAt.Before(bucketEnd) {
			idx++
		}
		bucket := samples[first:idx]

		switch {
		case len(bucket) > 0:
			last = &bucket[len(bucket)-1]
			point.ClassName, point.Label = classify(*last)
			for _, sample := range bucket {
				if sample.OK || len(point.Details) >= maxDetailsPerPoint {
					continue
				}
				point.Details = append(point.Details, detail(sample))
			}
		case last != nil && bucketStart.Sub(last.CheckedAt) <= gapThreshold:
			point.ClassName, point.Label = classify(*last)
			if !last.OK {
				d := detail(*last)
				d.Timestamp = bucketStart
				point.Details = []models.TimelineDetail{d}
			}
		}

		result = append(result, point)
	}
	return result
}

func deriveGap(samples []models.ConnectivityStatus) time.Duration {
	const defaultGap = time.Minute
	if len(samples) < 2 {
		return defaultGap
	}
	diffs := make([]time.Duration, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		if d := samples[i].CheckedAt.Sub(samples[i-1].CheckedAt); d > 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		return defaultGap
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })

	gap := diffs[len(diffs)/2] * 2
	if gap < 10*time.Second {
		return 10 * time.Second
	}
	if gap > time.Hour {
		return time.Hour
	}
	return gap
}

func detail(status models.ConnectivityStatus) models.TimelineDetail {
	state := models.StateOnline
	if !status.OK {
		state = models.StateOffline
	}
	return models.TimelineDetail{
		Timestamp: status.CheckedAt,
		State:     string(state),
		Error:     status.Error,
	}
}

func classify(status models.ConnectivityStatus) (className, label string) {
	if status.OK {
		return classOnline, "Online"
	}
	return classOffline, "Offline"
}
