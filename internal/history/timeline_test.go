package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardkiosk/internal/models"
)

var origin = time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)

func sampleAt(offset time.Duration, ok bool) models.ConnectivityStatus {
	s := models.ConnectivityStatus{Board: "a", OK: ok, CheckedAt: origin.Add(offset)}
	if !ok {
		s.Error = "connection refused"
	}
	return s
}

func TestBuildConnectivityTimeline(t *testing.T) {
	samples := []models.ConnectivityStatus{
		sampleAt(25*time.Second, false), // bucket 2, out of order on purpose
		sampleAt(5*time.Second, true),   // bucket 0
		sampleAt(15*time.Second, true),  // bucket 1
	}

	points := BuildConnectivityTimeline(samples, origin, origin.Add(60*time.Second), 6)
	require.Len(t, points, 6)

	assert.Equal(t, "state-success", points[0].ClassName)
	assert.Equal(t, "state-success", points[1].ClassName)
	assert.Equal(t, "state-error", points[2].ClassName)
	assert.Equal(t, "Offline", points[2].Label)
	require.Len(t, points[2].Details, 1)
	assert.Equal(t, "offline", points[2].Details[0].State)

	// gap threshold is 20s (twice the 10s spacing), so bucket 3 inherits the failure
	assert.Equal(t, "state-error", points[3].ClassName)
	assert.Equal(t, origin.Add(30*time.Second), points[3].Details[0].Timestamp)
	assert.Equal(t, "state-error", points[4].ClassName)
	assert.Equal(t, "state-missing", points[5].ClassName)
	assert.Equal(t, origin.Add(60*time.Second), points[5].End)
}

func TestBuildConnectivityTimelineEmpty(t *testing.T) {
	points := BuildConnectivityTimeline(nil, origin, origin, 0)
	require.Len(t, points, DefaultTimelinePoints)
	for _, p := range points {
		assert.Equal(t, "state-missing", p.ClassName)
	}
}

func TestBuildConnectivityTimelineCarriesStateFromBeforeRange(t *testing.T) {
	samples := []models.ConnectivityStatus{
		sampleAt(-5*time.Second, true),
		sampleAt(0, true),
	}
	points := BuildConnectivityTimeline(samples, origin.Add(time.Second), origin.Add(11*time.Second), 2)
	assert.Equal(t, "state-success", points[0].ClassName)
	assert.Empty(t, points[0].Details)
}

func TestBuildBoardTimelines(t *testing.T) {
	boards := []models.Board{{ID: "a", Name: "Left"}, {ID: "b", Name: "Right"}}
	samples := map[string][]models.ConnectivityStatus{"a": {sampleAt(time.Second, true)}}

	timelines := BuildBoardTimelines(boards, samples, origin, origin.Add(time.Minute), 4)
	require.Len(t, timelines, 2)
	assert.Equal(t, "Left", timelines[0].BoardName)
	assert.Equal(t, "state-success", timelines[0].Timeline[0].ClassName)
	assert.Equal(t, "b", timelines[1].BoardID)
	assert.Equal(t, "state-missing", timelines[1].Timeline[0].ClassName)
}
