package exceptions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryWindow(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, loc)

	w := QueryWindow(now)

	assert.True(t, w.From.Equal(time.Date(2024, 3, 14, 0, 0, 0, 0, loc)))
	assert.True(t, w.To.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, loc)))
	assert.Equal(t, 24*time.Hour, w.To.Sub(w.From))

	search := w.Search(Selection{})
	assert.Equal(t, "2024-03-14T05:00:00.000Z", search.FromDate)
	assert.Equal(t, "2024-03-15T05:00:00.000Z", search.ToDate)
}

func TestQueryWindow_JustAfterMidnight(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 1, time.UTC)
	w := QueryWindow(now)
	assert.True(t, w.To.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
}

func TestWindowSearch_FilterKeys(t *testing.T) {
	w := QueryWindow(time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC))

	tests := []struct {
		name    string
		sel     Selection
		present []string
		absent  []string
	}{
		{name: "none", sel: Selection{}, absent: []string{"ruleId", "deviceId"}},
		{name: "rule", sel: Selection{RuleID: "r1"}, present: []string{"ruleId"}, absent: []string{"deviceId"}},
		{name: "device", sel: Selection{DeviceID: "d1"}, present: []string{"deviceId"}, absent: []string{"ruleId"}},
		{name: "both", sel: Selection{RuleID: "r1", DeviceID: "d1"}, present: []string{"ruleId", "deviceId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(w.Search(tt.sel))
			require.NoError(t, err)

			var m map[string]string
			require.NoError(t, json.Unmarshal(raw, &m))
			assert.Contains(t, m, "fromDate")
			assert.Contains(t, m, "toDate")
			for _, k := range tt.present {
				assert.Contains(t, m, k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, m, k)
			}
			if tt.sel.RuleID != "" {
				assert.Equal(t, tt.sel.RuleID, m["ruleId"])
			}
		})
	}
}
