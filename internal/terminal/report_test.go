package terminal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exboard/internal/exceptions"
	"exboard/internal/filters"
)

var (
	ruleOpts  = []filters.Option{{Value: "", Label: "All Rules"}, {Value: "r1", Label: "Speeding"}}
	assetOpts = []filters.Option{{Value: "", Label: "All Assets"}, {Value: "d1", Label: "Truck 1"}}
)

func TestReport_Rows(t *testing.T) {
	r := Report{
		Title:     "Exceptions",
		Rules:     ruleOpts,
		Assets:    assetOpts,
		Selection: exceptions.Selection{RuleID: "r1"},
		View: exceptions.View{Rows: []exceptions.Row{
			{When: "3/14/2024, 9:00:00 AM", Asset: "Truck 1", Rule: "Speeding", Duration: "01:01:01"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, DefaultStyles()))

	out := buf.String()
	assert.Contains(t, out, "Rule: Speeding")
	assert.Contains(t, out, "Asset: All Assets")
	assert.Contains(t, out, "When")
	assert.Contains(t, out, "3/14/2024, 9:00:00 AM")
	assert.Contains(t, out, "01:01:01")
}

func TestReport_Notices(t *testing.T) {
	tests := []struct {
		name string
		view exceptions.View
		want string
	}{
		{
			name: "empty",
			view: exceptions.View{Notice: &exceptions.Notice{Kind: exceptions.NoticeInfo, Text: "No exceptions found for the selected criteria."}},
			want: "No exceptions found for the selected criteria.",
		},
		{
			name: "error",
			view: exceptions.View{Notice: &exceptions.Notice{Kind: exceptions.NoticeError, Text: "Error fetching data: boom"}},
			want: "Error fetching data: boom",
		},
		{
			name: "init failure",
			view: exceptions.View{Loading: true, LoadingText: "Could not load initial data. Please refresh."},
			want: "Could not load initial data. Please refresh.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Report{Rules: ruleOpts, Assets: assetOpts, View: tt.view}.Render(&buf, DefaultStyles()))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestSelectedLabel_UnknownFallsBackToID(t *testing.T) {
	assert.Equal(t, "zzz", selectedLabel(ruleOpts, "zzz"))
	assert.Equal(t, "All Rules", selectedLabel(ruleOpts, ""))
}
