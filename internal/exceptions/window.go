package exceptions

import (
	"time"

	"exboard/internal/constants"
	"exboard/internal/fleet"
)

// Window is the half-open interval [From, To) an exception query covers.
type Window struct {
	From time.Time
	To   time.Time
}

// QueryWindow ends at midnight of now's calendar day in now's location and
// starts 24 hours earlier.
func QueryWindow(now time.Time) Window {
	y, m, d := now.Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return Window{From: to.Add(-24 * time.Hour), To: to}
}

// Selection holds the optional rule and device filters. Empty means unset.
type Selection struct {
	RuleID   string `json:"ruleId,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

func (w Window) Search(sel Selection) fleet.ExceptionEventSearch {
	return fleet.ExceptionEventSearch{
		FromDate: w.From.UTC().Format(constants.SearchTimestampLayout),
		ToDate:   w.To.UTC().Format(constants.SearchTimestampLayout),
		RuleID:   sel.RuleID,
		DeviceID: sel.DeviceID,
	}
}
