package syncctl

import (
	"time"

	"gamehall/internal/core"
)

// DeviceView is a device with its live session figures, all computed
// against the same reference time
type DeviceView struct {
	*core.Device
	Session          *core.Session `json:"session,omitempty"`
	ElapsedMinutes   int           `json:"elapsed_minutes"`
	Elapsed          string        `json:"elapsed"`
	RemainingMinutes *int          `json:"remaining_minutes,omitempty"`
	CurrentCost      int64         `json:"current_cost"`
	TimeUp           bool          `json:"time_up"`
}

func buildViews(snapshot *core.Snapshot, cost core.CostModel, now time.Time) []*DeviceView {
	active := make(map[string]*core.Session)
	for _, session := range snapshot.Sessions {
		if session.IsActive {
			active[session.DeviceID] = session
		}
	}

	views := make([]*DeviceView, 0, len(snapshot.Devices))
	for _, device := range snapshot.Devices {
		view := &DeviceView{Device: device, Elapsed: core.FormatMinutes(0)}
		if session, ok := active[device.ID]; ok {
			elapsed := session.ElapsedMinutes(now)
			view.Session = session
			view.ElapsedMinutes = elapsed
			view.Elapsed = core.FormatMinutes(elapsed)
			view.CurrentCost = cost.Cost(elapsed)
			if session.IsLimited() {
				remaining := session.RemainingMinutes(now)
				view.RemainingMinutes = &remaining
				view.TimeUp = elapsed >= *session.TimeLimit
			}
		}
		views = append(views, view)
	}
	return views
}
