package models

import "math"

// Account is a user's identity plus its ledger snapshot.
type Account struct {
	Identity           string      `json:"identity" db:"identity"`
	Credential         string      `json:"-" db:"credential"`
	Balance            int64       `json:"balance" db:"balance"`
	TotalItemsRecycled int64       `json:"totalItemsRecycled" db:"total_items"`
	TotalWeightGrams   int64       `json:"totalWeightGrams" db:"total_weight_grams"`
	ActivityLog        ActivityLog `json:"activityLog" db:"activity_log"`
	Version            int         `json:"version" db:"version"` // for optimistic locking
}

// Newest returns the most recent activity, if any.
func (a Account) Newest() (Activity, bool) {
	if len(a.ActivityLog) == 0 {
		return Activity{}, false
	}
	return a.ActivityLog[0], true
}

// FindActivity looks up an activity by id.
func (a Account) FindActivity(id string) (Activity, bool) {
	for _, act := range a.ActivityLog {
		if act.ID == id {
			return act, true
		}
	}
	return Activity{}, false
}

// Summary is the dashboard read model of an account.
type Summary struct {
	Identity           string     `json:"identity"`
	Balance            int64      `json:"balance"`
	TotalItemsRecycled int64      `json:"totalItemsRecycled"`
	TotalWeightKg      float64    `json:"totalWeightKg"`
	Recent             []Activity `json:"recent"`
}

// Summarize builds the dashboard view with the given number of recent activities.
func (a Account) Summarize(recent int) Summary {
	if recent > len(a.ActivityLog) {
		recent = len(a.ActivityLog)
	}
	kg := math.Round(float64(a.TotalWeightGrams)/100) / 10
	return Summary{
		Identity:           a.Identity,
		Balance:            a.Balance,
		TotalItemsRecycled: a.TotalItemsRecycled,
		TotalWeightKg:      kg,
		Recent:             append(make([]Activity, 0, recent), a.ActivityLog[:recent]...),
	}
}
