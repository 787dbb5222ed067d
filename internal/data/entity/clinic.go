package entity

// WorkingDay is one weekday entry of a clinic's recurring schedule. Open and
// close override the clinic-wide defaults when set.
type WorkingDay struct {
	Day       string  `json:"day"` // sunday..saturday
	IsOpen    bool    `json:"is_open"`
	OpenTime  *string `json:"open_time,omitempty"`
	CloseTime *string `json:"close_time,omitempty"`
}

type Clinic struct {
	BaseNoDelete
	Name                string       `db:"name"`
	Address             string       `db:"address"`
	Phone               string       `db:"phone"`
	WorkingHours        []WorkingDay `db:"working_hours"`
	DefaultOpenTime     string       `db:"default_open_time"`
	DefaultCloseTime    string       `db:"default_close_time"`
	SlotDurationMinutes int          `db:"slot_duration_minutes"`
	ClosedDates         []string     `db:"closed_dates"` // YYYY-MM-DD
	IsActive            bool         `db:"is_active"`
}
