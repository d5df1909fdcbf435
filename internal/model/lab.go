package model

// Lab is a bookable room as returned by the lab directory.  The booking
// service never mutates labs; it only joins them for display.
type Lab struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Location       string         `json:"location"`
	Capacity       int            `json:"capacity"`
	IsAvailable    bool           `json:"isAvailable"`
	OperatingHours OperatingHours `json:"operatingHours"`
}

// OperatingHours is the daily opening window of a lab, as HH:MM strings.
type OperatingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
