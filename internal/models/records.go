package models

// ForecastRecord is one day's weather summary as shown on the dashboard.
// Temperatures are display-ready strings (e.g. "72°F").
type ForecastRecord struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	IconCode    string `json:"icon_code"`
	LowTemp     string `json:"low_temp"`
	HighTemp    string `json:"high_temp"`
}

// PersonRecord is one person's entry in the comparison grid. The image URLs
// point at the dial images this service renders.
type PersonRecord struct {
	Name          string `json:"name"`
	RecoveryImage string `json:"recoveryImage"`
	SleepImage    string `json:"sleepImage"`
}

// TaskRecord is one dated task entry.
type TaskRecord struct {
	Date string `json:"date"`
	Task string `json:"task"`
}

// Scores holds one person's WHOOP scores for the current day.
type Scores struct {
	Name     string `json:"name"`
	Recovery int    `json:"recovery"`
	Sleep    int    `json:"sleep"`
}
