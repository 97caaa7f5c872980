package types

import "strings"

// QueryLevel is the value of Query/Retrieve Level (0008,0052).
type QueryLevel string

const (
	QueryLevelPatient QueryLevel = "PATIENT"
	QueryLevelStudy   QueryLevel = "STUDY"
	QueryLevelSeries  QueryLevel = "SERIES"
	QueryLevelImage   QueryLevel = "IMAGE"
)

// ParseQueryLevel normalises a level string; ok is false for unknown levels.
func ParseQueryLevel(s string) (QueryLevel, bool) {
	level := QueryLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case QueryLevelPatient, QueryLevelStudy, QueryLevelSeries, QueryLevelImage:
		return level, true
	}
	return "", false
}
