package config

import "time"

// Application constants
const (
	AppName    = "idschooldata"
	AppVersion = "0.3.0"

	// Published range of the historical enrollment workbooks
	DefaultMinYear = 1996
	DefaultMaxYear = 2026

	// Building-level workbooks start later than the district series
	DefaultBuildingMinYear = 2011

	DefaultDistrictURL = "https://www.sde.idaho.gov/finance/files/attendance-enrollment/historical/Historical-Enrollment-by-District-or-Charter.xlsx"
	DefaultBuildingURL = "https://www.sde.idaho.gov/finance/files/attendance-enrollment/historical/Historical-Enrollment-by-Building.xlsx"

	DefaultHTTPTimeout    = 60 * time.Second
	DefaultRequestTimeout = 5 * time.Minute

	// File Paths (relative to the base directory)
	DefaultDataDir      = "data"
	DefaultCacheDir     = "data/cache"
	DefaultDownloadsDir = "data/downloads"
	DefaultLogsDir      = "logs"
	DefaultBoltFile     = "enrollment.db"
)
