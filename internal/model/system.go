package model

// VersionInfo reports the running build and schema.
type VersionInfo struct {
	AppVersion string          `json:"appVersion"`
	DbVersion  int64           `json:"dbVersion"`
	Features   map[string]bool `json:"features"`
}

// HealthStatus is the response of the health check.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}
