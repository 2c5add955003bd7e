package models

import (
	"time"

	"github.com/smazurov/factoryd/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/mips" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// MAC models
type MACData struct {
	WiFi string `json:"wifi" example:"12:11:11:11:11:11" doc:"ath0 address, the base of the derived set"`
	Eth0 string `json:"eth0" example:"12:11:11:11:11:12" doc:"eth0 address"`
	Eth1 string `json:"eth1" example:"12:11:11:11:11:13" doc:"eth1 address"`
}

type MACResponse struct {
	Body MACData
}

type SetMACRequest struct {
	Body struct {
		WiFi string `json:"wifi" pattern:"^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$" example:"12:11:11:11:11:11" doc:"Base address; eth0 and eth1 are derived from it"`
	}
}

// LED models
type LEDData struct {
	Lines     map[string]bool `json:"lines" doc:"Lit state per LED line"`
	UpdatedAt time.Time       `json:"updated_at,omitempty" doc:"When the LEDs were last driven"`
}

type LEDResponse struct {
	Body LEDData
}

type SetLEDRequest struct {
	Body struct {
		On bool `json:"on" example:"true" doc:"Light every LED (true) or turn them all off (false)"`
	}
}

// Status models
type StatusData struct {
	TestPassed      bool   `json:"test_passed" doc:"Whether the test-pass flag file is present"`
	ClientConnected bool   `json:"client_connected" doc:"Whether a tester is connected to the test port"`
	SystemdStatus   string `json:"systemd_status,omitempty" example:"active" doc:"Active state of the factoryd unit, when systemd is in use"`
}

type StatusResponse struct {
	Body StatusData
}

type MetricsSummaryResponse struct {
	Body metrics.Summary
}

// Log models
type LogsRequest struct {
	Module string `query:"module" example:"command" doc:"Only entries from this module"`
	Level  string `query:"level" example:"warn" doc:"Minimum level"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" example:"100" doc:"Newest entries to return (0 for all)"`
}

type LogEntryData struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level" example:"info"`
	Module     string         `json:"module" example:"command"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type LogsResponse struct {
	Body struct {
		Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
		Count   int            `json:"count" doc:"Number of entries returned"`
	}
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Effective level per module; \"global\" is the default level"`
	}
}
