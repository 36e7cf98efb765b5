package client

import "time"

// InstallRequest names an engine version and where to download it.
type InstallRequest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// OpenRequest asks the daemon to show a profile. Only Label is required.
type OpenRequest struct {
	Label       string `json:"label"`
	URL         string `json:"url,omitempty"`
	Version     string `json:"version,omitempty"`
	WindowTitle string `json:"window_title,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Engine is one installed engine version.
type Engine struct {
	Version     string `json:"version"`
	InstalledAt string `json:"installed_at"`
}

// Usage is a resource sample of a running engine.
type Usage struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Profile summarizes one profile directory on the daemon host.
type Profile struct {
	Label      string     `json:"label"`
	Dir        string     `json:"dir"`
	PID        int        `json:"pid,omitempty"`
	Running    bool       `json:"running"`
	Tracked    bool       `json:"tracked"`
	LastStatus string     `json:"last_status,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	Usage      *Usage     `json:"usage,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

type dirResponse struct {
	Dir string `json:"dir"`
}

type archiveResponse struct {
	Archive string `json:"archive"`
}

type pathResponse struct {
	Path string `json:"path"`
}

type pidResponse struct {
	PID *int `json:"pid"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type linesResponse struct {
	Lines []string `json:"lines"`
}
