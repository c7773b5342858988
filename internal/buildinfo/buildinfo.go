package buildinfo

import "time"

// Set via -ldflags "-X github.com/xelth-com/eckvideo/internal/buildinfo.CommitHash=..." at build time
var (
	BuildTime  string
	CommitHash string
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC()

// Info is the build and uptime snapshot reported by /health
type Info struct {
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime,omitempty"`
	StartedAt string `json:"startedAt"`
	Uptime    string `json:"uptime"`
}

// Current returns the snapshot as of now
func Current() Info {
	commit := CommitHash
	if commit == "" {
		commit = "dev"
	}
	return Info{
		Commit:    commit,
		BuildTime: BuildTime,
		StartedAt: StartTime.Format(time.RFC3339),
		Uptime:    time.Since(StartTime).Truncate(time.Second).String(),
	}
}
