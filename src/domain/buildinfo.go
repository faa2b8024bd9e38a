package domain

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// BuildInfo is filled in by main from ldflags.
var BuildInfo = buildInfo{Version: "dev", Commit: "dirty"}
