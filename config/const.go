package config

import "strings"

// AppVersion is the version of the service.
var AppVersion = "0.3.0" // Overridden with -ldflags at release build time

// AppName is the name of the service.
const AppName = "Jitter"

// LogWinSubDir is the sub directory for the log files on windows.
var LogWinSubDir = AppName

// LogSubDir is the sub directory for the log files.
var LogSubDir = "." + strings.ToLower(AppName)

// LogExt is the extension for the log files.
var LogExt = ".log"

// OutputSubDir is the directory under the user's home that receives augmented files.
const OutputSubDir = "augmented_videos"

// Environment overrides.
const (
	EnvListenAddr = "JITTER_ADDR"
	EnvOutputDir  = "JITTER_OUTPUT_DIR"
)
