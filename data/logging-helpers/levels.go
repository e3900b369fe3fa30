package logginghelpers

import log "github.com/sirupsen/logrus"

const (
	// every outgoing request and its response
	LevelReportIO = log.TraceLevel
)
