package services

import (
	logginghelpers "github.com/Pjt727/autosign/data/logging-helpers"
)

const (
	LevelHttpReport = logginghelpers.LevelReportIO
)

// shows only the ends of a secret e.i. "abc...xyz"
func Mask(secret string) string {
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:3] + "..." + secret[len(secret)-3:]
}
