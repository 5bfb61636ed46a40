package nfc

import (
	log "github.com/sirupsen/logrus"
)

var logger log.FieldLogger = log.StandardLogger()

// SetLogger replaces the logger used by the nfc package. Passing nil restores
// the logrus standard logger.
func SetLogger(l log.FieldLogger) {
	if l == nil {
		l = log.StandardLogger()
	}
	logger = l
}
