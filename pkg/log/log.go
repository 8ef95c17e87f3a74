package log

import "fmt"

// Logger is the logging interface carried by the firmware. The host
// simulator installs the printing implementation; tests default to the
// null logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type logger struct {
	debug bool
}

// New returns a Logger that prints to stdout.
func New() Logger {
	return &logger{}
}

// NewDebug returns a Logger that prints to stdout, including debug output.
func NewDebug() Logger {
	return &logger{debug: true}
}

func (l *logger) Infof(format string, args ...interface{}) {
	fmt.Printf("[INFO]\t"+format+"\n", args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	fmt.Printf("[ERROR]\t"+format+"\n", args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		fmt.Printf("[DEBUG]\t"+format+"\n", args...)
	}
}
