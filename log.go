package mcb

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// NewLogger builds the default charmbracelet/log logger used by New when
// no WithLogger option is supplied.
func NewLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{Prefix: "mcb", ReportTimestamp: true})
}

// strftimeNow renders the current time using an strftime layout (the
// %H:%M:%S style) instead of Go's reference-time layout. Nothing in this
// module calls it; the default logger uses charmbracelet/log's own
// timestamps.
func strftimeNow(layout string) (string, error) {
	f, err := strftime.New(layout)
	if err != nil {
		return "", err
	}
	return f.FormatString(time.Now()), nil
}
