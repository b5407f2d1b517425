package fileproto

import (
	"io"

	"github.com/charmbracelet/log"
)

func testLog() *log.Logger {
	return log.New(io.Discard)
}
