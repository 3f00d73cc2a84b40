package tui

import (
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
)

type frameMsg struct {
	frame hub.Frame
}

// connErrMsg ends the read loop; the connection is not retried.
type connErrMsg struct {
	err error
}

type joinErrMsg struct {
	err error
}

type openErrMsg struct {
	err error
}
