package httpserver

import "time"

// ShutdownTimeout bounds how long in-flight resolutions get to finish once
// the server has been asked to stop.
var ShutdownTimeout = 15 * time.Second
