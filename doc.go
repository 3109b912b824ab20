// Package velocilog is a low-latency, high-throughput application
// logging library. A Logger formats a line on the caller's thread,
// copies it into a shared-memory ring buffer, and returns; a dedicated
// writer child process drains the ring and owns the log file (or
// standard output), performing size-bounded rotation.
//
// Typical use:
//
//	log := velocilog.New()
//	if err := log.Open("/var/log/myapp.log"); err != nil {
//	    panic(err)
//	}
//	defer log.Close()
//	log.Info("server listening on %v", addr)
package velocilog
