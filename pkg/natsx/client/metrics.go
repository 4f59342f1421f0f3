package client

// ConnectionMetrics receives connection lifecycle events.
type ConnectionMetrics interface {
	RecordConnection()
	RecordDisconnection()
	RecordReconnection()
	RecordConnectionClosed()
	RecordError()
}

type noopMetrics struct{}

func (noopMetrics) RecordConnection()       {}
func (noopMetrics) RecordDisconnection()    {}
func (noopMetrics) RecordReconnection()     {}
func (noopMetrics) RecordConnectionClosed() {}
func (noopMetrics) RecordError()            {}
