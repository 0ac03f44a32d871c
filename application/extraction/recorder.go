package extraction

import "time"

// Recorder receives engine measurements. Implementations back metrics
// collectors; every method must be cheap and non-blocking.
type Recorder interface {
	NodeEmitted(category string)
	EdgeEmitted(relationship string)
	FieldApplied(key string)
	FieldDropped()
	DuplicateSuppressed(kind string)
	FallbackTrim(bytes int)
	SessionFinished(reason string, duration time.Duration)
	SessionFailed()
}

// NopRecorder discards all measurements
type NopRecorder struct{}

func (NopRecorder) NodeEmitted(string)                    {}
func (NopRecorder) EdgeEmitted(string)                    {}
func (NopRecorder) FieldApplied(string)                   {}
func (NopRecorder) FieldDropped()                         {}
func (NopRecorder) DuplicateSuppressed(string)            {}
func (NopRecorder) FallbackTrim(int)                      {}
func (NopRecorder) SessionFinished(string, time.Duration) {}
func (NopRecorder) SessionFailed()                        {}
