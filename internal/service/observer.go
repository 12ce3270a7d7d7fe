package service

// Observer receives progress notifications from a running download. It is
// the only coupling between the orchestrator and any UI. Callbacks fire from
// worker goroutines; implementations handle their own locking.
type Observer interface {
	OnStart(symbol string, totalDays int)
	OnUpdate(symbol string, done, total int, success bool)
	OnFinish(symbol, path string)
	OnError(symbol string, err error)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) OnStart(string, int)            {}
func (NopObserver) OnUpdate(string, int, int, bool) {}
func (NopObserver) OnFinish(string, string)        {}
func (NopObserver) OnError(string, error)          {}
