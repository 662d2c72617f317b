package guard

import (
	"sync"
	"time"
)

// StartLoadingGuard forces setLoading(false) once d elapses. The returned disposer
// cancels the timer when the guarded operation finishes first; it is safe to call
// more than once.
func StartLoadingGuard(setLoading func(bool), d time.Duration) (dispose func()) {
	if setLoading == nil {
		return func() {}
	}
	if d <= 0 {
		d = DefaultLoadingTimeout
	}
	timer := time.AfterFunc(d, func() {
		setLoading(false)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			timer.Stop()
		})
	}
}
