package nfc

// Handler receives presence edges from a Detector. Calls are made from the
// detector's polling goroutine, one at a time, in the order they happened.
type Handler interface {
	OnArrival(uid string)
	OnRemoval()
}

// ErrorHandler is optionally implemented by a Handler that wants to hear
// about reader failures. Connection failures end the run; sense failures
// do not.
type ErrorHandler interface {
	OnError(err error)
}

// StateHandler is optionally implemented by a Handler that tracks the
// detector lifecycle. It may be called from the goroutine calling Start or
// Stop as well as from the polling goroutine.
type StateHandler interface {
	OnStateChange(state DetectorState)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields drop the event.
type HandlerFuncs struct {
	Arrival func(uid string)
	Removal func()
	Error   func(err error)
	State   func(state DetectorState)
}

func (h HandlerFuncs) OnArrival(uid string) {
	if h.Arrival != nil {
		h.Arrival(uid)
	}
}

func (h HandlerFuncs) OnRemoval() {
	if h.Removal != nil {
		h.Removal()
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h HandlerFuncs) OnStateChange(state DetectorState) {
	if h.State != nil {
		h.State(state)
	}
}

// MultiHandler fans each event out to every handler in order. Nil entries
// are skipped; optional interfaces are honoured per handler.
type MultiHandler []Handler

func (m MultiHandler) OnArrival(uid string) {
	for _, h := range m {
		if h != nil {
			h.OnArrival(uid)
		}
	}
}

func (m MultiHandler) OnRemoval() {
	for _, h := range m {
		if h != nil {
			h.OnRemoval()
		}
	}
}

func (m MultiHandler) OnError(err error) {
	for _, h := range m {
		if eh, ok := h.(ErrorHandler); ok {
			eh.OnError(err)
		}
	}
}

func (m MultiHandler) OnStateChange(state DetectorState) {
	for _, h := range m {
		if sh, ok := h.(StateHandler); ok {
			sh.OnStateChange(state)
		}
	}
}
