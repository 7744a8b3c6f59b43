//go:build !linux

package reactor

// poller is unavailable off Linux: init fails, so the remaining methods are
// never reached.
type poller struct{}

func (*poller) init() error                     { return ErrUnsupportedPlatform }
func (*poller) close() error                    { return nil }
func (*poller) add(int, IOEvents) error         { return ErrUnsupportedPlatform }
func (*poller) modify(int, IOEvents) error      { return ErrUnsupportedPlatform }
func (*poller) remove(int) error                { return ErrUnsupportedPlatform }
func (*poller) wait(int) (int, error)           { return 0, ErrUnsupportedPlatform }
func (*poller) event(int) (int, IOEvents, bool) { return -1, 0, false }
func (*poller) wake() error                     { return ErrUnsupportedPlatform }
func (*poller) drain()                          {}
