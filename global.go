package statsnet

import (
	"sync"
)

// Global client instance
var (
	globalMutex  sync.RWMutex
	globalClient *Client
)

// closedChan is returned by Flush when there is nothing to wait for
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Init creates the global client
func Init(config Config) error {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalClient != nil {
		return ErrAlreadyInitialized
	}

	c, err := New(config)
	if err != nil {
		return err
	}
	globalClient = c
	return nil
}

func global() *Client {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalClient
}

// Count adds value to a counter of the global client
func Count(name string, value int64) {
	if c := global(); c != nil {
		c.Count(name, value)
	}
}

// Increment adds 1 to a counter of the global client
func Increment(name string) {
	if c := global(); c != nil {
		c.Increment(name)
	}
}

// Gauge sets a gauge of the global client
func Gauge(name string, value float64) {
	if c := global(); c != nil {
		c.Gauge(name, value)
	}
}

// Timing records a latency in milliseconds on the global client
func Timing(name string, milliseconds int64) {
	if c := global(); c != nil {
		c.Timing(name, milliseconds)
	}
}

// Flush flushes the global client. Before Init it returns a closed channel.
func Flush() <-chan struct{} {
	if c := global(); c != nil {
		return c.Flush()
	}
	return closedChan
}

// Shutdown closes the global client; Init may be called again afterwards
func Shutdown() {
	globalMutex.Lock()
	c := globalClient
	globalClient = nil
	globalMutex.Unlock()

	if c != nil {
		c.Close()
	}
}
