package target

// Singleton is one process-wide client slot shared by every request.
//
// It is deliberately unsynchronized and unscoped: concurrent requests read
// each other's client. This is the behavior the unsafe routes demonstrate,
// and the race detector will flag it.
type Singleton struct {
	client *RequestClient
}

// Get returns the current client, creating one if the slot is empty.
func (s *Singleton) Get() *RequestClient {
	if s.client == nil {
		s.client = newRequestClient()
	}
	return s.client
}

func (s *Singleton) Set(c *RequestClient) {
	s.client = c
}

func (s *Singleton) Reset() {
	s.client = nil
}
