package tagindex

// New returns the default Index implementation (roaring-backed). Tests
// and callers that need to exercise the fallback explicitly should call
// NewFallback directly.
func New() Index {
	log.Debug("tag index created", "backend", "roaring")
	return NewRoaring()
}
