package pipeline

import "sync"

var (
	sharedOnce sync.Once
	sharedPipe *Pipeline
	sharedErr  error
)

// Shared returns the process-wide pipeline, building it on first use with the
// supplied constructor. Later calls ignore their argument and return the same
// handle (or the original construction error). Server handlers share model
// sessions through this instead of loading models per request.
func Shared(build func() (*Pipeline, error)) (*Pipeline, error) {
	sharedOnce.Do(func() {
		sharedPipe, sharedErr = build()
	})
	return sharedPipe, sharedErr
}
