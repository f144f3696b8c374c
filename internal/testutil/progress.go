package testutil

import "sync"

// ProgressUpdate is one recorded Update call.
type ProgressUpdate struct {
	Done, Total int
	Message     string
}

// Failure is one recorded Failed call.
type Failure struct {
	Item string
	Err  error
}

// RecordingProgress records progress for assertions. It satisfies
// index.Progress.
type RecordingProgress struct {
	mu       sync.Mutex
	updates  []ProgressUpdate
	failures []Failure
}

func (p *RecordingProgress) Update(done, total int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, ProgressUpdate{Done: done, Total: total, Message: message})
}

func (p *RecordingProgress) Failed(item string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, Failure{Item: item, Err: err})
}

// Updates returns a copy of the recorded updates.
func (p *RecordingProgress) Updates() []ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProgressUpdate(nil), p.updates...)
}

// Failures returns a copy of the recorded failures.
func (p *RecordingProgress) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Failure(nil), p.failures...)
}

// Last returns the most recent update, or the zero value.
func (p *RecordingProgress) Last() ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updates) == 0 {
		return ProgressUpdate{}
	}
	return p.updates[len(p.updates)-1]
}
