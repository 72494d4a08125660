package ui

import (
	"sync"
	"time"
)

// IndexProgress is the build state of one index.
type IndexProgress struct {
	Name     string
	Stage    Stage
	Started  time.Time
	Duration time.Duration
	Err      error
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Total    int
	Done     int
	Failed   int
	Progress float64
	Elapsed  time.Duration
	ETA      time.Duration
	Running  []string
	Indices  []IndexProgress
}

// ProgressTracker follows a set of index builds. It is safe for concurrent
// use.
type ProgressTracker struct {
	mu        sync.Mutex
	startTime time.Time
	order     []string
	indices   map[string]*IndexProgress
	durations *Sparkline

	lastETA time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		startTime: time.Now(),
		indices:   make(map[string]*IndexProgress),
		durations: NewSparkline(60),
	}
}

// entry returns the progress record for name, creating a pending one.
// Caller holds mu.
func (p *ProgressTracker) entry(name string) *IndexProgress {
	ip, ok := p.indices[name]
	if !ok {
		ip = &IndexProgress{Name: name}
		p.indices[name] = ip
		p.order = append(p.order, name)
	}
	return ip
}

// Track registers names as pending. Known names are left alone.
func (p *ProgressTracker) Track(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.entry(n)
	}
}

// Start marks name as building.
func (p *ProgressTracker) Start(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ip := p.entry(name)
	ip.Stage = StageBuilding
	ip.Started = time.Now()
	ip.Duration = 0
	ip.Err = nil
}

// Finish marks name as done, or failed when err is non-nil.
func (p *ProgressTracker) Finish(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ip := p.entry(name)
	if ip.Started.IsZero() {
		ip.Started = time.Now()
	}
	ip.Duration = time.Since(ip.Started)
	ip.Err = err
	if err != nil {
		ip.Stage = StageFailed
	} else {
		ip.Stage = StageDone
	}
	p.durations.Add(float64(ip.Duration.Milliseconds()))
}

// Stats returns a snapshot. It takes the write lock because the ETA is
// smoothed across calls.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := ProgressStats{
		Total:   len(p.order),
		Elapsed: time.Since(p.startTime),
		Indices: make([]IndexProgress, 0, len(p.order)),
	}
	for _, name := range p.order {
		ip := *p.indices[name]
		switch ip.Stage {
		case StageDone:
			st.Done++
		case StageFailed:
			st.Failed++
		case StageBuilding:
			st.Running = append(st.Running, name)
		}
		st.Indices = append(st.Indices, ip)
	}
	if st.Total > 0 {
		st.Progress = float64(st.Done+st.Failed) / float64(st.Total)
	}
	st.ETA = p.calculateETA(st.Progress, st.Elapsed)
	return st
}

// etaSmoothingFactor is the weight given to each new ETA estimate.
const etaSmoothingFactor = 0.3

// calculateETA must be called with mu held.
func (p *ProgressTracker) calculateETA(progress float64, elapsed time.Duration) time.Duration {
	if progress <= 0 || progress >= 1 {
		p.lastETA = 0
		return 0
	}

	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}

	smoothed := time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}

// Failures returns the indices whose build failed, in tracking order.
func (p *ProgressTracker) Failures() []IndexProgress {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []IndexProgress
	for _, name := range p.order {
		if ip := p.indices[name]; ip.Stage == StageFailed {
			out = append(out, *ip)
		}
	}
	return out
}

// RenderSparkline draws the build durations of finished indices.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durations.Render(width)
}
