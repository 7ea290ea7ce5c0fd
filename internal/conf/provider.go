package conf

import (
	"sync"
)

// AnalysisProvider exposes the settings the analysis pipeline reads while
// running. Implementations must be safe for concurrent use.
type AnalysisProvider interface {
	PitchAlgorithm() string
	LinearPredictionAlgorithm() string
	FormantAlgorithm() string
	InverseGlottalAlgorithm() string
	LPOrder() int
	FFTSize() int
	ViewMaxFrequency() int
	FormantCount() int
}

// Analysis is the live AnalysisProvider backed by Settings. The view
// parameters may be changed at runtime, the spectrogram worker picks them up on
// its next hop.
type Analysis struct {
	mu       sync.RWMutex
	analysis AnalysisSettings
	view     ViewSettings
}

var _ AnalysisProvider = (*Analysis)(nil)

// NewAnalysis copies the analysis and view sections of settings.
func NewAnalysis(settings *Settings) *Analysis {
	return &Analysis{
		analysis: settings.Analysis,
		view:     settings.View,
	}
}

func (a *Analysis) PitchAlgorithm() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analysis.PitchAlgorithm
}

func (a *Analysis) LinearPredictionAlgorithm() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analysis.LinpredAlgorithm
}

func (a *Analysis) FormantAlgorithm() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analysis.FormantAlgorithm
}

func (a *Analysis) InverseGlottalAlgorithm() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analysis.InvglotAlgorithm
}

func (a *Analysis) LPOrder() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analysis.LPOrder
}

func (a *Analysis) FFTSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.FFTSize
}

func (a *Analysis) ViewMaxFrequency() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.MaxFrequency
}

func (a *Analysis) FormantCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.FormantCount
}

// View returns a copy of the current view settings.
func (a *Analysis) View() ViewSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// UpdateView validates and applies new view settings. The formant count is
// fixed for the lifetime of a session and is not changed.
func (a *Analysis) UpdateView(v ViewSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	v.FormantCount = a.view.FormantCount
	if errs := validateViewSettings(&v); len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	a.view = v
	return nil
}
