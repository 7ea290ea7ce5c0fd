// conf/validate.go

package conf

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

var (
	frequencyScales   = []string{"linear", "log", "mel", "erb"}
	resampleQualities = []string{"quick", "low", "medium", "high", "veryhigh"}
)

// minBufferSamples must hold the longest analysis frame (80 ms at 48 kHz)
const minBufferSamples = 4096

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateAudioSettings(&settings.Audio)...)
	ve.Errors = append(ve.Errors, validateAnalysisSettings(&settings.Analysis)...)
	ve.Errors = append(ve.Errors, validateViewSettings(&settings.View)...)
	ve.Errors = append(ve.Errors, validatePipelineSettings(&settings.Pipeline)...)

	if settings.WebServer.Enabled && settings.WebServer.Listen == "" {
		ve.Errors = append(ve.Errors, "webserver.listen must be set when the web server is enabled")
	}
	if settings.Telemetry.Enabled && settings.Telemetry.Listen == "" {
		ve.Errors = append(ve.Errors, "telemetry.listen must be set when telemetry is enabled")
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn must be set when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(s *AudioSettings) []string {
	var errs []string
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Sprintf("audio.samplerate %d out of range [8000, 192000]", s.SampleRate))
	}
	if s.BufferSecs <= 0 {
		errs = append(errs, "audio.buffersecs must be positive")
	}
	return errs
}

func validateAnalysisSettings(s *AnalysisSettings) []string {
	var errs []string
	for key, v := range map[string]string{
		"analysis.pitchalgorithm":   s.PitchAlgorithm,
		"analysis.linpredalgorithm": s.LinpredAlgorithm,
		"analysis.formantalgorithm": s.FormantAlgorithm,
		"analysis.invglotalgorithm": s.InvglotAlgorithm,
	} {
		if v == "" {
			errs = append(errs, key+" must not be empty")
		}
	}
	if s.LPOrder < 2 || s.LPOrder > 32 {
		errs = append(errs, fmt.Sprintf("analysis.lporder %d out of range [2, 32]", s.LPOrder))
	}
	slices.Sort(errs)
	return errs
}

func validateViewSettings(s *ViewSettings) []string {
	var errs []string
	if s.MinFrequency < 0 || s.MinFrequency >= s.MaxFrequency {
		errs = append(errs, fmt.Sprintf("view.minfrequency %d must be in [0, maxfrequency)", s.MinFrequency))
	}
	if s.MaxFrequency <= 0 || s.MaxFrequency > 24000 {
		errs = append(errs, fmt.Sprintf("view.maxfrequency %d out of range (0, 24000]", s.MaxFrequency))
	}
	if err := ValidateFFTSize(s.FFTSize); err != nil {
		errs = append(errs, err.Error())
	}
	if s.MinGain >= s.MaxGain {
		errs = append(errs, "view.mingain must be below view.maxgain")
	}
	if !slices.Contains(frequencyScales, s.FrequencyScale) {
		errs = append(errs, fmt.Sprintf("view.frequencyscale %q must be one of %v", s.FrequencyScale, frequencyScales))
	}
	if s.FormantCount < 1 || s.FormantCount > MaxFormantCount {
		errs = append(errs, fmt.Sprintf("view.formantcount %d out of range [1, %d]", s.FormantCount, MaxFormantCount))
	}
	return errs
}

// ValidateFFTSize checks that n is a power of two in [64, 16384].
func ValidateFFTSize(n int) error {
	if n < 64 || n > 16384 || bits.OnesCount(uint(n)) != 1 {
		return fmt.Errorf("view.fftsize %d must be a power of two in [64, 16384]", n)
	}
	return nil
}

func validatePipelineSettings(s *PipelineSettings) []string {
	var errs []string
	b := s.BlockSize
	if b.Min <= 0 || b.Min > b.Initial || b.Initial > b.Max {
		errs = append(errs, fmt.Sprintf("pipeline.blocksize requires 0 < min <= initial <= max, got %d/%d/%d", b.Min, b.Initial, b.Max))
	}
	if b.Step <= 0 {
		errs = append(errs, "pipeline.blocksize.step must be positive")
	}
	if b.GrowThreshold <= 0 || b.ShrinkThreshold <= 0 {
		errs = append(errs, "pipeline.blocksize thresholds must be positive")
	}
	if s.BufferSamples < minBufferSamples {
		errs = append(errs, fmt.Sprintf("pipeline.buffersamples %d below minimum %d", s.BufferSamples, minBufferSamples))
	}
	if s.JoinTimeout <= 0 {
		errs = append(errs, "pipeline.jointimeout must be positive")
	}
	if s.HistorySeconds < 0 {
		errs = append(errs, "pipeline.historyseconds must not be negative")
	}
	if !slices.Contains(resampleQualities, s.ResampleQuality) {
		errs = append(errs, fmt.Sprintf("pipeline.resamplequality %q must be one of %v", s.ResampleQuality, resampleQualities))
	}
	return errs
}
