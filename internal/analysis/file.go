package analysis

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tphakala/speechscope/internal/audiocore/sources"
	"github.com/tphakala/speechscope/internal/audiocore/sources/file"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/logger"
)

// Summary condenses the tracks of a finished session.
type Summary struct {
	SessionID    string            `json:"sessionId"`
	Duration     float64           `json:"duration"`
	Frames       map[string]uint64 `json:"frames"`
	PitchFrames  int               `json:"pitchFrames"`
	VoicedFrames int               `json:"voicedFrames"`
	MeanPitch    float64           `json:"meanPitch"`
	MinPitch     float64           `json:"minPitch"`
	MaxPitch     float64           `json:"maxPitch"`
	Formants     []float64         `json:"formantMeans"`
}

// VoicedRatio is the share of pitch frames with a pitch estimate.
func (s *Summary) VoicedRatio() float64 {
	if s.PitchFrames == 0 {
		return 0
	}
	return float64(s.VoicedFrames) / float64(s.PitchFrames)
}

// FileAnalysis analyses the WAV file in settings.Input.Path and returns a
// summary of the resulting tracks.
func FileAnalysis(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) (*Summary, error) {
	if settings.Input.Path == "" {
		return nil, ErrNoInput
	}
	info, err := file.ReadInfo(settings.Input.Path)
	if err != nil {
		return nil, err
	}
	GetLogger().Info("starting file analysis",
		logger.String("file", truncateFilename(settings.Input.Path)),
		logger.Int("sample_rate", info.SampleRate),
		logger.Int("channels", info.NumChannels),
		logger.Int("bit_depth", info.BitDepth),
		logger.Duration("duration", info.Duration),
		logger.Bool("paced", settings.Input.Paced))

	session, err := NewSession(settings, sources.KindFile, WithBuildInfo(build))
	if err != nil {
		return nil, err
	}
	if err := session.Run(ctx); err != nil {
		return nil, err
	}
	return Summarize(session), nil
}

// Summarize reads the session's tracks into a Summary.
func Summarize(s *Session) *Summary {
	sum := &Summary{
		SessionID: s.store.SessionID().String(),
		Frames:    make(map[string]uint64),
	}
	for _, st := range s.pipeline.Status().Streams {
		sum.Frames[st.Name] = st.Frames
	}

	s.store.View(func(r *datastore.ReadTxn) {
		sum.Duration = r.Time()

		var total float64
		for _, v := range r.Pitch().All() {
			sum.PitchFrames++
			f, ok := v.Get()
			if !ok {
				continue
			}
			if sum.VoicedFrames == 0 || f < sum.MinPitch {
				sum.MinPitch = f
			}
			sum.MaxPitch = max(sum.MaxPitch, f)
			sum.VoicedFrames++
			total += f
		}
		if sum.VoicedFrames > 0 {
			sum.MeanPitch = total / float64(sum.VoicedFrames)
		}

		sum.Formants = make([]float64, r.FormantCount())
		for i := range sum.Formants {
			var n int
			var acc float64
			for _, v := range r.Formant(i).All() {
				if f, ok := v.Get(); ok {
					acc += f
					n++
				}
			}
			if n > 0 {
				sum.Formants[i] = acc / float64(n)
			}
		}
	})
	return sum
}

// WriteSummary prints a human readable summary.
func WriteSummary(w io.Writer, sum *Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:   %s\n", sum.SessionID)
	fmt.Fprintf(&b, "Duration:  %.2f s\n", sum.Duration)
	for _, name := range []string{"spectrogram", "pitch", "formants", "oscilloscope"} {
		if n, ok := sum.Frames[name]; ok {
			fmt.Fprintf(&b, "  %-13s %d frames\n", name, n)
		}
	}
	fmt.Fprintf(&b, "Voiced:    %.1f%% of %d frames\n", 100*sum.VoicedRatio(), sum.PitchFrames)
	if sum.VoicedFrames > 0 {
		fmt.Fprintf(&b, "Pitch:     mean %.1f Hz, range %.1f-%.1f Hz\n", sum.MeanPitch, sum.MinPitch, sum.MaxPitch)
	}
	for i, f := range sum.Formants {
		if f > 0 {
			fmt.Fprintf(&b, "F%d:        mean %.0f Hz\n", i+1, f)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// truncateFilename keeps log lines short for deeply nested inputs.
func truncateFilename(path string) string {
	const maxLen = 48
	name := filepath.Base(path)
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}
