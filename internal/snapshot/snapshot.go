// Package snapshot turns data store tracks into renderer-facing views. A
// snapshot is built inside a single read transaction, so every track in it
// describes the same instant.
package snapshot

import (
	"math"

	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/dsp"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/timetrack"
)

// ComponentSnapshot identifies snapshot errors
const ComponentSnapshot = "snapshot"

const (
	// DefaultDuration is the window length when a request names none.
	DefaultDuration = 5.0
	// MaxDuration bounds the window length.
	MaxDuration = 120.0
	// DefaultRows is the spectrogram column height.
	DefaultRows = 256
	// MaxRows bounds the spectrogram column height.
	MaxRows = 2048
	// GlottalPeriods is how many glottal cycles the oscilloscope window shows.
	GlottalPeriods = 5

	silenceDB = -240.0
)

// ErrInvalidRequest is returned for out of range request parameters.
var ErrInvalidRequest = errors.New(errors.NewStd("invalid snapshot request")).
	Component(ComponentSnapshot).
	Category(errors.CategoryValidation).
	Build()

// Request selects the time window of a snapshot.
type Request struct {
	// Since is the window start in session seconds. Nil means Duration
	// seconds before the current time.
	Since    *float64
	Duration float64
	Rows     int
}

// Point is one track sample; Value is nil where the track is absent.
type Point struct {
	Time  float64  `json:"t"`
	Value *float64 `json:"v"`
}

// Column is one spectrogram frame mapped onto the view's frequency axis,
// lowest frequency first, with values in [0, 1] between the view gains.
type Column struct {
	Time     float64   `json:"t"`
	Duration float64   `json:"duration"`
	Values   []float64 `json:"values"`
}

// Spectrogram is the cropped and scaled spectrogram of the window.
type Spectrogram struct {
	Scale        string   `json:"scale"`
	MinFrequency float64  `json:"minFrequency"`
	MaxFrequency float64  `json:"maxFrequency"`
	Rows         int      `json:"rows"`
	Columns      []Column `json:"columns"`
}

// Oscilloscope is the newest sound frame and the glottal flow around its
// last complete periods. Both are normalised by their absolute maximum.
type Oscilloscope struct {
	Time        float64   `json:"t"`
	SampleRate  float64   `json:"sampleRate"`
	Sound       []float64 `json:"sound"`
	Glottal     []float64 `json:"glottal"`
	WindowStart float64   `json:"windowStartMs"`
	WindowEnd   float64   `json:"windowEndMs"`
	Periods     int       `json:"periods"`
}

// Snapshot is everything a renderer needs for one refresh.
type Snapshot struct {
	SessionID    string        `json:"sessionId"`
	Epoch        uint64        `json:"epoch"`
	Time         float64       `json:"time"`
	From         float64       `json:"from"`
	To           float64       `json:"to"`
	Pitch        []Point       `json:"pitch"`
	Formants     [][]Point     `json:"formants"`
	Spectrogram  Spectrogram   `json:"spectrogram"`
	Oscilloscope *Oscilloscope `json:"oscilloscope,omitempty"`
}

// Build reads one snapshot of store. oscilloscopeRate is the sample rate of
// the sound and glottal tracks.
func Build(store *datastore.DataStore, view conf.ViewSettings, req Request, oscilloscopeRate float64) (*Snapshot, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}
	scale, err := dsp.ParseScale(view.FrequencyScale)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentSnapshot).
			Category(errors.CategoryConfiguration).
			Context("frequency_scale", view.FrequencyScale).
			Build()
	}

	snap := &Snapshot{SessionID: store.SessionID().String()}
	store.View(func(r *datastore.ReadTxn) {
		snap.Epoch = r.Epoch()
		snap.Time = r.Time()
		snap.To = snap.Time
		snap.From = snap.To - req.Duration
		if req.Since != nil {
			snap.From = *req.Since
			snap.To = snap.From + req.Duration
		}

		// the window includes its end
		upper := math.Nextafter(snap.To, math.Inf(1))

		snap.Pitch = points(r.Pitch(), snap.From, upper)
		snap.Formants = make([][]Point, r.FormantCount())
		for i := range snap.Formants {
			snap.Formants[i] = points(r.Formant(i), snap.From, upper)
		}

		snap.Spectrogram = spectrogram(r.Spectrogram(), view, scale, req.Rows, snap.From, upper)
		snap.Oscilloscope = oscilloscope(r, oscilloscopeRate)
	})
	return snap, nil
}

func validate(req *Request) error {
	if req.Duration == 0 {
		req.Duration = DefaultDuration
	}
	if req.Rows == 0 {
		req.Rows = DefaultRows
	}
	switch {
	case req.Duration < 0 || req.Duration > MaxDuration || math.IsNaN(req.Duration):
		return errors.New(ErrInvalidRequest).
			Context("duration", req.Duration).
			Build()
	case req.Rows < 2 || req.Rows > MaxRows:
		return errors.New(ErrInvalidRequest).
			Context("rows", req.Rows).
			Build()
	case req.Since != nil && (math.IsNaN(*req.Since) || math.IsInf(*req.Since, 0)):
		return errors.New(ErrInvalidRequest).
			Context("since", *req.Since).
			Build()
	}
	return nil
}

func points(v timetrack.View[timetrack.Optional[float64]], from, to float64) []Point {
	out := []Point{}
	for t, o := range v.Range(from, to) {
		p := Point{Time: t}
		if f, ok := o.Get(); ok {
			p.Value = &f
		}
		out = append(out, p)
	}
	return out
}

func spectrogram(v timetrack.View[datastore.SpectrogramFrame], view conf.ViewSettings, scale dsp.Scale, rows int, from, to float64) Spectrogram {
	s := Spectrogram{
		Scale:        scale.String(),
		MinFrequency: float64(view.MinFrequency),
		MaxFrequency: float64(view.MaxFrequency),
		Rows:         rows,
		Columns:      []Column{},
	}
	for t, frame := range v.Range(from, to) {
		s.Columns = append(s.Columns, Column{
			Time:     t,
			Duration: frame.FrameDuration,
			Values:   MapColumn(frame, scale, s.MinFrequency, s.MaxFrequency, view.MinGain, view.MaxGain, rows),
		})
	}
	return s
}

// MapColumn samples frame at rows frequencies spaced evenly on scale between
// minHz and maxHz, converts to dB and maps [minGain, maxGain] onto [0, 1].
// Frequencies above the frame's Nyquist rate map to 0.
func MapColumn(frame datastore.SpectrogramFrame, scale dsp.Scale, minHz, maxHz, minGain, maxGain float64, rows int) []float64 {
	out := make([]float64, rows)
	bins := len(frame.Magnitudes)
	if bins < 2 || frame.SampleRate <= 0 || maxGain <= minGain {
		return out
	}
	fftSize := float64(2 * (bins - 1))
	lo, hi := scale.HzTo(minHz), scale.HzTo(maxHz)

	for r := range out {
		pos := float64(r) / float64(rows-1)
		hz := scale.ToHz(lo + pos*(hi-lo))
		bin := hz * fftSize / frame.SampleRate
		// scale round trips can overshoot the top bin by an ulp or two
		if bin < 0 || bin > float64(bins-1)+1e-6 {
			continue
		}

		i := min(int(bin), bins-1)
		mag := frame.Magnitudes[i]
		if i+1 < bins {
			frac := bin - float64(i)
			mag += frac * (frame.Magnitudes[i+1] - mag)
		}

		db := silenceDB
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		out[r] = min(max((db-minGain)/(maxGain-minGain), 0), 1)
	}
	return out
}

func oscilloscope(r *datastore.ReadTxn, rate float64) *Oscilloscope {
	st, sound, ok := r.Sound().Last()
	if !ok {
		return nil
	}
	osc := &Oscilloscope{
		Time:       st,
		SampleRate: rate,
		Sound:      normalized(sound),
	}

	gt, glottal, ok := r.Glottal().Last()
	if !ok || gt != st || len(glottal) == 0 {
		osc.Glottal = []float64{}
		osc.WindowEnd = float64(len(sound)) * 1000 / rate
		return osc
	}

	start, end, periods := PeriodWindow(glottal, GlottalPeriods)
	full := normalized(glottal)
	osc.Glottal = full[start : end+1]
	osc.WindowStart = float64(start) * 1000 / rate
	osc.WindowEnd = float64(end) * 1000 / rate
	osc.Periods = periods
	return osc
}

func normalized(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	dsp.Normalize(out)
	return out
}

// PeriodWindow returns the sample range [start, end] spanning the last n
// complete periods of x, delimited by positive-to-negative zero crossings,
// and the number of periods found. With fewer crossings the window starts at
// the earliest crossing, or covers all of x when there is none.
func PeriodWindow(x []float64, n int) (start, end, periods int) {
	end = len(x) - 1
	if len(x) < 2 {
		return 0, max(end, 0), 0
	}

	last := lastDownCrossing(x, len(x)-1)
	if last < 0 {
		return 0, end, 0
	}
	end = last
	start = last
	for i := last - 1; i >= 1 && periods < n; i-- {
		if x[i-1] > 0 && x[i] < 0 {
			start = i
			periods++
		}
	}
	if periods == 0 {
		start = 0
	}
	return start, end, periods
}

func lastDownCrossing(x []float64, from int) int {
	for i := from; i >= 1; i-- {
		if x[i-1] > 0 && x[i] < 0 {
			return i
		}
	}
	return -1
}
