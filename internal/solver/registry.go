package solver

import (
	"maps"
	"slices"
	"sync"

	"github.com/tphakala/speechscope/internal/errors"
)

// Default algorithm names per role.
const (
	DefaultPitch            = "autocorrelation"
	DefaultLinearPrediction = "autocorrelation"
	DefaultFormant          = "lpc-roots"
	DefaultInverseGlottal   = "iaif"
)

// Role names a solver capability.
type Role string

const (
	RolePitch            Role = "pitch"
	RoleLinearPrediction Role = "linear-prediction"
	RoleFormant          Role = "formant"
	RoleInverseGlottal   Role = "inverse-glottal"
)

// Set is one solver per role, as consumed by the pipeline.
type Set struct {
	Pitch            PitchSolver
	LinearPrediction LinearPredictionSolver
	Formant          FormantSolver
	InverseGlottal   InverseGlottalSolver
}

// Selection names the algorithm to use for each role.
type Selection struct {
	Pitch            string
	LinearPrediction string
	Formant          string
	InverseGlottal   string
}

// Registry maps algorithm names to constructors. Constructors are called
// for every New call so each pipeline gets private solver state.
type Registry struct {
	mu      sync.RWMutex
	pitch   map[string]func() PitchSolver
	lpc     map[string]func() LinearPredictionSolver
	formant map[string]func() FormantSolver
	glottal map[string]func() InverseGlottalSolver
}

// NewRegistry returns a registry with the built-in algorithms.
func NewRegistry() *Registry {
	r := &Registry{
		pitch:   make(map[string]func() PitchSolver),
		lpc:     make(map[string]func() LinearPredictionSolver),
		formant: make(map[string]func() FormantSolver),
		glottal: make(map[string]func() InverseGlottalSolver),
	}

	r.RegisterPitch("autocorrelation", func() PitchSolver { return NewAutocorrelationPitch() })
	r.RegisterPitch("amdf", func() PitchSolver { return NewAMDFPitch() })
	r.RegisterPitch("spectral", func() PitchSolver { return NewSpectralPitch() })

	r.RegisterLinearPrediction("autocorrelation", func() LinearPredictionSolver { return NewAutocorrelationLPC() })
	r.RegisterLinearPrediction("burg", func() LinearPredictionSolver { return NewBurgLPC() })

	r.RegisterFormant("lpc-roots", func() FormantSolver { return NewRootsFormant() })
	r.RegisterFormant("spectral-peaks", func() FormantSolver { return NewEnvelopeFormant() })

	r.RegisterInverseGlottal("iaif", func() InverseGlottalSolver { return NewIAIF() })
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry of built-in algorithms.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// RegisterPitch adds or replaces a pitch algorithm.
func (r *Registry) RegisterPitch(name string, ctor func() PitchSolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pitch[name] = ctor
}

// RegisterLinearPrediction adds or replaces a linear prediction algorithm.
func (r *Registry) RegisterLinearPrediction(name string, ctor func() LinearPredictionSolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lpc[name] = ctor
}

// RegisterFormant adds or replaces a formant algorithm.
func (r *Registry) RegisterFormant(name string, ctor func() FormantSolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formant[name] = ctor
}

// RegisterInverseGlottal adds or replaces an inverse glottal algorithm.
func (r *Registry) RegisterInverseGlottal(name string, ctor func() InverseGlottalSolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.glottal[name] = ctor
}

// NewPitch constructs the named pitch solver.
func (r *Registry) NewPitch(name string) (PitchSolver, error) {
	return lookup(r, RolePitch, r.pitch, name)
}

// NewLinearPrediction constructs the named linear prediction solver.
func (r *Registry) NewLinearPrediction(name string) (LinearPredictionSolver, error) {
	return lookup(r, RoleLinearPrediction, r.lpc, name)
}

// NewFormant constructs the named formant solver.
func (r *Registry) NewFormant(name string) (FormantSolver, error) {
	return lookup(r, RoleFormant, r.formant, name)
}

// NewInverseGlottal constructs the named inverse glottal solver.
func (r *Registry) NewInverseGlottal(name string) (InverseGlottalSolver, error) {
	return lookup(r, RoleInverseGlottal, r.glottal, name)
}

// NewSet constructs one solver per role. Empty names select the defaults.
func (r *Registry) NewSet(sel Selection) (Set, error) {
	var (
		set Set
		err error
	)
	if set.Pitch, err = r.NewPitch(orDefault(sel.Pitch, DefaultPitch)); err != nil {
		return Set{}, err
	}
	if set.LinearPrediction, err = r.NewLinearPrediction(orDefault(sel.LinearPrediction, DefaultLinearPrediction)); err != nil {
		return Set{}, err
	}
	if set.Formant, err = r.NewFormant(orDefault(sel.Formant, DefaultFormant)); err != nil {
		return Set{}, err
	}
	if set.InverseGlottal, err = r.NewInverseGlottal(orDefault(sel.InverseGlottal, DefaultInverseGlottal)); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Names lists the registered algorithms for role in sorted order.
func (r *Registry) Names(role Role) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch role {
	case RolePitch:
		return slices.Sorted(maps.Keys(r.pitch))
	case RoleLinearPrediction:
		return slices.Sorted(maps.Keys(r.lpc))
	case RoleFormant:
		return slices.Sorted(maps.Keys(r.formant))
	case RoleInverseGlottal:
		return slices.Sorted(maps.Keys(r.glottal))
	}
	return nil
}

func lookup[T any](r *Registry, role Role, m map[string]func() T, name string) (T, error) {
	r.mu.RLock()
	ctor, ok := m[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, errors.New(ErrUnknownAlgorithm).
			Context("role", string(role)).
			Context("algorithm", name).
			Build()
	}
	return ctor(), nil
}

func orDefault(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// Validate reports whether every role in sel names a registered algorithm.
func (r *Registry) Validate(sel Selection) error {
	_, err := r.NewSet(sel)
	return err
}
