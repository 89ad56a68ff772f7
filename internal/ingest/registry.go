package ingest

import (
	"fmt"

	"github.com/prism-search/prism/internal/perr"
)

// StepConfig is one step in a pipeline definition file: exactly one of its
// non-empty fields selects the processor kind.
type StepConfig struct {
	Lowercase string            `yaml:"lowercase"`
	HTMLStrip string            `yaml:"html_strip"`
	Set       *SetStepConfig    `yaml:"set"`
	Remove    string            `yaml:"remove"`
	Rename    *RenameStepConfig `yaml:"rename"`
	Chunk     *ChunkStepConfig  `yaml:"chunk"`
}

// ChunkStepConfig configures a "chunk" step.
type ChunkStepConfig struct {
	Field        string `yaml:"field"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	MinChunkSize int    `yaml:"min_chunk_size"`
}

// SetStepConfig configures a "set" step.
type SetStepConfig struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// RenameStepConfig configures a "rename" step.
type RenameStepConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// PipelineConfig is a named pipeline's on-disk definition.
type PipelineConfig struct {
	Name  string       `yaml:"name"`
	Steps []StepConfig `yaml:"steps"`
}

// Build compiles a PipelineConfig into a runnable Pipeline.
func Build(cfg PipelineConfig) (*Pipeline, error) {
	p := &Pipeline{Name: cfg.Name}
	for i, step := range cfg.Steps {
		proc, err := buildStep(step)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: step %d: %w", cfg.Name, i, err)
		}
		p.Processors = append(p.Processors, proc)
	}
	return p, nil
}

func buildStep(step StepConfig) (Processor, error) {
	switch {
	case step.Lowercase != "":
		return &LowercaseProcessor{Field: step.Lowercase}, nil
	case step.HTMLStrip != "":
		return &HTMLStripProcessor{Field: step.HTMLStrip}, nil
	case step.Set != nil:
		return &SetProcessor{Field: step.Set.Field, Value: step.Set.Value}, nil
	case step.Remove != "":
		return &RemoveProcessor{Field: step.Remove}, nil
	case step.Rename != nil:
		return &RenameProcessor{From: step.Rename.From, To: step.Rename.To}, nil
	case step.Chunk != nil:
		return &ChunkProcessor{
			Field:        step.Chunk.Field,
			ChunkSize:    step.Chunk.ChunkSize,
			ChunkOverlap: step.Chunk.ChunkOverlap,
			MinChunkSize: step.Chunk.MinChunkSize,
		}, nil
	default:
		return nil, perr.Configuration("ingest.unknown_step", "pipeline step names no known processor")
	}
}

// Registry holds every pipeline loaded at startup, keyed by name.
type Registry struct {
	pipelines map[string]*Pipeline
}

// NewRegistry builds a Registry from a set of pipeline configs, compiling
// each one eagerly so a malformed definition fails at load time rather
// than on first use.
func NewRegistry(configs []PipelineConfig) (*Registry, error) {
	r := &Registry{pipelines: make(map[string]*Pipeline, len(configs))}
	for _, cfg := range configs {
		p, err := Build(cfg)
		if err != nil {
			return nil, err
		}
		r.pipelines[cfg.Name] = p
	}
	return r, nil
}

// Get looks up a pipeline by name. An unknown reference is a
// configuration-kind error (request-level 400 at the edge, per spec.md's
// error taxonomy), not a not-found: the caller asked for something that
// was never registered, not something that might exist elsewhere.
func (r *Registry) Get(name string) (*Pipeline, error) {
	p, ok := r.pipelines[name]
	if !ok {
		return nil, perr.Configuration("ingest.unknown_pipeline", fmt.Sprintf("unknown pipeline %q", name))
	}
	return p, nil
}
