// Package batch scores many model/trace triples in parallel from a
// JSON manifest, fanning results out to stdout, the run log and the
// score database.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
	"matterswarm/schemas"
)

// Job names one problem: a trace plus the source and/or target model.
// A missing source means construction from empty; a missing target
// means deconstruction to empty.
type Job struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Trace  string `json:"trace"`
}

type Manifest struct {
	Tuning string `json:"tuning,omitempty"`
	Jobs   []Job  `json:"jobs"`
}

// Result is the outcome of scoring one job. Err carries simulator
// aborts and file errors; Status distinguishes match from mismatch
// among runs that halted cleanly.
type Result struct {
	Job    Job
	Status validate.Status
	Energy int64
	Steps  int
	Err    error
}

// LoadManifest reads, schema-checks and decodes a manifest. Relative
// job paths resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	schema, err := jsonschema.CompileString("manifest.schema.json", schemas.Manifest)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}

	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	m.Tuning = resolve(m.Tuning)
	for i := range m.Jobs {
		m.Jobs[i].Source = resolve(m.Jobs[i].Source)
		m.Jobs[i].Target = resolve(m.Jobs[i].Target)
		m.Jobs[i].Trace = resolve(m.Jobs[i].Trace)
	}
	return &m, nil
}

// Score runs one job to completion.
func Score(job Job, costs tuning.Costs) Result {
	res := Result{Job: job}

	var src, tgt *model.Matrix
	var err error
	if job.Source != "" {
		if src, err = model.ReadFile(job.Source); err != nil {
			res.Err = fmt.Errorf("source model: %w", err)
			return res
		}
	}
	if job.Target != "" {
		if tgt, err = model.ReadFile(job.Target); err != nil {
			res.Err = fmt.Errorf("target model: %w", err)
			return res
		}
	}
	cmds, err := trace.ReadFile(job.Trace)
	if err != nil {
		res.Err = fmt.Errorf("trace: %w", err)
		return res
	}

	r, err := validate.Run(src, tgt, cmds, costs)
	if err != nil {
		res.Err = err
		return res
	}
	res.Status = r.Status
	res.Energy = r.Energy
	res.Steps = r.Steps
	return res
}

// Run scores every job with up to workers goroutines and sends results
// to sink in manifest order. It stops early only when the context is
// cancelled; job failures are results, not errors.
func Run(ctx context.Context, m *Manifest, workers int, costs tuning.Costs, sink func(Result) error) error {
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(m.Jobs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, job := range m.Jobs {
		i, job := i, job
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Score(job, costs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		if err := sink(r); err != nil {
			return err
		}
	}
	return nil
}
