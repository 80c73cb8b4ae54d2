package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"github.com/kozaktomas/fusion-batch/internal/presets"
)

// ErrNoSource is returned for a single-source batch without a source image.
var ErrNoSource = errors.New("source image is required")

// Planner turns requests into plans using a preset catalog.
type Planner struct {
	catalog *presets.Catalog
}

// NewPlanner creates a planner over the given catalog.
func NewPlanner(catalog *presets.Catalog) *Planner {
	if catalog == nil {
		catalog = presets.Default()
	}
	return &Planner{catalog: catalog}
}

// Discover lists the input files of a request. With Verify set, webp, bmp and
// tiff images are listed too, and images whose header cannot be decoded are
// left out and reported in rejected.
func (p *Planner) Discover(req Request) (in Inputs, rejected []string, err error) {
	kinds := req.Media
	if len(kinds) == 0 {
		kinds = DefaultMedia(req.Kind)
	}

	list := media.ListFiles
	if req.Verify {
		list = media.ListProbed
	}

	in.Files, err = list(req.FilesDir, kinds...)
	if err != nil {
		return Inputs{}, nil, err
	}
	if req.Verify {
		var bad []string
		in.Files, bad = media.FilterReadable(req.FilesDir, in.Files)
		rejected = append(rejected, prefixAll(req.FilesDir, bad)...)
	}

	if req.Kind == KindPairwise || req.Kind == KindMatrix {
		in.Faces, err = list(req.MainDir, media.KindImage)
		if err != nil {
			return Inputs{}, nil, err
		}
		if req.Verify {
			var bad []string
			in.Faces, bad = media.FilterReadable(req.MainDir, in.Faces)
			rejected = append(rejected, prefixAll(req.MainDir, bad)...)
		}
	}
	return in, rejected, nil
}

// Plan discovers inputs and builds the plan for a request.
func (p *Planner) Plan(req Request) (*Plan, error) {
	in, rejected, err := p.Discover(req)
	if err != nil {
		return nil, err
	}
	plan, err := p.Build(req, in)
	if err != nil {
		return nil, err
	}
	plan.Rejected = rejected
	return plan, nil
}

// Build creates the plan for already discovered inputs. It touches no files.
func (p *Planner) Build(req Request, in Inputs) (*Plan, error) {
	preset := req.Preset
	if preset == "" {
		preset = DefaultPreset(req.Kind)
	}
	if _, err := p.catalog.Get(preset); err != nil {
		return nil, err
	}

	var (
		tasks []Task
		err   error
	)
	switch req.Kind {
	case KindSingle:
		tasks, err = p.singleSource(req, preset, in.Files)
	case KindPairwise:
		tasks, err = p.pairwise(req, preset, in.Faces, in.Files)
	case KindMatrix:
		tasks, err = p.matrix(req, preset, in.Files, in.Faces)
	case KindEnhance:
		tasks, err = p.enhance(req, preset, in.Files)
	case KindRestore:
		tasks, err = p.restore(req, preset, in.Files)
	default:
		return nil, fmt.Errorf("unknown batch kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%s batch: %w", req.Kind, media.ErrNoInputs)
	}

	uniqueJobNames(tasks)
	return &Plan{
		Kind:          req.Kind,
		Preset:        preset,
		Tasks:         tasks,
		DeleteSources: req.DeleteSources,
		Sweep:         req.Sweep,
	}, nil
}

// singleSource puts one source face onto every file: output_<file>.
func (p *Planner) singleSource(req Request, preset string, files []string) ([]Task, error) {
	if req.SourceFile == "" {
		return nil, ErrNoSource
	}
	resolved, err := p.catalog.Resolve(preset, filepath.Base(req.SourceFile))
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(files))
	for _, file := range files {
		target := filepath.Join(req.FilesDir, file)
		output := filepath.Join(req.OutputDir, constants.OutputPrefixSwap+file)
		tasks = append(tasks, Task{
			Job:    facefusion.JobName(constants.JobPrefixSwap, file),
			Preset: resolved.Name,
			Step:   resolved.Step([]string{req.SourceFile}, target, output),
			Delete: DeleteNone,
			Group:  target,
			Label:  file,
		})
	}
	return tasks, nil
}

// pairwise crosses every source image with every target file: output_<image>_<file>.
func (p *Planner) pairwise(req Request, preset string, images, files []string) ([]Task, error) {
	tasks := make([]Task, 0, len(images)*len(files))
	for _, image := range images {
		resolved, err := p.catalog.Resolve(preset, image)
		if err != nil {
			return nil, err
		}
		source := filepath.Join(req.MainDir, image)
		for _, file := range files {
			target := filepath.Join(req.FilesDir, file)
			output := filepath.Join(req.OutputDir, constants.OutputPrefixSwap+image+"_"+file)
			tasks = append(tasks, Task{
				Job:    facefusion.JobName(constants.JobPrefixSwap, image, file),
				Preset: resolved.Name,
				Step:   resolved.Step([]string{source}, target, output),
				Delete: DeleteNone,
				Group:  source,
				Label:  image + " -> " + file,
			})
		}
	}
	return tasks, nil
}

// matrix swaps every face onto every input file, one subfolder per face:
// <out>/<faceStem>/<fileStem>_<face>. The input file is the group.
func (p *Planner) matrix(req Request, preset string, files, faces []string) ([]Task, error) {
	tasks := make([]Task, 0, len(files)*len(faces))
	for _, file := range files {
		target := filepath.Join(req.FilesDir, file)
		for _, face := range faces {
			resolved, err := p.catalog.Resolve(preset, face)
			if err != nil {
				return nil, err
			}
			source := filepath.Join(req.MainDir, face)
			output := filepath.Join(req.OutputDir, media.Stem(face), media.Stem(file)+"_"+face)
			tasks = append(tasks, Task{
				Job:    facefusion.JobName(constants.JobPrefixMatrix, file, face),
				Preset: resolved.Name,
				Step:   resolved.Step([]string{source}, target, output),
				Delete: DeletePerJob,
				Group:  target,
				Label:  file + " -> " + face,
			})
		}
	}
	return tasks, nil
}

// enhance runs the enhance preset on every file: enhanced_<file>.
func (p *Planner) enhance(req Request, preset string, files []string) ([]Task, error) {
	resolved, err := p.catalog.Get(preset)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(files))
	for _, file := range files {
		target := filepath.Join(req.FilesDir, file)
		output := filepath.Join(req.OutputDir, constants.OutputPrefixEnhance+file)
		tasks = append(tasks, Task{
			Job:    facefusion.JobName(constants.JobPrefixEnhance, file),
			Preset: resolved.Name,
			Step:   resolved.Step(nil, target, output),
			Delete: DeleteNone,
			Group:  target,
			Label:  file,
		})
	}
	return tasks, nil
}

// restore chains iterations per file; iteration i reads the output of i-1:
// <out>/<stem>/<stem>_iteration_<i><ext>.
func (p *Planner) restore(req Request, preset string, files []string) ([]Task, error) {
	iterations := req.Iterations
	if iterations == 0 {
		iterations = constants.DefaultRestoreIterations
	}
	if iterations < 1 || iterations > constants.MaxRestoreIterations {
		return nil, fmt.Errorf("iterations must be between 1 and %d, got %d", constants.MaxRestoreIterations, iterations)
	}
	resolved, err := p.catalog.Get(preset)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(files)*iterations)
	for _, file := range files {
		stem := media.Stem(file)
		ext := filepath.Ext(file)
		original := filepath.Join(req.FilesDir, file)
		input := original
		previous := ""
		for i := 1; i <= iterations; i++ {
			n := strconv.Itoa(i)
			output := filepath.Join(req.OutputDir, stem, stem+constants.IterationInfix+n+ext)
			job := facefusion.JobName(constants.JobPrefixEnhance, stem, constants.IterationJobInfix, n)
			tasks = append(tasks, Task{
				Job:    job,
				Preset: resolved.Name,
				Step:   resolved.Step(nil, input, output),
				Delete: DeleteNone,
				Group:  original,
				After:  previous,
				Label:  fmt.Sprintf("%s iteration %d/%d", file, i, iterations),
			})
			input = output
			previous = job
		}
	}
	return tasks, nil
}

// uniqueJobNames suffixes repeated job names with _2, _3, ... so that two
// inputs sanitized to the same name never share a job. After references
// are rewritten accordingly.
func uniqueJobNames(tasks []Task) {
	seen := make(map[string]int, len(tasks))
	renamed := make(map[string]string)
	for i := range tasks {
		name := tasks[i].Job
		if after, ok := renamed[tasks[i].After]; ok {
			tasks[i].After = after
		}
		seen[name]++
		if seen[name] == 1 {
			continue
		}
		unique := name + "_" + strconv.Itoa(seen[name])
		for seen[unique] > 0 {
			seen[name]++
			unique = name + "_" + strconv.Itoa(seen[name])
		}
		seen[unique] = 1
		tasks[i].Job = unique
		renamed[name] = unique
	}
}

func prefixAll(dir string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(dir, n))
	}
	return out
}
