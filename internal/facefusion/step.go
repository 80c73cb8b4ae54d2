package facefusion

// Processor names understood by the external tool.
const (
	ProcessorFaceSwapper   = "face_swapper"
	ProcessorFaceEnhancer  = "face_enhancer"
	ProcessorFaceEditor    = "face_editor"
	ProcessorFrameEnhancer = "frame_enhancer"
)

// Option is one extra command-line flag attached to a step, e.g.
// {Flag: "--output-video-quality", Value: "90"}. An empty Value emits the flag alone.
type Option struct {
	Flag  string `yaml:"flag" json:"flag"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Step is a single processing instruction attached to a job before submission.
type Step struct {
	Sources    []string `json:"sources,omitempty"`
	Target     string   `json:"target"`
	Output     string   `json:"output"`
	Processors []string `json:"processors"`
	Options    []Option `json:"options,omitempty"`
}

// Args renders the step as job-add-step arguments (without the job name).
// "-s" is omitted when the step has no source, as enhance-only steps do.
func (s Step) Args() []string {
	args := make([]string, 0, 8+len(s.Sources)+len(s.Processors)+2*len(s.Options))
	if len(s.Sources) > 0 {
		args = append(args, "-s")
		args = append(args, s.Sources...)
	}
	args = append(args, "-t", s.Target, "-o", s.Output)
	if len(s.Processors) > 0 {
		args = append(args, "--processors")
		args = append(args, s.Processors...)
	}
	for _, opt := range s.Options {
		args = append(args, opt.Flag)
		if opt.Value != "" {
			args = append(args, opt.Value)
		}
	}
	return args
}
