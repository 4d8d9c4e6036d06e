package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Scenario declares a graph, a sequence of frames that drive it and the
// outputs expected along the way.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// FrameRate is the simulated frame rate. Zero means 60.
	FrameRate float64 `yaml:"frame_rate,omitempty" json:"frame_rate,omitempty"`

	// Strict makes variant mismatches fail the run.
	Strict bool `yaml:"strict,omitempty" json:"strict,omitempty"`

	// Budget overrides the run-again budget. Zero keeps the default.
	Budget int `yaml:"budget,omitempty" json:"budget,omitempty"`

	Nodes  []NodeDecl `yaml:"nodes" json:"nodes"`
	Edges  []EdgeDecl `yaml:"edges,omitempty" json:"edges,omitempty"`
	Frames []Frame    `yaml:"frames" json:"frames"`
}

// NodeDecl declares one node. ID is the name the rest of the scenario
// uses; the engine assigns its own ids.
type NodeDecl struct {
	ID     string `yaml:"id" json:"id"`
	Kind   string `yaml:"kind" json:"kind"`
	Type   string `yaml:"type,omitempty" json:"type,omitempty"`
	Inputs int    `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Set holds initial literals keyed by input index.
	Set map[int]any `yaml:"set,omitempty" json:"set,omitempty"`
}

// EdgeDecl connects output From to input To. Both are "node.port".
type EdgeDecl struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Frame is a batch of edits followed by one or more steps.
type Frame struct {
	Set        []SetInput `yaml:"set,omitempty" json:"set,omitempty"`
	Pulse      []string   `yaml:"pulse,omitempty" json:"pulse,omitempty"`
	Dirty      []string   `yaml:"dirty,omitempty" json:"dirty,omitempty"`
	Gesture    []Gesture  `yaml:"gesture,omitempty" json:"gesture,omitempty"`
	Connect    []EdgeDecl `yaml:"connect,omitempty" json:"connect,omitempty"`
	Disconnect []string   `yaml:"disconnect,omitempty" json:"disconnect,omitempty"`
	Remove     []string   `yaml:"remove,omitempty" json:"remove,omitempty"`
	Restart    bool       `yaml:"restart,omitempty" json:"restart,omitempty"`

	// Repeat runs this many steps after the edits. Zero means one.
	Repeat int `yaml:"repeat,omitempty" json:"repeat,omitempty"`

	// Settle keeps stepping until no node is dirty, up to MaxSettleSteps.
	Settle bool `yaml:"settle,omitempty" json:"settle,omitempty"`

	// Expect is checked after the last step of the frame.
	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// SetInput writes a literal to an input ("node.port").
type SetInput struct {
	Port  string `yaml:"port" json:"port"`
	Value any    `yaml:"value" json:"value"`
}

// Gesture drives a scroll interaction node.
type Gesture struct {
	Node        string `yaml:"node" json:"node"`
	Index       int    `yaml:"index,omitempty" json:"index,omitempty"`
	Drag        string `yaml:"drag" json:"drag"` // start, move or end
	Translation any    `yaml:"translation,omitempty" json:"translation,omitempty"`
	Velocity    any    `yaml:"velocity,omitempty" json:"velocity,omitempty"`
}

// Drag phases accepted by Gesture.Drag.
const (
	DragStart = "start"
	DragMove  = "move"
	DragEnd   = "end"
)

// Expect lists the conditions checked after a frame.
type Expect struct {
	Outputs   []ExpectOutput `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Evaluated []string       `yaml:"evaluated,omitempty" json:"evaluated,omitempty"`
	Skipped   []ExpectSkip   `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	Idle      *bool          `yaml:"idle,omitempty" json:"idle,omitempty"`
}

// ExpectOutput compares an output ("node.port") to a value. A positive
// tolerance compares numeric components approximately.
type ExpectOutput struct {
	Port      string  `yaml:"port" json:"port"`
	Value     any     `yaml:"value" json:"value"`
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// ExpectSkip expects a skip with the given code on a node during the
// frame's last step.
type ExpectSkip struct {
	Node string `yaml:"node" json:"node"`
	Code string `yaml:"code" json:"code"`
}

// MaxSettleSteps bounds a settling frame.
const MaxSettleSteps = 2000

// PortRef is a parsed "node.port" reference.
type PortRef struct {
	Node  string
	Index int
}

func (r PortRef) String() string { return fmt.Sprintf("%s.%d", r.Node, r.Index) }

// ParsePortRef parses "node.port". A bare node name means port 0.
func ParsePortRef(s string) (PortRef, error) {
	dot := strings.LastIndex(s, ".")
	if dot < 0 {
		if s == "" {
			return PortRef{}, fmt.Errorf("empty port reference")
		}
		return PortRef{Node: s}, nil
	}
	idx, err := strconv.Atoi(s[dot+1:])
	if err != nil || idx < 0 {
		return PortRef{}, fmt.Errorf("port reference %q: invalid port index", s)
	}
	if dot == 0 {
		return PortRef{}, fmt.Errorf("port reference %q: missing node", s)
	}
	return PortRef{Node: s[:dot], Index: idx}, nil
}

// LoadScenario reads a scenario file. Files ending in .cue are checked
// against the scenario schema with CUE; anything else is parsed as YAML.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return ParseCUE(data, path)
	}
	return ParseYAML(data)
}

// ParseYAML parses a YAML scenario with strict field validation; unknown
// fields (typos) are errors.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks references and required fields. Every problem is
// reported, not just the first.
func Validate(s *Scenario) error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if s.Name == "" {
		fail("name is required")
	}
	if len(s.Nodes) == 0 {
		fail("nodes list is required and must be non-empty")
	}
	if len(s.Frames) == 0 {
		fail("frames list is required and must be non-empty")
	}
	if s.FrameRate < 0 {
		fail("frame_rate must be non-negative")
	}

	declared := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		switch {
		case n.ID == "":
			fail("nodes[%d]: id is required", i)
		case strings.Contains(n.ID, "."):
			fail("nodes[%d]: id %q must not contain '.'", i, n.ID)
		case declared[n.ID]:
			fail("nodes[%d]: duplicate id %q", i, n.ID)
		}
		declared[n.ID] = true
		if n.Kind == "" {
			fail("nodes[%d]: kind is required", i)
		}
		if n.Type != "" {
			if _, err := value.ParseKind(n.Type); err != nil {
				fail("nodes[%d]: %v", i, err)
			}
		}
	}

	// Nodes added later by connect edits are not allowed; removed nodes stay
	// valid references so scenarios can exercise missing references.
	ref := func(where, s string) {
		r, err := ParsePortRef(s)
		if err != nil {
			fail("%s: %v", where, err)
			return
		}
		if !declared[r.Node] {
			fail("%s: unknown node %q", where, r.Node)
		}
	}
	for i, e := range s.Edges {
		ref(fmt.Sprintf("edges[%d].from", i), e.From)
		ref(fmt.Sprintf("edges[%d].to", i), e.To)
	}
	for i, f := range s.Frames {
		at := func(field string, j int) string { return fmt.Sprintf("frames[%d].%s[%d]", i, field, j) }
		for j, in := range f.Set {
			ref(at("set", j), in.Port)
			if in.Value == nil {
				fail("%s: value is required", at("set", j))
			}
		}
		for j, p := range f.Pulse {
			ref(at("pulse", j), p)
		}
		for j, e := range f.Connect {
			ref(at("connect", j)+".from", e.From)
			ref(at("connect", j)+".to", e.To)
		}
		for j, p := range f.Disconnect {
			ref(at("disconnect", j), p)
		}
		for j, n := range f.Remove {
			ref(at("remove", j), n)
		}
		for j, g := range f.Gesture {
			ref(at("gesture", j), g.Node)
			switch g.Drag {
			case DragStart, DragMove, DragEnd:
			default:
				fail("%s: unknown drag phase %q", at("gesture", j), g.Drag)
			}
		}
		if f.Repeat < 0 {
			fail("frames[%d]: repeat must be non-negative", i)
		}
		if f.Settle && f.Repeat > 0 {
			fail("frames[%d]: settle and repeat are exclusive", i)
		}
		if f.Expect == nil {
			continue
		}
		for j, o := range f.Expect.Outputs {
			ref(fmt.Sprintf("frames[%d].expect.outputs[%d]", i, j), o.Port)
		}
		for j, n := range f.Expect.Evaluated {
			ref(fmt.Sprintf("frames[%d].expect.evaluated[%d]", i, j), n)
		}
		for j, sk := range f.Expect.Skipped {
			if sk.Code == "" {
				fail("frames[%d].expect.skipped[%d]: code is required", i, j)
			}
		}
	}
	return result.ErrorOrNil()
}
