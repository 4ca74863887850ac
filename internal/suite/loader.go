package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// document mirrors the YAML layout of a suite file.
type document struct {
	Configuration *configDoc `yaml:"configuration"`
	Tests         []testDoc  `yaml:"tests"`
}

type configDoc struct {
	Valgrind    bool       `yaml:"valgrind"`
	Environment stringList `yaml:"environment"`
	Volatile    stringList `yaml:"volatile"`
	Setup       stringList `yaml:"setup"`
}

type testDoc struct {
	Name     scalar     `yaml:"name"`
	Run      scalar     `yaml:"run"`
	Setup    stringList `yaml:"setup"`
	Input    scalar     `yaml:"input"`
	Output   scalar     `yaml:"output"`
	Exit     *int       `yaml:"exit"`
	Timeout  *int       `yaml:"timeout"`
	Valgrind *bool      `yaml:"valgrind"`
}

// scalar keeps the literal text of a YAML scalar, so "output: 7" expects the
// string "7". A null or absent value leaves Set false.
type scalar struct {
	Value string
	Set   bool
}

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	s.Value = node.Value
	s.Set = true
	return nil
}

// stringList accepts either a single scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		items := make(stringList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a string", item.Line)
			}
			items = append(items, item.Value)
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

func (l stringList) orEmpty() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

// Load reads the suite file at path and resolves it into a Suite.
// Read failures are returned as *FileError, content problems as
// *InvalidSuiteError.
func Load(path, sentinel string) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return Resolve(path, content, sentinel)
}

// Resolve turns file content into a Suite in two steps: the whole content is
// parsed as a document, and only if it is not a suite document on its own
// (see IsNotDocument) is the embedded block extracted and parsed instead.
// When the file has no block, the whole-document error is returned.
func Resolve(path string, content []byte, sentinel string) (*Suite, error) {
	s, err := Parse(path, content)
	if err == nil || !IsNotDocument(err) {
		return s, err
	}

	block, blockErr := Extract(content, sentinel)
	if blockErr != nil {
		var ise *InvalidSuiteError
		if errors.As(blockErr, &ise) {
			ise.Path = path
			return nil, ise
		}
		return nil, &InvalidSuiteError{Path: path, Err: blockErr}
	}
	if !block.Embedded {
		return nil, err
	}

	s, err = Parse(path, []byte(block.Document))
	if err != nil {
		var ise *InvalidSuiteError
		if errors.As(err, &ise) && ise.Line > 0 {
			ise.Line += block.StartLine
		}
		return nil, err
	}
	return s, nil
}

// Parse parses one YAML document into a Suite, merging the configuration
// onto DefaultConfiguration and every test onto the test defaults.
func Parse(path string, doc []byte) (*Suite, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(doc)).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InvalidSuiteError{Path: path, Err: ErrEmptyDocument}
		}
		return nil, &InvalidSuiteError{
			Path: path,
			Line: yamlErrorLine(err),
			Err:  fmt.Errorf("%w: %v", ErrSyntax, err),
		}
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &InvalidSuiteError{Path: path, Err: ErrEmptyDocument}
	}
	m := root.Content[0]
	if m.Kind == yaml.ScalarNode && m.ShortTag() == "!!null" {
		return nil, &InvalidSuiteError{Path: path, Err: ErrEmptyDocument}
	}
	if m.Kind != yaml.MappingNode {
		return nil, &InvalidSuiteError{Path: path, Line: m.Line, Err: ErrNotMapping}
	}

	testsNode := mappingValue(m, "tests")
	if testsNode == nil {
		return nil, &InvalidSuiteError{Path: path, Line: m.Line, Err: ErrNoTests}
	}
	if testsNode.Kind != yaml.SequenceNode {
		return nil, &InvalidSuiteError{
			Path: path,
			Line: testsNode.Line,
			Err:  fmt.Errorf("%w: tests must be a list", ErrSchema),
		}
	}

	var d document
	if err := m.Decode(&d); err != nil {
		return nil, &InvalidSuiteError{
			Path: path,
			Line: yamlErrorLine(err),
			Err:  fmt.Errorf("%w: %v", ErrSchema, err),
		}
	}

	for i, td := range d.Tests {
		line := testsNode.Content[i].Line
		if !td.Name.Set || td.Name.Value == "" {
			return nil, &InvalidSuiteError{Path: path, Line: line, Err: fmt.Errorf("%w: tests[%d].name", ErrMissingField, i)}
		}
		if !td.Run.Set || td.Run.Value == "" {
			return nil, &InvalidSuiteError{Path: path, Line: line, Err: fmt.Errorf("%w: tests[%d].run", ErrMissingField, i)}
		}
	}

	if line, err := validateSchema(m); err != nil {
		return nil, &InvalidSuiteError{Path: path, Line: line, Err: err}
	}

	return build(path, &d), nil
}

func build(path string, d *document) *Suite {
	cfg := DefaultConfiguration()
	if d.Configuration != nil {
		cfg.Valgrind = d.Configuration.Valgrind
		cfg.Environment = d.Configuration.Environment.orEmpty()
		cfg.Volatile = d.Configuration.Volatile.orEmpty()
		cfg.Setup = d.Configuration.Setup.orEmpty()
	}

	s := &Suite{
		Path:          path,
		Configuration: cfg,
		Tests:         make([]*Test, 0, len(d.Tests)),
	}

	for _, td := range d.Tests {
		t := NewTest(td.Name.Value, td.Run.Value)
		t.Setup = td.Setup.orEmpty()
		if td.Input.Set {
			v := td.Input.Value
			t.Input = &v
		}
		if td.Output.Set {
			v := td.Output.Value
			t.ExpectedOutput = &v
		}
		if td.Exit != nil {
			v := *td.Exit
			t.ExpectedExit = &v
		}
		if td.Timeout != nil {
			t.Timeout = *td.Timeout
		}
		// A per-test flag wins over the suite flag in both directions.
		t.Valgrind = cfg.Valgrind
		if td.Valgrind != nil {
			t.Valgrind = *td.Valgrind
		}
		s.Tests = append(s.Tests, t)
	}

	return s
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine pulls the first line number out of a yaml.v3 error message.
func yamlErrorLine(err error) int {
	match := yamlLinePattern.FindStringSubmatch(err.Error())
	if match == nil {
		return 0
	}
	line, _ := strconv.Atoi(match[1])
	return line
}
