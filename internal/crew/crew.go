package crew

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
)

// Role names.
const (
	RoleResearcher   = "researcher"
	RoleWriter       = "writer"
	RoleBoardUpdater = "board_updater"
)

// Task names, in execution order.
const (
	TaskResearch = "research"
	TaskArticle  = "article"
	TaskPublish  = "publish"
)

// Order is the fixed task sequence applied to every card.
var Order = []string{TaskResearch, TaskArticle, TaskPublish}

var requiredRoles = []string{RoleResearcher, RoleWriter, RoleBoardUpdater}

// Work is the mutable per-card state passed from stage to stage.
type Work struct {
	Item     domain.WorkItem
	State    domain.ItemState
	Findings domain.ResearchFindings
	Article  domain.Article
	// Model overrides the writer model; empty means the configured one.
	Model string
}

// Stage is the behaviour behind one task.
type Stage interface {
	Name() string
	// Completes is the state a card reaches once the stage succeeds.
	Completes() domain.ItemState
	Run(ctx context.Context, task *Task, work *Work) error
}

// Registry keeps a mapping from task names to stage implementations.
type Registry struct {
	stages map[string]Stage
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: map[string]Stage{}}
}

// Register adds or replaces a stage implementation.
func (r *Registry) Register(stage Stage) {
	if r.stages == nil {
		r.stages = map[string]Stage{}
	}
	r.stages[stage.Name()] = stage
}

// Resolve returns a stage by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Stage, error) {
	if stage, ok := r.stages[name]; ok {
		return stage, nil
	}
	return nil, fmt.Errorf("stage %s is not registered", name)
}

// Role is a configured crew member.
type Role struct {
	Name      string
	Title     string
	goal      *template.Template
	Backstory string
}

// PromptData is what task and role templates are rendered against.
type PromptData struct {
	Item     domain.WorkItem
	Findings domain.ResearchFindings
	Article  domain.Article
	Role     Role
}

// Task binds a configured task to its role and stage.
type Task struct {
	Name       string
	Role       Role
	OutputFile string
	Stage      Stage

	description *template.Template
	expected    *template.Template
}

// Crew is the validated roster.
type Crew struct {
	roles map[string]Role
	tasks []*Task
}

// Build validates the configured roster against the registry. Any problem is
// reported as a config error before a single card is touched.
func Build(agents map[string]config.AgentConfig, tasks map[string]config.TaskConfig, registry *Registry) (*Crew, error) {
	if registry == nil {
		return nil, xerrors.New(xerrors.CodeConfig, "stage registry is nil")
	}

	c := &Crew{roles: map[string]Role{}}
	for _, name := range requiredRoles {
		if _, ok := agents[name]; !ok {
			return nil, xerrors.Newf(xerrors.CodeConfig, "agent %q is not configured", name)
		}
	}
	for _, name := range sortedKeys(agents) {
		agent := agents[name]
		goal, err := parse("agent "+name+" goal", agent.Goal)
		if err != nil {
			return nil, err
		}
		c.roles[name] = Role{Name: name, Title: agent.Role, goal: goal, Backstory: agent.Backstory}
	}

	for _, name := range Order {
		cfg, ok := tasks[name]
		if !ok {
			return nil, xerrors.Newf(xerrors.CodeConfig, "task %q is not configured", name)
		}
		role, ok := c.roles[cfg.Agent]
		if !ok {
			return nil, xerrors.Newf(xerrors.CodeConfig, "task %q refers to unknown agent %q", name, cfg.Agent)
		}
		stage, err := registry.Resolve(name)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfig, err, "task "+name)
		}
		description, err := parse("task "+name+" description", cfg.Description)
		if err != nil {
			return nil, err
		}
		expected, err := parse("task "+name+" expected output", cfg.ExpectedOutput)
		if err != nil {
			return nil, err
		}
		c.tasks = append(c.tasks, &Task{
			Name:        name,
			Role:        role,
			OutputFile:  cfg.OutputFile,
			Stage:       stage,
			description: description,
			expected:    expected,
		})
	}
	return c, nil
}

// Tasks returns the tasks in execution order.
func (c *Crew) Tasks() []*Task {
	return c.tasks
}

// Task returns one task by name.
func (c *Crew) Task(name string) (*Task, bool) {
	for _, t := range c.tasks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// OutputFiles lists the artifact files the tasks write to.
func (c *Crew) OutputFiles() []string {
	var files []string
	for _, t := range c.tasks {
		if t.OutputFile != "" {
			files = append(files, t.OutputFile)
		}
	}
	return files
}

// Description renders the task description for the given work.
func (t *Task) Description(work *Work) (string, error) {
	return t.render(t.description, work)
}

// ExpectedOutput renders the expected-output hint for the given work.
func (t *Task) ExpectedOutput(work *Work) (string, error) {
	return t.render(t.expected, work)
}

// SystemPrompt introduces the task's role to the model.
func (t *Task) SystemPrompt(work *Work) (string, error) {
	goal, err := t.render(t.Role.goal, work)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s.", t.Role.Title)
	if goal != "" {
		fmt.Fprintf(&b, " Your goal: %s.", strings.TrimSuffix(goal, "."))
	}
	if t.Role.Backstory != "" {
		b.WriteString(" ")
		b.WriteString(t.Role.Backstory)
	}
	return b.String(), nil
}

func (t *Task) render(tmpl *template.Template, work *Work) (string, error) {
	if tmpl == nil {
		return "", nil
	}
	data := PromptData{Role: t.Role}
	if work != nil {
		data.Item = work.Item
		data.Findings = work.Findings
		data.Article = work.Article
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", xerrors.Wrap(xerrors.CodeConfig, err, "render "+tmpl.Name())
	}
	return strings.TrimSpace(buf.String()), nil
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfig, err, "parse "+name)
	}
	return tmpl, nil
}

func sortedKeys(m map[string]config.AgentConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
