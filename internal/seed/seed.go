// Package seed loads process definitions from YAML and creates their stages
// and transitions through the stage service.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/service"
	"github.com/spec-kit/workflow-service/internal/workflow"
)

// Definition describes one process and its stage hierarchy.
type Definition struct {
	ProcessID string            `yaml:"process_id"`
	Stages    []StageDefinition `yaml:"stages"`
}

// StageDefinition is a stage plus its sub-stages. Transitions name the
// target stages; a name must identify exactly one stage in the file.
type StageDefinition struct {
	Name                string            `yaml:"name"`
	Description         string            `yaml:"description"`
	Color               string            `yaml:"color"`
	IsInitial           bool              `yaml:"is_initial"`
	IsFinal             bool              `yaml:"is_final"`
	SLAHours            *int              `yaml:"sla_hours"`
	RequiredPermissions []string          `yaml:"required_permissions"`
	Settings            map[string]any    `yaml:"settings"`
	Transitions         []string          `yaml:"transitions"`
	Children            []StageDefinition `yaml:"children"`
}

// Parse decodes and validates a YAML definition.
func Parse(raw []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a definition from fs.
func LoadFile(fs afero.Fs, path string) (*Definition, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}
	return Parse(raw)
}

// Validate checks the definition without touching storage.
func (d *Definition) Validate() error {
	var errs []error
	if _, err := uuid.Parse(d.ProcessID); err != nil {
		errs = append(errs, fmt.Errorf("process_id %q is not a uuid", d.ProcessID))
	}
	if len(d.Stages) == 0 {
		errs = append(errs, errors.New("at least one stage is required"))
	}

	errs = append(errs, validateLevel(d.Stages, "")...)
	for _, child := range d.Stages {
		errs = append(errs, validateLevel(child.Children, child.Name)...)
		for _, grandchild := range child.Children {
			if len(grandchild.Children) > 0 {
				errs = append(errs, fmt.Errorf("stage %q: sub-stages cannot have children", grandchild.Name))
			}
		}
	}

	counts := d.nameCounts()
	initial := 0
	d.walk(func(stage StageDefinition, _ *StageDefinition) {
		if stage.IsInitial {
			initial++
		}
		for _, target := range stage.Transitions {
			if n := counts[workflow.NameKey(target)]; n == 0 {
				errs = append(errs, fmt.Errorf("stage %q: unknown transition target %q", stage.Name, target))
			} else if n > 1 {
				errs = append(errs, fmt.Errorf("stage %q: ambiguous transition target %q", stage.Name, target))
			}
		}
	})
	if initial > 1 {
		errs = append(errs, fmt.Errorf("%d stages are marked initial", initial))
	}
	return errors.Join(errs...)
}

func validateLevel(stages []StageDefinition, parent string) []error {
	var errs []error
	seen := make(map[string]bool, len(stages))
	for _, stage := range stages {
		key := workflow.NameKey(stage.Name)
		if key == "" {
			errs = append(errs, fmt.Errorf("stage under %q has no name", parent))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate stage name %q under %q", stage.Name, parent))
		}
		seen[key] = true
		if stage.SLAHours != nil && *stage.SLAHours <= 0 {
			errs = append(errs, fmt.Errorf("stage %q: sla_hours must be positive", stage.Name))
		}
	}
	return errs
}

func (d *Definition) nameCounts() map[string]int {
	counts := map[string]int{}
	d.walk(func(stage StageDefinition, _ *StageDefinition) {
		counts[workflow.NameKey(stage.Name)]++
	})
	return counts
}

// walk visits parents before their children.
func (d *Definition) walk(visit func(stage StageDefinition, parent *StageDefinition)) {
	for i := range d.Stages {
		root := d.Stages[i]
		visit(root, nil)
		for _, child := range root.Children {
			visit(child, &root)
		}
	}
}

// Apply creates every stage in one transaction, parents first, then wires
// the named transitions. The returned ids are keyed by stage path: "Name"
// for root stages and "Parent/Name" for sub-stages.
func Apply(ctx context.Context, tx repository.Transactor, stages *service.StageService, def *Definition) (map[string]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	ids := map[string]string{}
	byName := map[string]string{}
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		var createErr error
		def.walk(func(stage StageDefinition, parent *StageDefinition) {
			if createErr != nil {
				return
			}
			input := service.StageCreateInput{
				ProcessID:           def.ProcessID,
				Name:                strings.TrimSpace(stage.Name),
				Description:         stage.Description,
				Color:               stage.Color,
				IsInitial:           stage.IsInitial,
				IsFinal:             stage.IsFinal,
				SLAHours:            stage.SLAHours,
				RequiredPermissions: stage.RequiredPermissions,
				Settings:            stage.Settings,
			}
			if parent != nil {
				parentID := ids[stagePath(nil, *parent)]
				input.ParentStageID = &parentID
			}
			created, err := stages.Create(ctx, input)
			if err != nil {
				createErr = fmt.Errorf("create stage %q: %w", stage.Name, err)
				return
			}
			ids[stagePath(parent, stage)] = created.ID
			byName[workflow.NameKey(stage.Name)] = created.ID
		})
		if createErr != nil {
			return createErr
		}

		var linkErr error
		def.walk(func(stage StageDefinition, parent *StageDefinition) {
			if linkErr != nil || len(stage.Transitions) == 0 {
				return
			}
			targets := make([]string, 0, len(stage.Transitions))
			for _, name := range stage.Transitions {
				targets = append(targets, byName[workflow.NameKey(name)])
			}
			patch := service.StagePatch{AllowedTransitions: &targets}
			if _, err := stages.Update(ctx, ids[stagePath(parent, stage)], patch); err != nil {
				linkErr = fmt.Errorf("set transitions of %q: %w", stage.Name, err)
			}
		})
		return linkErr
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(ids))
	def.walk(func(stage StageDefinition, parent *StageDefinition) {
		name := strings.TrimSpace(stage.Name)
		if parent != nil {
			name = strings.TrimSpace(parent.Name) + "/" + name
		}
		out[name] = ids[stagePath(parent, stage)]
	})
	return out, nil
}

func stagePath(parent *StageDefinition, stage StageDefinition) string {
	if parent == nil {
		return workflow.NameKey(stage.Name)
	}
	return workflow.NameKey(parent.Name) + "/" + workflow.NameKey(stage.Name)
}
