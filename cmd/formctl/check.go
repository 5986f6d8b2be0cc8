package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zoobzio/formstate"
	"github.com/zoobzio/formstate/definition"
)

// report is the printed outcome of a check.
type report struct {
	Record      formstate.Record `json:"record" yaml:"record"`
	Errors      formstate.Errors `json:"errors" yaml:"errors"`
	Eligibility string           `json:"eligibility" yaml:"eligibility"`
	Checks      map[string]bool  `json:"checks,omitempty" yaml:"checks,omitempty"`
	Override    string           `json:"override" yaml:"override"`
}

func newReport(ctrl *formstate.Controller) report {
	return report{
		Record:      ctrl.Record(),
		Errors:      ctrl.Errors(),
		Eligibility: ctrl.Eligibility().String(),
		Checks:      ctrl.Checks(),
		Override:    ctrl.Override().String(),
	}
}

func newCheckCmd() *cobra.Command {
	var (
		sets     []string
		override bool
		strict   bool
		format   string
	)

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Apply field edits to a form definition and report save eligibility",
		Example: `  formctl check signup.yaml --set name=ada --set email=ada@example.com
  formctl check signup.yaml --set age=36 --format json --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unsupported format %q (want yaml or json)", format)
			}

			changes, err := parseSets(sets)
			if err != nil {
				return err
			}

			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			settings, err := def.Settings(nil, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			ctx := cmd.Context()
			ctrl := formstate.New(settings)
			if len(changes) > 0 {
				ctrl.ChangeMany(ctx, changes...)
			}
			if override {
				ctrl.SetOverride(ctx, true)
			}

			rep := newReport(ctrl)
			if err := writeReport(cmd.OutOrStdout(), rep, format); err != nil {
				return err
			}
			if strict && ctrl.Eligibility() == formstate.Forbidden {
				return fmt.Errorf("save forbidden")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field edit as name=value (repeatable, applied as one batch)")
	cmd.Flags().BoolVar(&override, "override", false, "Turn the manual override on")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when saving is forbidden")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (yaml|json)")

	return cmd
}

// loadDefinition reads and decodes a definition file, picking the codec by
// extension.
func loadDefinition(path string) (*definition.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	def, err := definition.Decode(data, definition.CodecFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// parseSets turns name=value pairs into a change batch. Values are read as
// YAML scalars, so numbers and booleans keep their type; an empty value is
// the empty string.
func parseSets(sets []string) ([]formstate.Change, error) {
	changes := make([]formstate.Change, 0, len(sets))
	for _, set := range sets {
		name, raw, ok := strings.Cut(set, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q (want name=value)", set)
		}

		var value any = ""
		if raw != "" {
			if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
				value = raw
			}
		}
		changes = append(changes, formstate.Change{Name: name, Value: value})
	}
	return changes, nil
}

func writeReport(w io.Writer, rep report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
