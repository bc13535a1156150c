package loader

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultOutputTimeout applies when an output step omits timeout.
const DefaultOutputTimeout = 1000 * time.Millisecond

type document struct {
	Name  string           `yaml:"name"`
	Steps []map[string]any `yaml:"steps"`
}

type outputSpec struct {
	Expected       string `mapstructure:"expected"`
	Timeout        *int   `mapstructure:"timeout"`
	SubstringMatch *bool  `mapstructure:"substring_match"`
	Success        any    `mapstructure:"success"`
	Fail           any    `mapstructure:"fail"`
}

type dialogSpec struct {
	Message string `mapstructure:"message"`
	Default string `mapstructure:"default"`
}

type menuSpec struct {
	Options []string `mapstructure:"options"`
}

// Parse decodes and validates one macro document.
// Errors for every invalid step are aggregated and wrap domain.ErrInvalidStep.
func Parse(data []byte) (domain.Macro, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Macro{}, fmt.Errorf("%w: %v", domain.ErrInvalidStep, err)
	}

	macro := domain.Macro{
		Name:  strings.TrimSpace(doc.Name),
		Steps: make([]domain.Step, 0, len(doc.Steps)),
	}

	var result *multierror.Error
	for i, raw := range doc.Steps {
		step, err := decodeStep(raw)
		if err == nil {
			err = domain.ValidateStep(step)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("step %d: %w", i+1, err))
			continue
		}
		macro.Steps = append(macro.Steps, step)
	}
	if err := result.ErrorOrNil(); err != nil {
		return domain.Macro{}, err
	}
	return macro, nil
}

func decodeStep(raw map[string]any) (domain.Step, error) {
	if len(raw) != 1 {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: a step needs exactly one key, got %v", domain.ErrInvalidStep, keys)
	}

	for key, body := range raw {
		switch domain.StepKind(key) {
		case domain.StepInput:
			var cmd string
			if err := mapstructure.WeakDecode(body, &cmd); err != nil {
				return nil, invalid(key, err)
			}
			return domain.Input{Command: cmd}, nil

		case domain.StepDelay:
			var ms int
			if err := mapstructure.WeakDecode(body, &ms); err != nil {
				return nil, invalid(key, err)
			}
			return domain.Delay{Wait: time.Duration(ms) * time.Millisecond}, nil

		case domain.StepDialogWait:
			var spec dialogSpec
			if err := decodeStrict(body, &spec); err != nil {
				return nil, invalid(key, err)
			}
			choice := domain.DialogChoice(strings.ToLower(strings.TrimSpace(spec.Default)))
			if choice == "" {
				choice = domain.DialogContinue
			}
			return domain.DialogWait{Message: spec.Message, Default: choice}, nil

		case domain.StepOutput:
			return decodeOutput(body)

		case domain.StepMenuSingle:
			var spec menuSpec
			if err := decodeStrict(body, &spec); err != nil {
				return nil, invalid(key, err)
			}
			return domain.MenuSingle{Options: spec.Options}, nil

		case domain.StepMenuMulti:
			var spec menuSpec
			if err := decodeStrict(body, &spec); err != nil {
				return nil, invalid(key, err)
			}
			return domain.MenuMulti{Options: spec.Options}, nil
		}
		return nil, fmt.Errorf("%w: unknown step type %q", domain.ErrInvalidStep, key)
	}
	return nil, nil
}

func decodeOutput(body any) (domain.Step, error) {
	var spec outputSpec
	if err := decodeStrict(body, &spec); err != nil {
		return nil, invalid("output", err)
	}

	out := domain.Output{
		Expected: spec.Expected,
		Timeout:  DefaultOutputTimeout,
		Mode:     domain.MatchSubstring,
	}
	if spec.Timeout != nil {
		out.Timeout = time.Duration(*spec.Timeout) * time.Millisecond
	}
	if spec.SubstringMatch != nil && !*spec.SubstringMatch {
		out.Mode = domain.MatchFullLine
	}

	var err error
	if out.OnSuccess, err = ParseOutcome(spec.Success); err != nil {
		return nil, fmt.Errorf("success: %w", err)
	}
	if out.OnFail, err = ParseOutcome(spec.Fail); err != nil {
		return nil, fmt.Errorf("fail: %w", err)
	}
	return out, nil
}

// ParseOutcome accepts the outcome spellings found in macro files. A nil value is Continue.
func ParseOutcome(v any) (domain.Outcome, error) {
	switch val := v.(type) {
	case nil:
		return domain.Continue(), nil
	case string:
		key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(val)))
		switch key {
		case "", "continue":
			return domain.Continue(), nil
		case "ignore":
			return domain.Ignore(), nil
		case "exit", "exitmacro":
			return domain.ExitMacro(), nil
		case "dialog", "dialogforcommand":
			return domain.DialogForCommand(), nil
		case "dialogandwait":
			return domain.DialogAndWait(), nil
		}
		return domain.Outcome{}, fmt.Errorf("%w: unknown outcome %q", domain.ErrInvalidStep, val)
	case map[string]any:
		var spec struct {
			Input string `mapstructure:"input"`
		}
		if err := decodeStrict(val, &spec); err != nil {
			return domain.Outcome{}, invalid("outcome", err)
		}
		if strings.TrimSpace(spec.Input) == "" {
			return domain.Outcome{}, fmt.Errorf("%w: outcome input is empty", domain.ErrInvalidStep)
		}
		return domain.CustomCommand(spec.Input), nil
	}
	return domain.Outcome{}, fmt.Errorf("%w: outcome of type %T", domain.ErrInvalidStep, v)
}

func decodeStrict(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func invalid(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrInvalidStep, key, err)
}
