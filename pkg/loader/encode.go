package loader

import (
	"fmt"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Marshal renders a macro in the file format Parse reads.
func Marshal(m domain.Macro) ([]byte, error) {
	steps := make([]map[string]any, 0, len(m.Steps))
	for i, s := range m.Steps {
		var body any
		switch st := s.(type) {
		case domain.Input:
			body = st.Command
		case domain.Delay:
			body = st.Wait.Milliseconds()
		case domain.DialogWait:
			d := map[string]any{"message": st.Message}
			if st.Default == domain.DialogEnd {
				d["default"] = string(st.Default)
			}
			body = d
		case domain.Output:
			body = map[string]any{
				"expected":        st.Expected,
				"timeout":         st.Timeout.Milliseconds(),
				"substring_match": st.Mode != domain.MatchFullLine,
				"success":         outcomeValue(st.OnSuccess),
				"fail":            outcomeValue(st.OnFail),
			}
		case domain.MenuSingle:
			body = map[string]any{"options": st.Options}
		case domain.MenuMulti:
			body = map[string]any{"options": st.Options}
		default:
			return nil, fmt.Errorf("step %d: %w: %T", i+1, domain.ErrInvalidStep, s)
		}
		steps = append(steps, map[string]any{string(s.Kind()): body})
	}
	return yaml.Marshal(map[string]any{"name": m.Name, "steps": steps})
}

func outcomeValue(o domain.Outcome) any {
	switch o.Normalize().Kind {
	case domain.OutcomeIgnore:
		return "Ignore"
	case domain.OutcomeExitMacro:
		return "Exit"
	case domain.OutcomeCustomCommand:
		return map[string]any{"input": o.Command}
	case domain.OutcomeDialogForCommand:
		return "DialogForCommand"
	case domain.OutcomeDialogAndWait:
		return "DialogAndWait"
	}
	return "Continue"
}
