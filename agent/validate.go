package agent

import (
	"fmt"

	"github.com/petal-labs/foundryctl/diag"
)

const (
	codeMissingName     = "AG-001"
	codeMissingModel    = "AG-002"
	codeModelNotMapping = "AG-003"
	codeMissingModelID  = "AG-004"
	codeDefaultInstr    = "AG-005"
	codeDuplicateToolID = "AG-006"
)

// Validate checks an agent definition and returns diagnostics (errors and
// warnings). Tool declarations are checked by tool.Build, not here.
func Validate(def *Definition) []diag.Diagnostic {
	if def == nil {
		return []diag.Diagnostic{
			diag.Errorf(codeMissingName, "", "agent definition is nil"),
		}
	}

	diags := make([]diag.Diagnostic, 0)
	diags = append(diags, validateName(def)...)
	diags = append(diags, validateModel(def)...)
	diags = append(diags, validateToolIDs(def)...)

	if def.Instructions == "" {
		diags = append(diags, diag.Warnf(codeDefaultInstr, "instructions",
			"no instructions given, using %q", DefaultInstructions))
	}

	return diags
}

func validateName(def *Definition) []diag.Diagnostic {
	if def.Name == "" {
		return []diag.Diagnostic{
			diag.Errorf(codeMissingName, "name", "Missing required field in agent.yaml: name"),
		}
	}
	return nil
}

func validateModel(def *Definition) []diag.Diagnostic {
	switch {
	case def.modelShape == modelMissing,
		def.modelShape == modelUnchecked && def.Model.ID == "":
		return []diag.Diagnostic{
			diag.Errorf(codeMissingModel, "model", "Missing required field in agent.yaml: model"),
		}
	case def.modelShape == modelNotMapping:
		return []diag.Diagnostic{
			diag.Errorf(codeModelNotMapping, "model", "model must be a mapping with an 'id' field"),
		}
	}
	if def.Model.ID == "" {
		return []diag.Diagnostic{
			diag.Errorf(codeMissingModelID, "model.id", "Missing model.id in agent.yaml"),
		}
	}
	return nil
}

// validateToolIDs warns about repeated tool ids; the service accepts them but
// they make the deployed tool list ambiguous.
func validateToolIDs(def *Definition) []diag.Diagnostic {
	var diags []diag.Diagnostic
	seen := make(map[string]int, len(def.Tools))
	for i, decl := range def.Tools {
		if decl.ID == "" {
			continue
		}
		if first, ok := seen[decl.ID]; ok {
			diags = append(diags, diag.Warnf(codeDuplicateToolID, toolPath(i),
				"tool id %q is already used by tools[%d]", decl.ID, first))
			continue
		}
		seen[decl.ID] = i
	}
	return diags
}

func toolPath(i int) string {
	return fmt.Sprintf("tools[%d]", i)
}
