<full file content>
=== END FILE ===

Emit every file of the project on each attempt, complete, with no commentary outside file blocks.`

// BuildPrompt renders the system and user prompts for a generation request.
func BuildPrompt(req models.GenerationRequest, stack string) (system, user string, err error) {
	if stack == "" {
		stack = DefaultStack
	}
	system = fmt.Sprintf(systemPrompt, stack)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Original page: %s\n", req.TargetURL)
	fmt.Fprintf(&sb, "Iteration %d, attempt %d.\n\n", req.Iteration, req.Attempt)

	sb.WriteString("## Components\n")
	if len(req.Specs) == 0 {
		sb.WriteString("(none detected; follow the design tokens)\n")
	}
	for _, spec := range req.Specs {
		sb.WriteString(describeSpec(spec))
	}

	tokensYAML, err := TokensYAML(req.Tokens)
	if err != nil {
		return "", "", err
	}
	sb.WriteString("\n## Design tokens\n```yaml\n")
	sb.Write(tokensYAML)
	sb.WriteString("```\n")

	if len(req.Failures) > 0 {
		sb.WriteString("\n## Differences to fix, most important first\n")
		for i, f := range req.Failures {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, Explain(f))
		}
	}

	if len(req.Problems) > 0 {
		sb.WriteString("\n## The previous attempt did not build or serve\n")
		problems := req.Problems
		if len(problems) > maxProblemLines {
			problems = problems[:maxProblemLines]
		}
		for _, p := range problems {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		sb.WriteString("Fix these problems first.\n")
	}

	return system, sb.String(), nil
}

func describeSpec(spec models.ComponentSpec) string {
	root := ""
	if len(spec.Roots) > 0 {
		root = spec.Roots[0]
	}
	line := fmt.Sprintf("- %s (%s) at %s", spec.ID, spec.Kind, root)
	if spec.Recurrence > 1 {
		line += fmt.Sprintf(", repeated %d times", spec.Recurrence)
	}
	if spec.Signature != "" {
		line += ", shape " + spec.Signature
	}
	if len(spec.Annotations) > 0 {
		line += ", hints: " + strings.Join(spec.Annotations, " ")
	}
	return line + "\n"
}

// TokensYAML renders design tokens as YAML.
func TokensYAML(t models.DesignTokens) ([]byte, error) {
	out, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}
	return out, nil
}

// Explain renders a failure as a repair instruction.
func Explain(f models.ValidationFailure) string {
	if f.Property == models.PropertyStructure {
		return fmt.Sprintf("[%s] structure at %s: expected %s, found %s", f.Severity, f.Path, f.Expected, f.Actual)
	}
	if f.Actual == models.MissingValue {
		return fmt.Sprintf("[%s] %s: %s should be %s but is missing", f.Severity, f.Path, f.Property, f.Expected)
	}
	return fmt.Sprintf("[%s] %s: %s should be %s, got %s", f.Severity, f.Path, f.Property, f.Expected, f.Actual)
}
