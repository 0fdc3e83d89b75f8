package analyzer

// extractJSONObject returns the first balanced {...} span found in input, or
// "" when none exists. Scanning the first balanced span (rather than first
// '{' to last '}') avoids mis-extraction when the model emits several
// JSON-like fragments around the real object.
func extractJSONObject(input string) string {
	start := -1
	for i := 0; i < len(input); i++ {
		if input[i] == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
