package ty

import (
	"os"
	"regexp"
	"strings"
)

var resolveRegex = regexp.MustCompile(`\$(\{([a-zA-Z_][a-zA-Z0-9_]*)(:-(.*?)?)?\}|\$([a-zA-Z_][a-zA-Z0-9_]*))`)

// ResolveVars replaces shell-style ${VAR}, ${VAR:-default} and $VAR patterns
// in input. Lookup order is vars then the process environment; when neither
// has the variable, the default applies, otherwise the pattern is left as-is.
func ResolveVars(input string, vars map[string]string) string {
	return resolveRegex.ReplaceAllStringFunc(input, func(v string) string {
		parts := strings.SplitN(v, ":-", 2)
		varName := strings.Trim(parts[0], "${}")
		varName = strings.Trim(varName, "$")

		if val, ok := vars[varName]; ok {
			return val
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}

		if len(parts) == 2 {
			return strings.TrimSuffix(parts[1], "}")
		}

		return v
	})
}

func (ms MS) ResolveVariables() MS {
	return ms.ResolveVariablesWith(map[string]string{})
}

func (ms MS) ResolveVariablesWith(vars map[string]string) MS {
	msResolved := MS{}

	for k, v := range ms {
		msResolved[k] = ResolveVars(v, vars)
	}

	return msResolved
}

// ResolveVariables resolves string values of the map; non-string values are
// copied unchanged.
func (mi MI) ResolveVariables() MI {
	return mi.ResolveVariablesWith(map[string]string{})
}

func (mi MI) ResolveVariablesWith(vars map[string]string) MI {
	resolved := MI{}
	for k, v := range mi {
		switch vv := v.(type) {
		case string:
			resolved[k] = ResolveVars(vv, vars)
		default:
			resolved[k] = v
		}
	}
	return resolved
}
