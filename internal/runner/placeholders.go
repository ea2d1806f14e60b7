package runner

import (
	"path/filepath"
	"regexp"
	"strings"
)

var placeholderRegex = regexp.MustCompile(`\{\{([^}|]+)(?:\|([^}]*))?\}\}`)

// ApplyPlaceholders substitutes {{key}} and {{key|default}} in template.
// Unknown keys without a default are left as-is. An empty value falls back
// to the default when one is given.
func ApplyPlaceholders(template string, vars map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		parts := placeholderRegex.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		key := strings.TrimSpace(parts[1])
		hasDefault := strings.Contains(match, "|")

		if val, ok := vars[key]; ok && (val != "" || !hasDefault) {
			return val
		}
		if hasDefault {
			return parts[2]
		}
		return match
	})
}

// Vars returns the placeholder values available to argument templates.
func (j Job) Vars(resultsDir string) map[string]string {
	base := filepath.Base(j.File)
	return map[string]string{
		"client":      j.Client,
		"env":         j.Environment,
		"file":        j.File,
		"name":        strings.TrimSuffix(base, filepath.Ext(base)),
		"results_dir": resultsDir,
	}
}
