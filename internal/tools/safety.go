package tools

import (
	"regexp"
	"strings"
)

// suspiciousPatterns flags shell constructs worth calling out in logs and
// results. Detection is advisory: a match attaches a warning, it never
// blocks execution. The agent is expected to run offensive tooling on
// engagement targets, so blocking would defeat the purpose.
var suspiciousPatterns = []struct {
	re   *regexp.Regexp
	desc string
}{
	{regexp.MustCompile(`\$\([^)]*\)`), "command substitution $(...)"},
	{regexp.MustCompile("`[^`]+`"), "backtick command substitution"},
	{regexp.MustCompile(`>\s*/dev/(sd|nvme|hd)`), "write to raw block device"},
	{regexp.MustCompile(`>\s*/etc/`), "redirect into /etc"},
	{regexp.MustCompile(`(>>?[^|]*){2,}`), "chained output redirections"},
	{regexp.MustCompile(`\|\s*(ba)?sh\b`), "piping downloaded content into a shell"},
	{regexp.MustCompile(`rm\s+(-[a-zA-Z]*f[a-zA-Z]*\s+)+/(\s|$)`), "recursive delete of filesystem root"},
}

// InspectCommand returns human-readable descriptions of suspicious
// constructs found in the command. An empty slice means nothing notable.
func InspectCommand(command string) []string {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return nil
	}

	var warnings []string
	for _, p := range suspiciousPatterns {
		if p.re.MatchString(trimmed) {
			warnings = append(warnings, p.desc)
		}
	}
	return warnings
}
