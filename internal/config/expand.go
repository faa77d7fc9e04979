package config

import (
	"os"
	"regexp"

	"github.com/yanun0323/errors"
)

var envVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnv replaces every $VAR_NAME occurrence with the value of the
// corresponding environment variable. An unset variable is a load error,
// never an empty string silently spliced into credentials.
func expandEnv(raw []byte) ([]byte, error) {
	var missing string
	expanded := envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := string(match[1:])
		value, ok := os.LookupEnv(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return []byte(value)
	})
	if missing != "" {
		return nil, errors.Errorf("environment variable %q not found", missing)
	}
	return expanded, nil
}
