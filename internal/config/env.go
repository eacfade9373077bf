package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadEnv reads a dotenv-style file and sets a variable for each KEY=VALUE
// line. Blank lines and # comments are skipped; surrounding quotes on values
// are stripped. A missing file is not an error, so the editor runs without
// one. Call before Load so overrides like EDITOR_BACKEND_URL take effect.
func LoadEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		_ = os.Setenv(key, value)
	}
	return sc.Err()
}
