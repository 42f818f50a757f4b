// Package envfile parses KEY=VALUE env files, per spec §6.4: used to seed
// a process's --env-file overlay and to merge the layered defaults files
// the CLI looks for before spawning.
package envfile

import (
	"bufio"
	"os"
	"strings"

	"github.com/sentinelhq/sentinel/pkg/errs"
)

// Parse reads path and returns its KEY=VALUE pairs. Blank lines and lines
// whose first non-space character is '#' are ignored. A missing file
// yields an empty map, not an error, since every layer in the CLI's
// env-file precedence chain is optional.
func Parse(path string) (map[string]string, error) {
	out := map[string]string{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, errs.IOFailure(path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IOFailure(path, err)
	}
	return out, nil
}

// Merge layers later maps over earlier ones, key by key, matching the
// precedence order spec §6.4 assigns to the CLI's env-file chain.
func Merge(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
