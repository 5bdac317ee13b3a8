package secrets

import "os"

// EnvLoader returns a Loader that reads the keys of fallback from the
// environment. A key whose variable is unset keeps its fallback value; keys
// with neither are omitted.
func EnvLoader(fallback map[string]string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(fallback))
		for k, def := range fallback {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			} else if def != "" {
				vals[k] = def
			}
		}
		return vals, nil
	}
}
