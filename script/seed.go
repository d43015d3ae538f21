package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedScript is the on-disk shape of one entry in a scripts seed file —
// the dev-bootstrapping equivalent of the upstream app's flow-file loading
// (runtime/app.go's loadFlows), adapted from YAML flow definitions to
// YAML script definitions.
type seedScript struct {
	Name          string        `yaml:"name"`
	Endpoint      string        `yaml:"endpoint"`
	Code          string        `yaml:"code"`
	TriggerConfig TriggerConfig `yaml:"triggerConfig"`
}

// LoadSeed reads a scripts.seed.yaml file and creates each entry in store.
// An entry whose endpoint is already taken is skipped silently rather than
// aborting the whole load; an entry with an invalid endpoint aborts the
// load with an error. Intended for local/dev bootstrapping only; the
// primary script store is the in-memory API-driven one described in
// SPEC_FULL.md §13.
func LoadSeed(path string, store Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("script: read seed file: %w", err)
	}

	var entries []seedScript
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("script: parse seed file: %w", err)
	}

	for _, e := range entries {
		if !ValidEndpoint(e.Endpoint) {
			return fmt.Errorf("script: seed entry %q has an invalid endpoint %q", e.Name, e.Endpoint)
		}
		sc := New(e.Name, e.Endpoint, e.Code)
		sc.TriggerConfig = e.TriggerConfig
		if _, err := store.Create(sc); err != nil && err != ErrEndpointTaken {
			return fmt.Errorf("script: seed entry %q: %w", e.Name, err)
		}
	}
	return nil
}
