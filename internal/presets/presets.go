// Package presets embeds ready-to-run pipeline definitions for the stub
// fleet. They double as living documentation of the definition format.
package presets

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dusk-indust/conductor/internal/pipeline"
)

// pipelineFS contains the embedded definition files.
//
//go:embed pipelines/*.yaml
var pipelineFS embed.FS

// Names lists the embedded preset names, sorted.
func Names() []string {
	entries, err := pipelineFS.ReadDir("pipelines")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load parses the embedded preset with the given name.
func Load(name string) (*pipeline.Definition, error) {
	data, err := pipelineFS.ReadFile(path.Join("pipelines", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("presets: unknown preset %q", name)
	}
	return pipeline.Parse(data)
}
