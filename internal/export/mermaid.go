package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/conductor/internal/pipeline"
)

// GenerateMermaid produces a Mermaid graph TD diagram of a pipeline
// definition. Phases become subgraphs containing their actions; phase
// order becomes arrows; review gates render as decision diamonds.
func GenerateMermaid(def *pipeline.Definition) string {
	// Node IDs must be alphanumeric for Mermaid.
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	// Emit one subgraph per phase.
	for _, phase := range def.Phases {
		label := phase.ID
		if phase.EffectiveParallelism() == pipeline.Parallel {
			label += " (parallel)"
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID("phase:"+phase.ID), label))
		for _, action := range phase.Actions {
			actionLabel := fmt.Sprintf("%s / %s", action.ID, action.AgentID)
			if action.Optional {
				actionLabel += " ?"
			}
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID("action:"+action.ID), actionLabel))
		}
		sb.WriteString("  end\n")

		if phase.Review != nil {
			sb.WriteString(fmt.Sprintf("  %s{\"review: %.30s\"}\n", getID("review:"+phase.ID), phase.ID))
		}
	}

	// Chain phases in declared order, routing through review diamonds.
	var prev string
	for _, phase := range def.Phases {
		node := getID("phase:" + phase.ID)
		if prev != "" {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", prev, node))
		}
		prev = node
		if phase.Review != nil {
			review := getID("review:" + phase.ID)
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", prev, review))
			prev = review
		}
	}

	// Annotate output blocks as sinks.
	for _, phase := range def.Phases {
		if phase.OutputBlock == "" {
			continue
		}
		from := getID("phase:" + phase.ID)
		if phase.Review != nil {
			from = getID("review:" + phase.ID)
		}
		block := getID("block:" + phase.OutputBlock)
		sb.WriteString(fmt.Sprintf("  %s[(\"%s\")]\n", block, phase.OutputBlock))
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", from, block))
	}

	return sb.String()
}
