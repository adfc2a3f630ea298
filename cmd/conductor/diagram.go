package main

import (
	"fmt"

	"github.com/dusk-indust/conductor/internal/export"
	"github.com/dusk-indust/conductor/internal/pipeline"
)

func printDiagram(def *pipeline.Definition) error {
	fmt.Print(export.GenerateMermaid(def))
	return nil
}
