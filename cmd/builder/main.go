package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"graphchat/internal/server"
	"graphchat/internal/util"
	"graphchat/pkg/graph"
	"graphchat/pkg/logger"
	"graphchat/pkg/logger/console"
)

// The builder replays text chunks through the graph updater, starting from
// an empty graph, and writes an SVG diagram after every iteration plus the
// final graph as JSON on stdout. Chunks come from the command line, or from
// stdin (one per line) when no arguments are given.
func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chunks := os.Args[1:]
	if len(chunks) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				chunks = append(chunks, line)
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Fatal("Failed to read chunks from stdin", "err", err)
		}
	}
	if len(chunks) == 0 {
		logger.Fatal("No input chunks provided")
	}

	aiClient := server.NewAIClient()
	updater := graph.NewUpdater(graph.NewUpdaterParams{
		Client: aiClient,
	})
	renderer := graph.NewRenderer(graph.NewRendererParams{
		Binary: util.GetEnvString("GRAPHVIZ_BIN", "dot"),
	})

	logger.Info("Building graph", "chunks", len(chunks))

	final, err := updater.BuildGraph(ctx, chunks, func(iteration int, snapshot graph.KnowledgeGraph) error {
		svg, err := renderer.RenderSVG(ctx, snapshot)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("iteration_%d.svg", iteration)
		if err := os.WriteFile(name, svg, 0o644); err != nil {
			return err
		}

		logger.Info("Iteration complete", "iteration", iteration, "nodes", len(snapshot.Nodes), "edges", len(snapshot.Edges))
		return nil
	})
	if err != nil {
		logger.Fatal("Graph build failed", "err", err)
	}

	svg, png, err := renderer.RenderAll(ctx, final)
	if err != nil {
		logger.Fatal("Failed to render final graph", "err", err)
	}
	if err := os.WriteFile("knowledge_graph.svg", svg, 0o644); err != nil {
		logger.Fatal("Failed to write final SVG", "err", err)
	}
	if err := os.WriteFile("knowledge_graph.png", png, 0o644); err != nil {
		logger.Fatal("Failed to write final PNG", "err", err)
	}

	out, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode final graph", "err", err)
	}
	fmt.Println(string(out))
}
