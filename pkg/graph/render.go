package graph

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Renderer turns graph snapshots into diagrams by piping DOT through the
// external Graphviz "dot" tool.
type Renderer struct {
	binary string
}

// NewRendererParams defines the configuration for creating a Renderer.
//
// Binary names the Graphviz executable; empty means "dot" from PATH.
type NewRendererParams struct {
	Binary string
}

// NewRenderer creates a Renderer for the configured Graphviz binary.
func NewRenderer(params NewRendererParams) *Renderer {
	binary := params.Binary
	if binary == "" {
		binary = "dot"
	}
	return &Renderer{binary: binary}
}

func (r *Renderer) render(ctx context.Context, g KnowledgeGraph, format string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.binary, "-T"+format)
	cmd.Stdin = strings.NewReader(g.DOT())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s -T%s failed: %w (%s)", r.binary, format, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// RenderSVG renders the graph as an SVG document. Graphviz prepends an XML
// prolog; the output is trimmed to the <svg> root so it can be inlined.
func (r *Renderer) RenderSVG(ctx context.Context, g KnowledgeGraph) ([]byte, error) {
	out, err := r.render(ctx, g, "svg")
	if err != nil {
		return nil, err
	}
	if idx := bytes.Index(out, []byte("<svg")); idx > 0 {
		out = out[idx:]
	}
	return out, nil
}

// RenderPNG renders the graph as a PNG image.
func (r *Renderer) RenderPNG(ctx context.Context, g KnowledgeGraph) ([]byte, error) {
	return r.render(ctx, g, "png")
}

// RenderAll renders the SVG and PNG variants of the same snapshot in
// parallel.
func (r *Renderer) RenderAll(ctx context.Context, g KnowledgeGraph) (svg []byte, png []byte, err error) {
	eg, gCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		svg, err = r.RenderSVG(gCtx, g)
		return err
	})
	eg.Go(func() error {
		var err error
		png, err = r.RenderPNG(gCtx, g)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return svg, png, nil
}
