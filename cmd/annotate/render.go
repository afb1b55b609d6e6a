package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/session"
)

var (
	renderPage   int
	renderZoom   int
	renderRotate int
	renderOut    string
	renderColor  string
	renderTool   string
	renderRects  []string
	renderNotes  []string
)

var renderCmd = &cobra.Command{
	Use:   "render [file.pdf]",
	Short: "Render a page with annotations into a PNG",
	Long: `Renders one page at the requested zoom and rotation and paints the
given shapes on top. Shape and note positions are in page points.

  annotate render report.pdf --page 2 --rect 72,72,200,100 --note 80,200,"Check this"`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().IntVarP(&renderPage, "page", "p", 1, "page number (1-based)")
	renderCmd.Flags().IntVarP(&renderZoom, "zoom", "z", 100, "zoom percentage")
	renderCmd.Flags().IntVar(&renderRotate, "rotate", 0, "number of clockwise quarter turns")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "page.png", "output PNG path")
	renderCmd.Flags().StringVar(&renderColor, "color", "#ff0000", "annotation color")
	renderCmd.Flags().StringVar(&renderTool, "tool", string(domain.ToolRectangle), "shape tool used for --rect")
	renderCmd.Flags().StringArrayVar(&renderRects, "rect", nil, "shape as x,y,width,height (repeatable)")
	renderCmd.Flags().StringArrayVar(&renderNotes, "note", nil, "text note as x,y,text (repeatable)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.Viewport()
	state := c.SetPage(renderPage)
	if state.Page != renderPage {
		return fmt.Errorf("page %d out of range (document has %d pages)", renderPage, c.PageCount())
	}
	c.SetZoom(renderZoom)
	for i := 0; i < ((renderRotate%4)+4)%4; i++ {
		c.Rotate()
	}

	if err := s.Machine().SetColor(renderColor); err != nil {
		return fmt.Errorf("invalid --color %q: %w", renderColor, err)
	}
	if err := drawShapes(s, renderTool, renderRects); err != nil {
		return err
	}
	if err := drawNotes(s, renderNotes); err != nil {
		return err
	}

	img, err := s.Compose(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	f, err := os.Create(renderOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	b := img.Bounds()
	cmd.Printf("Wrote %s (%dx%d, %d annotations)\n", renderOut, b.Dx(), b.Dy(), s.Machine().State().Count)
	return nil
}

// drawShapes replays each rectangle as a drag gesture with the given tool.
func drawShapes(s *session.Session, toolName string, specs []string) error {
	if len(specs) == 0 {
		return nil
	}
	tool, err := domain.ParseTool(toolName)
	if err != nil || !tool.IsShape() {
		return fmt.Errorf("--tool %q is not a shape tool", toolName)
	}
	s.Machine().SetTool(tool)

	for _, spec := range specs {
		vals, err := parseFloats(spec, 4)
		if err != nil {
			return fmt.Errorf("invalid --rect %q: %w", spec, err)
		}
		frame, err := s.Frame()
		if err != nil {
			return err
		}
		from := frame.Transform.ToScreen(domain.Point{X: vals[0], Y: vals[1]})
		to := frame.Transform.ToScreen(domain.Point{X: vals[0] + vals[2], Y: vals[1] + vals[3]})

		if _, err := s.BeginGesture(from); err != nil {
			return err
		}
		if _, err := s.ContinueGesture(to); err != nil {
			return err
		}
		out, err := s.EndGesture()
		if err != nil {
			return err
		}
		if out.Committed == nil {
			return fmt.Errorf("--rect %q is below the minimum shape size", spec)
		}
	}
	return nil
}

// drawNotes places text annotations through the text prompt flow.
func drawNotes(s *session.Session, specs []string) error {
	if len(specs) == 0 {
		return nil
	}
	s.Machine().SetTool(domain.ToolText)

	for _, spec := range specs {
		parts := strings.SplitN(spec, ",", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid --note %q: want x,y,text", spec)
		}
		pos, err := parseFloats(parts[0]+","+parts[1], 2)
		if err != nil {
			return fmt.Errorf("invalid --note %q: %w", spec, err)
		}
		frame, err := s.Frame()
		if err != nil {
			return err
		}
		out, err := s.BeginGesture(frame.Transform.ToScreen(domain.Point{X: pos[0], Y: pos[1]}))
		if err != nil {
			return err
		}
		if !out.TextPrompt {
			return fmt.Errorf("text tool did not prompt for %q", spec)
		}
		if _, ok := s.Machine().TextEntered(parts[2]); !ok {
			return fmt.Errorf("--note %q has no text", spec)
		}
	}
	return nil
}

func parseFloats(spec string, n int) ([]float64, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers", n)
	}
	vals := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}
