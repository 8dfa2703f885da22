package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/overlay"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

type mapOptions struct {
	templatePath string
	finePath     string
	coarsePath   string
	imageName    string
	imagePath    string
	outputFile   string
}

func newMapCommand(a *app) *cobra.Command {
	opts := &mapOptions{}
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Align a template onto one document",
		Long: `Align the annotations of a template onto one document using its fine and
coarse OCR results and print the aligned document.

Output formats:
  json  the template structure with the aligned annotations (default)
  yaml  the same structure as YAML
  text  one annotation per line
  csv   one annotation per row

Examples:
  kvmap map --template form.json --fine scan.fine.json --coarse scan.coarse.json
  kvmap map --template form.json --fine f.json --coarse c.json --image scan.png -o scan.json
  kvmap map ... --overlay-dir overlays --image-path scans/scan.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMap(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.templatePath, "template", "t", "", "annotation template (JSON)")
	cmd.Flags().StringVar(&opts.finePath, "fine", "", "fine OCR result (polygon words)")
	cmd.Flags().StringVar(&opts.coarsePath, "coarse", "", "coarse OCR result (x/y word boxes)")
	cmd.Flags().StringVar(&opts.imageName, "image", "", "image name recorded in the output")
	cmd.Flags().StringVar(&opts.imagePath, "image-path", "", "document image used for the overlay")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringP("format", "f", "json", "output format: json, yaml, text, csv")
	cmd.Flags().Bool("compact", false, "round boxes and drop annotation ids (editor save form)")
	cmd.Flags().String("overlay-dir", "", "write <overlay-dir>/<image>_overlay.png")
	for _, name := range []string{"template", "fine", "coarse"} {
		_ = cmd.MarkFlagRequired(name)
	}
	bindConfigKey(cmd.Flags(), "format", "output.format")
	bindConfigKey(cmd.Flags(), "compact", "output.compact")
	bindConfigKey(cmd.Flags(), "overlay-dir", "output.overlay_dir")
	return cmd
}

func (a *app) runMap(cmd *cobra.Command, opts *mapOptions) error {
	cfg := a.cfg
	if cfg.Output.OverlayDir != "" && opts.imagePath == "" {
		return fmt.Errorf("--overlay-dir requires --image-path")
	}

	tpl, err := template.Load(opts.templatePath)
	if err != nil {
		return err
	}
	fine, err := os.ReadFile(opts.finePath)
	if err != nil {
		return fmt.Errorf("failed to read fine OCR: %w", err)
	}
	coarse, err := os.ReadFile(opts.coarsePath)
	if err != nil {
		return fmt.Errorf("failed to read coarse OCR: %w", err)
	}

	engine, err := align.New(cfg.Align, align.WithLogger(a.logger))
	if err != nil {
		return err
	}
	res := engine.AlignPayloads(tpl, fine, coarse)
	out := res.Template

	imageName := opts.imageName
	if imageName == "" && opts.imagePath != "" {
		imageName = filepath.Base(opts.imagePath)
	}
	if imageName != "" {
		if err := out.Set("image", imageName); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := writeDocument(&buf, out, cfg.Output.Format, cfg.TemplateFormat()); err != nil {
		return err
	}
	if opts.outputFile == "" {
		if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return err
		}
	} else {
		if dir := filepath.Dir(opts.outputFile); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(opts.outputFile, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.outputFile, err)
		}
		a.logger.Info("wrote aligned document", "file", opts.outputFile)
	}

	if cfg.Output.OverlayDir != "" {
		base := strings.TrimSuffix(filepath.Base(opts.imagePath), filepath.Ext(opts.imagePath))
		ovPath := filepath.Join(cfg.Output.OverlayDir, base+"_overlay.png")
		if err := overlay.RenderFile(opts.imagePath, ovPath, out.Annotations, cfg.Colors()); err != nil {
			return err
		}
		a.logger.Info("wrote overlay", "file", ovPath)
	}
	return nil
}
