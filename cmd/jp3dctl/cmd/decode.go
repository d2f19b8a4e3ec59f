package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/container"
	"github.com/cocosip/go-jp3d/decode"
)

// NewDecodeCmd builds the `decode` subcommand: `decode <in> <out>
// [--roi x,y,z,w,h,d] [--res R] [--layers L]`.
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <in> <out>",
		Short: "decode a JP3D codestream container into a raw volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roi, _ := cmd.Flags().GetString("roi")
			tolerant, _ := cmd.Flags().GetBool("tolerant")

			region, hasROI, err := parseROIFlag(roi)
			if err != nil {
				return err
			}
			return runDecode(cmd.Context(), args[0], args[1], region, hasROI, tolerant)
		},
	}
	pf := cmd.Flags()
	pf.String("roi", "", "region of interest x,y,z,w,h,d")
	pf.Int("res", 0, "maximum resolution level (reserved, currently decodes full resolution)")
	pf.Int("layers", 0, "maximum quality layer (reserved, currently decodes all layers)")
	pf.Bool("tolerant", false, "tolerate per-tile decode errors and continue")
	return cmd
}

func parseROIFlag(roi string) (jp3d.Region, bool, error) {
	if roi == "" {
		return jp3d.Region{}, false, nil
	}
	parts := strings.Split(roi, ",")
	if len(parts) != 6 {
		return jp3d.Region{}, false, jp3d.NewError(jp3d.KindInvalidParameter, "--roi requires x,y,z,w,h,d")
	}
	vals := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return jp3d.Region{}, false, jp3d.WrapError(jp3d.KindInvalidParameter, "--roi value not an integer", err)
		}
		vals[i] = n
	}
	return jp3d.NewRegion(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]), true, nil
}

func runDecode(ctx context.Context, inPath, outPath string, region jp3d.Region, hasROI, tolerant bool) error {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return jp3d.WrapError(jp3d.KindIO, "read input", err)
	}

	parsed, err := container.Parse(raw)
	if err != nil {
		return err
	}
	if len(parsed.Codestream) == 0 {
		return jp3d.NewError(jp3d.KindParseError, "container has no embedded codestream")
	}

	opts := decode.DefaultOptions()
	opts.TolerateErrors = tolerant

	var vol *jp3d.Volume
	var isPartial bool
	var warnings []string
	if hasROI {
		roiDec := decode.NewROIDecoder(opts)
		res, err := roiDec.Decode(ctx, parsed.Codestream, region)
		if err != nil {
			return err
		}
		vol, warnings = res.Volume, res.Warnings
		slog.InfoContext(ctx, "roi decode complete", "tiles_decoded", res.TilesDecoded, "tiles_skipped", res.TilesSkipped)
	} else {
		dec := decode.NewDecoder(opts)
		res, err := dec.Decode(ctx, parsed.Codestream, nil)
		if err != nil {
			return err
		}
		vol, isPartial, warnings = res.Volume, res.IsPartial, res.Warnings
		slog.InfoContext(ctx, "decode complete", "tiles_decoded", res.TilesDecoded, "tiles_total", res.TilesTotal, "is_partial", isPartial)
	}

	for _, w := range warnings {
		slog.WarnContext(ctx, "decode warning", "message", w)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return jp3d.WrapError(jp3d.KindIO, "create output", err)
	}
	defer out.Close()
	if err := writeRawVolume(out, vol); err != nil {
		return jp3d.WrapError(jp3d.KindIO, "write raw volume", err)
	}

	fmt.Printf("decoded %s -> %s (%dx%dx%d)\n", inPath, outPath, vol.Width, vol.Height, vol.Depth)
	return nil
}
