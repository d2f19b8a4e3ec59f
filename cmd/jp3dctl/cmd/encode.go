package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/container"
	"github.com/cocosip/go-jp3d/encode"
	htj2kpkg "github.com/cocosip/go-jp3d/htj2k"
	"github.com/cocosip/go-jp3d/quantize"
)

// NewEncodeCmd builds the `encode` subcommand: `encode <in> <out>
// [--lossless|--quality q|--psnr p]`.
func NewEncodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <in> <out>",
		Short: "encode a raw volume into a JP3D codestream container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lossless, _ := cmd.Flags().GetBool("lossless")
			quality, _ := cmd.Flags().GetFloat64("quality")
			psnr, _ := cmd.Flags().GetFloat64("psnr")
			htj2k, _ := cmd.Flags().GetBool("htj2k")

			cfg := encode.DefaultConfig()
			switch {
			case quality > 0:
				cfg.Compression = quantize.Params{Mode: quantize.ModeTargetBitrate, TargetBPV: quality}
			case psnr > 0 && htj2k:
				cfg.Compression = quantize.Params{Mode: quantize.ModeLossyHTJ2K, PSNR: psnr}
			case psnr > 0:
				cfg.Compression = quantize.Params{Mode: quantize.ModeLossy, PSNR: psnr}
			case htj2k:
				cfg.Compression = quantize.Params{Mode: quantize.ModeLosslessHTJ2K}
			case lossless:
				cfg.Compression = quantize.Params{Mode: quantize.ModeLossless}
			default:
				cfg.Compression = quantize.Params{Mode: quantize.ModeLossless}
			}
			if htj2k {
				mode := htj2kpkg.ModeHT
				cfg.HTJ2K.ForceMode = &mode
			}

			return runEncode(cmd.Context(), args[0], args[1], cfg)
		},
	}
	pf := cmd.Flags()
	pf.Bool("lossless", true, "encode losslessly")
	pf.Float64("quality", 0, "target bits per voxel")
	pf.Float64("psnr", 0, "target PSNR in dB")
	pf.Bool("htj2k", false, "use the HTJ2K block coder")
	return cmd
}

func runEncode(ctx context.Context, inPath, outPath string, cfg encode.Config) error {
	in, err := os.Open(inPath)
	if err != nil {
		return jp3d.WrapError(jp3d.KindIO, "open input", err)
	}
	defer in.Close()

	vol, err := readRawVolume(in)
	if err != nil {
		return err
	}

	enc := encode.NewEncoder(cfg)
	res, err := enc.Encode(ctx, vol, func(ev encode.ProgressEvent) {
		slog.DebugContext(ctx, "encode progress", "tile", ev.TileIdx, "total", ev.TilesTotal, "stage", ev.Stage)
	})
	if err != nil {
		return err
	}

	ihdr, err := container.ImageHeaderFromComponent(vol, 0)
	if err != nil {
		return err
	}
	brand := container.BrandJP2
	if cfg.HTJ2K.ForceMode != nil {
		brand = container.BrandJPH
	}
	out, err := container.Build(container.WriteParams{Brand: brand, ImageHeader: ihdr, Codestream: res.Bytes})
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return jp3d.WrapError(jp3d.KindIO, "write output", err)
	}

	slog.InfoContext(ctx, "encode complete",
		"tiles", res.TileCount, "lossless", res.IsLossless,
		"compression_ratio", res.CompressionRatio, "bits_per_voxel", res.BitsPerVoxel)
	if res.IsPartial {
		for _, w := range res.Warnings {
			slog.WarnContext(ctx, "encode warning", "message", w)
		}
	}
	fmt.Printf("encoded %s -> %s (%d tiles, %.3f bpv)\n", inPath, outPath, res.TileCount, res.BitsPerVoxel)
	return nil
}
