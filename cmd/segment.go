package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/goto-eat-map/csv2geojson/internal/address"
)

var segmentRegion string

var segmentCmd = &cobra.Command{
	Use:   "segment <address...>",
	Short: "Print the geocodable part of each address",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, err := address.NewRegions(cfg.Regions.Aliases)
		if err != nil {
			return err
		}
		return segmentAddresses(os.Stdout, address.NewSegmenter(regions), segmentRegion, args)
	},
}

func init() {
	segmentCmd.Flags().StringVar(&segmentRegion, "region", "", "region hint, e.g. tokyo or shizuoka_blue (required)")
	_ = segmentCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(segmentCmd)
}

// segmentAddresses prints one "input<TAB>result" line per address. An
// address without a lot number is reported inline; an unknown region fails.
func segmentAddresses(out io.Writer, seg *address.Segmenter, region string, addrs []string) error {
	for _, a := range addrs {
		got, err := seg.Segment(a, region)
		switch {
		case address.IsNormalizeError(err):
			_, _ = fmt.Fprintf(out, "%s\tERROR %v\n", a, err)
		case err != nil:
			return err
		default:
			_, _ = fmt.Fprintf(out, "%s\t%s\n", a, got)
		}
	}
	return nil
}
