package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/fetcher"
	"github.com/goto-eat-map/csv2geojson/internal/postal"
	"github.com/goto-eat-map/csv2geojson/internal/store"
)

var postalCmd = &cobra.Command{
	Use:   "postal",
	Short: "Manage the postal code table",
	Long:  "Loads Japan Post's KEN_ALL table, used to cross-check zip codes against record addresses.",
}

// -- postal import --

var postalImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load KEN_ALL.CSV into the postal table",
	Long:  "Loads --file (CSV or ZIP) or downloads --url (default postal.url). The first prefecture seen for a zip code wins.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("postal"); err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		rawURL, _ := cmd.Flags().GetString("url")
		encoding, _ := cmd.Flags().GetString("encoding")
		replace, _ := cmd.Flags().GetBool("replace")
		if encoding == "" {
			encoding = cfg.Postal.Encoding
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tmpDir, err := os.MkdirTemp("", "csv2geojson-postal-")
		if err != nil {
			return eris.Wrap(err, "postal import: temp dir")
		}
		defer os.RemoveAll(tmpDir) //nolint:errcheck

		path := file
		if path == "" {
			if rawURL == "" {
				rawURL = cfg.Postal.URL
			}
			f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
			if path, err = downloadKenAll(ctx, f, rawURL, tmpDir); err != nil {
				return err
			}
		}

		n, err := importPostalFile(ctx, st, path, tmpDir, encoding, replace)
		if err != nil {
			return err
		}
		total, err := st.CountPostalCodes(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %d postal codes (%d in table)\n", n, total)
		return nil
	},
}

// -- postal lookup --

var postalLookupCmd = &cobra.Command{
	Use:   "lookup <zip...>",
	Short: "Print the prefecture of each zip code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return lookupZips(ctx, os.Stdout, st, args)
	},
}

func init() {
	postalImportCmd.Flags().String("file", "", "local KEN_ALL.CSV or its ZIP archive")
	postalImportCmd.Flags().String("url", "", "download URL (default postal.url)")
	postalImportCmd.Flags().String("encoding", "", "CSV encoding (default postal.encoding)")
	postalImportCmd.Flags().Bool("replace", false, "clear the table before loading")

	postalCmd.AddCommand(postalImportCmd)
	postalCmd.AddCommand(postalLookupCmd)
	rootCmd.AddCommand(postalCmd)
}

// downloadKenAll fetches the archive at rawURL into dir and returns its path.
func downloadKenAll(ctx context.Context, f fetcher.Fetcher, rawURL, dir string) (string, error) {
	dest := filepath.Join(dir, "ken_all.zip")
	n, err := f.Save(ctx, rawURL, dest)
	if err != nil {
		return "", eris.Wrap(err, "postal import: download")
	}
	zap.L().Info("downloaded postal archive", zap.String("url", rawURL), zap.Int64("bytes", n))
	return dest, nil
}

// importPostalFile loads path, extracting it into tmpDir first when it is
// a ZIP archive.
func importPostalFile(ctx context.Context, st store.Store, path, tmpDir, encoding string, replace bool) (int, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extracted, err := fetcher.ExtractSingleCSV(path, tmpDir)
		if err != nil {
			return 0, eris.Wrap(err, "postal import: extract")
		}
		path = extracted
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrap(err, "postal import: open")
	}
	defer f.Close() //nolint:errcheck

	return importPostal(ctx, st, f, encoding, replace)
}

func importPostal(ctx context.Context, st store.Store, r io.Reader, encoding string, replace bool) (int, error) {
	entries, err := postal.ReadKenAll(ctx, r, encoding)
	if err != nil {
		return 0, err
	}
	n, err := st.ImportPostalCodes(ctx, entries, replace)
	if err != nil {
		return 0, err
	}
	zap.L().Info("postal codes imported", zap.Int("rows", len(entries)), zap.Int("inserted", n), zap.Bool("replace", replace))
	return n, nil
}

func lookupZips(ctx context.Context, out io.Writer, lookup postal.Lookup, zips []string) error {
	for _, z := range zips {
		pref, found, err := lookup.RegionForZip(ctx, z)
		if err != nil {
			return err
		}
		if !found {
			pref = "-"
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", z, pref)
	}
	return nil
}
