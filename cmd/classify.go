package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goto-eat-map/csv2geojson/internal/genre"
)

var classifyListRules bool

var classifyCmd = &cobra.Command{
	Use:   "classify [label...]",
	Short: "Print the genre code for each label",
	Long:  "Classifies genre labels with the configured rule table. Useful when extending genre.rules_file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := initClassifier(cfg.Genre)
		if err != nil {
			return err
		}
		if classifyListRules {
			formatRules(os.Stdout, c.Rules())
			return nil
		}
		if len(args) == 0 {
			return cmd.Usage()
		}
		formatClassifications(os.Stdout, c, args)
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyListRules, "rules", false, "print the rule table in match order")
	rootCmd.AddCommand(classifyCmd)
}

func formatClassifications(out io.Writer, c *genre.Classifier, labels []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LABEL\tCODE\tGENRE\tRULE")
	for _, label := range labels {
		rule := "-"
		if r, ok := c.Match(label); ok {
			rule = r.Name
		}
		code := c.Classify(label)
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", label, int(code), code, rule)
	}
	_ = w.Flush()
}

func formatRules(out io.Writer, rules []genre.Rule) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tRULE\tCODE\tKEYWORDS")
	for i, r := range rules {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, r.Name, int(r.Code), strings.Join(r.Keywords, " "))
	}
	_ = w.Flush()
}
