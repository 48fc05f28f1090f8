package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Skryldev/photosync/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Summarise the photo catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.config().CatalogPath
			cat, err := catalog.Load(path)
			if err != nil {
				return err
			}

			var undated int
			var newest *catalog.Record
			records := cat.Records()
			for i := range records {
				r := &records[i]
				if r.Date == nil {
					undated++
					continue
				}
				if newest == nil || r.Date.Time().After(newest.Date.Time()) {
					newest = r
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "catalog:\t%s\n", path)
			fmt.Fprintf(w, "records:\t%d\n", len(records))
			fmt.Fprintf(w, "without date:\t%d\n", undated)
			if newest != nil {
				fmt.Fprintf(w, "newest:\t%s (%s)\n", newest.OriginalName, humanize.Time(newest.Date.Time()))
			}
			return w.Flush()
		},
	}
}
