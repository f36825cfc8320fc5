package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/memmux/internal/remux"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported containers and codecs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		cat := remux.New(remux.Config{Logger: logger}).Catalog()
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		}
		printCatalog(cmd.OutOrStdout(), cat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
	formatsCmd.Flags().Bool("json", false, "print the catalog as JSON")
}

// printCatalog lists formats and codecs with D/E capability flags.
func printCatalog(w io.Writer, cat remux.Catalog) {
	fmt.Fprintln(w, "Formats:")
	fmt.Fprintln(w, " D. = demux")
	fmt.Fprintln(w, " .E = mux")
	for _, f := range cat.Formats {
		name := f.Name
		if len(f.Aliases) > 0 {
			name += "," + strings.Join(f.Aliases, ",")
		}
		fmt.Fprintf(w, " %s %-16s %s\n", flags(f.Demux, f.Mux), name, f.LongName)
		if f.Mux {
			fmt.Fprintf(w, "    %-16s default %s; %s\n", "", f.DefaultCodec, strings.Join(f.Codecs, " "))
		}
	}

	fmt.Fprintln(w, "\nCodecs:")
	fmt.Fprintln(w, " D. = decode")
	fmt.Fprintln(w, " .E = encode")
	for _, c := range cat.Codecs {
		fmt.Fprintf(w, " %s %-16s %s\n", flags(c.Decode, c.Encode), c.Name, c.LongName)
	}
}

func flags(d, e bool) string {
	out := []byte("..")
	if d {
		out[0] = 'D'
	}
	if e {
		out[1] = 'E'
	}
	return string(out)
}
