package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/internal/remux"
	"github.com/jmylchreest/memmux/pkg/format"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show the format, streams and tags of a media file",
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringP("in", "i", "", "input file, URL or - for stdin")
	probeCmd.Flags().Bool("json", false, "print the result as JSON")
	_ = probeCmd.MarkFlagRequired("in")
}

func runProbe(cmd *cobra.Command, _ []string) error {
	in, _ := cmd.Flags().GetString("in")
	asJSON, _ := cmd.Flags().GetBool("json")

	data, err := readInput(cmd.Context(), in, cmd.InOrStdin(), cfg.Convert.MaxInputSize.Bytes())
	if err != nil {
		return err
	}
	res, err := remux.New(remux.Config{Logger: logger}).Probe(cmd.Context(), data)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printProbe(cmd.OutOrStdout(), res)
	return nil
}

// printProbe writes a human readable summary in the style of ffprobe.
func printProbe(w io.Writer, res *remux.ProbeResult) {
	fmt.Fprintf(w, "Input: %s (%s), %s\n", res.Format, res.FormatLongName, format.Bytes(res.Size))
	fmt.Fprintf(w, "  Duration: %s, bitrate: %s\n", format.Timestamp(res.Duration), format.BitRate(res.BitRate))
	printTags(w, "  ", res.Tags)

	for _, st := range res.Streams {
		marker := ""
		if st.Index == res.BestStream {
			marker = " (selected)"
		}
		parts := []string{st.Codec}
		if st.SampleRate > 0 {
			parts = append(parts, format.Number(int64(st.SampleRate))+" Hz")
		}
		if st.Channels > 0 {
			parts = append(parts, fmt.Sprintf("%d ch", st.Channels))
		}
		if st.BitRate > 0 {
			parts = append(parts, format.BitRate(st.BitRate))
		}
		fmt.Fprintf(w, "  Stream #%d: %s: %s%s\n", st.Index, st.Kind, strings.Join(parts, ", "), marker)
		if st.Duration > 0 {
			fmt.Fprintf(w, "    Duration: %s, time base %s\n", format.Timestamp(st.Duration), st.TimeBase)
		}
		printTags(w, "    ", st.Tags)
	}

	if p := res.Picture; p != nil {
		fmt.Fprintf(w, "  Picture: %s %s %dx%d, %s\n", p.Type, p.MIME, p.Width, p.Height, format.Bytes(int64(p.Size)))
	}
}

func printTags(w io.Writer, indent string, tags *media.Tags) {
	shown := false
	tags.Each(func(k, v string) {
		// The picture is summarised separately.
		if strings.EqualFold(k, picture.TagKey) {
			return
		}
		if !shown {
			fmt.Fprintf(w, "%sMetadata:\n", indent)
			shown = true
		}
		fmt.Fprintf(w, "%s  %-16s: %s\n", indent, k, v)
	})
}
