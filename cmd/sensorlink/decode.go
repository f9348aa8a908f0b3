package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/sensorlink/internal/telemetry"
)

var decodeJSON bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode captured sensor frames",
	Long: `Decodes notification frames given as hex strings, one frame per argument.

Fields that do not fit inside a short frame are left out.`,
	Example: `  sensorlink decode 65f1a2b000d7000000010002000300000000000000000000000000000ce4
  sensorlink decode --json "65 f1 a2 b0 00 d7"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print frames as a JSON array")
}

type frameRecord struct {
	Frame    int             `json:"frame"`
	Readings []readingRecord `json:"readings"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	frames := make([][]telemetry.Reading, 0, len(args))
	for i, arg := range args {
		readings, err := telemetry.DecodeHex(arg)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
		frames = append(frames, readings)
	}
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	if decodeJSON {
		records := make([]frameRecord, 0, len(frames))
		for i, readings := range frames {
			rec := frameRecord{Frame: i + 1, Readings: make([]readingRecord, 0, len(readings))}
			for _, r := range readings {
				rec.Readings = append(rec.Readings, newReadingRecord("", r))
			}
			records = append(records, rec)
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	for i, readings := range frames {
		fmt.Fprintf(out, "%s\n", labelColor.Sprintf("frame %d", i+1))
		if len(readings) == 0 {
			fmt.Fprintf(out, "  %s\n", noteColor.Sprint("no readings (frame shorter than its timestamp)"))
			continue
		}
		for _, r := range readings {
			fmt.Fprint(out, "  ")
			printReading(out, r)
		}
	}
	return nil
}
