package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"

	"github.com/urbanmobility/tripdk/ingest"
)

// IngestMain is wrapped by NewIngestCommand and only exported for testing
// purposes.
var IngestMain *ingest.Main

// NewIngestCommand returns a new cobra command wrapping IngestMain.
func NewIngestCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	IngestMain = ingest.NewMain()
	ingestCommand := &cobra.Command{
		Use:   "ingest",
		Short: "ingest - stream trip CSVs through validation into a local store",
		Long: `Reads one or more trip CSV extracts (local paths, http(s):// or s3://
URLs), runs every row through the chosen validation strategy, and delivers
the processed records in batches to a BoltDB file or the log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := IngestMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := ingestCommand.Flags()
	if err := commandeer.Flags(flags, IngestMain); err != nil {
		panic(err)
	}
	return ingestCommand
}

func init() {
	subcommandFns["ingest"] = NewIngestCommand
}
