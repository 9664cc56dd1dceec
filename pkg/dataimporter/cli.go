package dataimporter

import (
	"time"

	"github.com/mpm-tu-berlin/eflips-ingest/pkg/database"
	"github.com/mpm-tu-berlin/eflips-ingest/pkg/dataimporter/formats/vdv"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Import transit schedule datasets into the eflips database",
		Subcommands: []*cli.Command{
			{
				Name:  "vdv",
				Usage: "Import a VDV 452 dataset from a directory or zip archive",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Path to the dataset directory or .zip archive",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "degenerate-patterns",
						Usage: "YAML file overriding the built-in list of degenerate route patterns",
					},
					&cli.StringFlag{
						Name:  "timezone",
						Usage: "Civil timezone of the schedule",
						Value: vdv.DefaultTimezone,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					importer := vdv.NewImporter(database.NewStore(database.GlobalGorm))
					importer.Timezone = c.String("timezone")

					if path := c.String("degenerate-patterns"); path != "" {
						patterns, err := vdv.LoadDegeneratePatterns(path)
						if err != nil {
							return err
						}
						importer.Patterns = patterns
					}

					startTime := time.Now()
					progress := func(fraction float64) {
						log.Info().Int("percent", int(fraction*100)).Msg("Import progress")
					}

					if err := importer.Import(c.Context, c.String("source"), progress); err != nil {
						return err
					}

					log.Info().Msgf("Operation took %s", time.Since(startTime).String())
					return nil
				},
			},
		},
	}
}
