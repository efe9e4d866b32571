// cmd/describe.go
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heterosim/heterosim/internal/codec"
	"github.com/heterosim/heterosim/internal/config"
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/simulator"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the genome layout and resolved flavor for every SoC model in todoModels",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := config.Load(configPath)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}

		for _, modelPath := range cfg.TodoModels {
			soc, err := cpumodel.LoadSocFile(modelPath)
			if err != nil {
				logrus.Fatalf("loading model %s: %v", modelPath, err)
			}

			flavor, err := simulator.FlavorFor(soc.SchedType, cfg.UseUperf)
			if err != nil {
				logrus.Fatalf("resolving flavor for %s: %v", modelPath, err)
			}

			c, err := codec.New(&soc, cfg.CodecRanges(), soc.SchedType, cfg.UseUperf)
			if err != nil {
				logrus.Fatalf("building codec for %s: %v", modelPath, err)
			}

			fmt.Printf("flavor: %s\n", flavorName(flavor))
			fmt.Print(c.Describe())
			fmt.Println()
		}
	},
}

func flavorName(f simulator.Flavor) string {
	switch f {
	case simulator.QcomBL:
		return "QcomBL (Interactive + WALT + InputBoost)"
	case simulator.BL:
		return "BL (Interactive + PELT + InputBoost)"
	case simulator.QcomUp:
		return "QcomUp (Interactive + WALT + UperfBoost)"
	case simulator.Up:
		return "Up (Interactive + PELT + UperfBoost)"
	default:
		return "unknown"
	}
}
