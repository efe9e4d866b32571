// cmd/run.go
package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heterosim/heterosim/internal/codec"
	"github.com/heterosim/heterosim/internal/config"
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/optimizer"
	"github.com/heterosim/heterosim/internal/output"
	"github.com/heterosim/heterosim/internal/rank"
	"github.com/heterosim/heterosim/internal/result"
	"github.com/heterosim/heterosim/internal/simulator"
	"github.com/heterosim/heterosim/internal/workload"
)

var (
	flagPopulation   int
	flagGenerations  int
	flagThreadNum    int
	flagRandomSeed   uint64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one NSGA-III optimization per SoC model named in the config's todoModels",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := config.Load(configPath)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}

		if cmd.Flags().Changed("population") {
			cfg.GaParameter.Population = flagPopulation
		}
		if cmd.Flags().Changed("generations") {
			cfg.GaParameter.GenerationMax = flagGenerations
		}
		if cmd.Flags().Changed("threads") {
			cfg.GaParameter.ThreadNum = flagThreadNum
		}
		if cmd.Flags().Changed("seed") {
			cfg.GaParameter.RandomSeed = flagRandomSeed
		}

		onscreen, err := workload.LoadFile(cfg.MergedWorkload)
		if err != nil {
			logrus.Fatalf("loading merged workload: %v", err)
		}
		offscreen, err := workload.LoadFile(cfg.IdleWorkload)
		if err != nil {
			logrus.Fatalf("loading idle workload: %v", err)
		}

		for _, modelPath := range cfg.TodoModels {
			if err := runOneModel(context.Background(), cfg, modelPath, onscreen, offscreen); err != nil {
				logrus.Fatalf("running model %s: %v", modelPath, err)
			}
		}
	},
}

func runOneModel(ctx context.Context, cfg config.Config, modelPath string, onscreen, offscreen *workload.Workload) error {
	soc, err := cpumodel.LoadSocFile(modelPath)
	if err != nil {
		return err
	}

	flavor, err := simulator.FlavorFor(soc.SchedType, cfg.UseUperf)
	if err != nil {
		return err
	}

	c, err := codec.New(&soc, cfg.CodecRanges(), soc.SchedType, cfg.UseUperf)
	if err != nil {
		return err
	}

	ranker := rank.New(cfg.RankMisc(), rank.Score{Performance: 1, BatteryLife: 1, IdleLasting: 1})
	simMisc := cfg.SimulatorMisc()

	defaultTunables := c.Default()
	defaultResult, err := simulator.Run(&soc, onscreen, offscreen, defaultTunables, simMisc)
	if err != nil {
		return err
	}
	baseline := ranker.Eval(onscreen, offscreen, defaultResult, &soc, true)
	ranker.SetDefaultScore(baseline)

	problem := &optimizer.Problem{
		Soc: &soc, Onscreen: onscreen, Offscreen: offscreen,
		Codec: c, Ranker: ranker, Misc: simMisc,
		WorkFraction:   cfg.MiscSettings.WorkFraction,
		IdleFraction:   cfg.MiscSettings.IdleFraction,
		IdleLastingMin: cfg.MiscSettings.IdleLastingMin,
		PerformanceMax: cfg.MiscSettings.PerformanceMax,
	}

	logrus.WithFields(logrus.Fields{"soc": soc.Name, "flavor": flavor}).Info("heterosim: starting optimization")

	front, err := optimizer.Run(ctx, problem, cfg.OptimizerConfig())
	if err != nil {
		return err
	}

	results := result.FromOptimizer(front)
	logrus.WithFields(logrus.Fields{"soc": soc.Name, "front_size": len(results)}).Info("heterosim: optimization complete")

	return output.Write(outputDir, soc.Name, flavor, results, c.ParamLen(), time.Now())
}

func init() {
	runCmd.Flags().IntVar(&flagPopulation, "population", 0, "override gaParameter.population")
	runCmd.Flags().IntVar(&flagGenerations, "generations", 0, "override gaParameter.generationMax")
	runCmd.Flags().IntVar(&flagThreadNum, "threads", 0, "override gaParameter.threadNum")
	runCmd.Flags().Uint64Var(&flagRandomSeed, "seed", 0, "override gaParameter.randomSeed")
	runCmd.Flags().StringVar(&outputDir, "output", filepath.Join(".", "output"), "directory to write result artifacts into")
}
