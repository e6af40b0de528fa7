package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"

	"github.com/beetlebugorg/cogtiles/internal/config"
	"github.com/beetlebugorg/cogtiles/internal/logger"
	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

const (
	CONFIG        string = `config`
	DATAROOT      string = `dataRoot`
	COLLECTIONS   string = `collections`
	CACHECAPACITY string = `cacheCapacity`
	LOGLEVEL      string = `logLevel`
	LOGFORMAT     string = `logFormat`
	METRICS       string = `metrics`
	SPECIES       string = `species`
	ASV           string = `asv`
	JSONOUT       string = `json`
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		logger.L().Warn("dotenv_load_failed", "path", ".env", "error", err)
	}

	app := cli.NewApp()
	app.Name = "cogtiles"
	app.Usage = "Resolve map tiles and point samples from collections of geo-referenced rasters"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
		},
		&cli.StringFlag{
			Name:    DATAROOT,
			Aliases: []string{"d"},
			Usage:   "Directory holding one sub-directory per collection",
			EnvVars: []string{strcase.ToScreamingSnake(DATAROOT)},
		},
		&cli.StringSliceFlag{
			Name:    COLLECTIONS,
			Usage:   "Collections to load: bathy, ortho, pred, pred_drone, pred_asv",
			EnvVars: []string{strcase.ToScreamingSnake(COLLECTIONS)},
		},
		&cli.IntFlag{
			Name:    CACHECAPACITY,
			Usage:   "Open rasters kept per partition",
			EnvVars: []string{strcase.ToScreamingSnake(CACHECAPACITY)},
		},
		&cli.StringFlag{
			Name:    LOGLEVEL,
			Usage:   "debug, info, warn or error",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    LOGFORMAT,
			Usage:   "text or json",
			EnvVars: []string{"LOG_FORMAT"},
		},
		&cli.BoolFlag{
			Name:    METRICS,
			Usage:   "Print Prometheus metrics to stderr on exit",
			EnvVars: []string{strcase.ToScreamingSnake(METRICS)},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:   "index",
			Usage:  "Build every partition and print a summary",
			Flags:  []cli.Flag{&cli.BoolFlag{Name: JSONOUT, Usage: "Print JSON"}},
			Action: withCollections(runIndex),
		},
		{
			Name:      "tile",
			Usage:     "Resolve one tile and print the contributing rasters",
			ArgsUsage: "<collection> <year> <z> <x> <y>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: SPECIES, Usage: "Species, for pred_asv"},
				&cli.BoolFlag{Name: ASV, Value: true, Usage: "Prioritise ASV rasters (false excludes them)"},
			},
			Action: withCollections(runTile),
		},
		{
			Name:      "sample",
			Usage:     "Sample a collection at a point and print JSON",
			ArgsUsage: "<collection> <year> <lon> <lat>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: SPECIES, Usage: "Species, for pred_asv"},
			},
			Action: withCollections(runSample),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadDotEnv loads environment variables from path. A missing file is not an
// error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// withCollections loads the configuration and collections before running
// action, and closes them afterwards.
func withCollections(action func(*cli.Context, *cogtiles.Collections) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		l := logger.Setup(cfg.Log.Level, cfg.Log.Format)

		kinds, err := cfg.Kinds()
		if err != nil {
			return err
		}
		opts := cfg.Options()
		opts.Logger = l

		var registry *prometheus.Registry
		if c.Bool(METRICS) {
			registry = prometheus.NewRegistry()
			opts.Metrics = cogtiles.NewMetrics(registry)
		}

		colls, err := cogtiles.LoadCollections(cfg.DataRoot, kinds, opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := colls.Close(); err != nil {
				l.Warn("close_failed", "error", err)
			}
			if registry != nil {
				if err := writeMetrics(os.Stderr, registry); err != nil {
					l.Warn("metrics_write_failed", "error", err)
				}
			}
		}()

		return action(c, colls)
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(CONFIG))
	if err != nil {
		return nil, err
	}
	if c.IsSet(DATAROOT) {
		cfg.DataRoot = c.String(DATAROOT)
	}
	if c.IsSet(COLLECTIONS) {
		cfg.Collections = c.StringSlice(COLLECTIONS)
	}
	if c.IsSet(CACHECAPACITY) {
		cfg.CacheCapacity = c.Int(CACHECAPACITY)
	}
	if c.IsSet(LOGLEVEL) {
		cfg.Log.Level = c.String(LOGLEVEL)
	}
	if c.IsSet(LOGFORMAT) {
		cfg.Log.Format = c.String(LOGFORMAT)
	}
	return cfg, cfg.Validate()
}

func runIndex(c *cli.Context, colls *cogtiles.Collections) error {
	stats := colls.Stats()
	if c.Bool(JSONOUT) {
		return writeJSON(c.App.Writer, stats)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PARTITION\tASSETS\tWEST\tSOUTH\tEAST\tNORTH")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.6f\t%.6f\t%.6f\t%.6f\n", s.Name, s.Assets,
			s.Envelope.Min[0], s.Envelope.Min[1], s.Envelope.Max[0], s.Envelope.Max[1])
	}
	return w.Flush()
}

// tileReport describes a resolved tile.
type tileReport struct {
	Collection string   `json:"collection"`
	Year       string   `json:"year"`
	Species    string   `json:"species,omitempty"`
	Z          uint32   `json:"z"`
	X          uint32   `json:"x"`
	Y          uint32   `json:"y"`
	Candidates []string `json:"candidates"`
	NoData     bool     `json:"noData"`
	Opaque     int      `json:"opaquePixels"`
	Pixels     int      `json:"pixels"`
}

func runTile(c *cli.Context, colls *cogtiles.Collections) error {
	if c.NArg() != 5 {
		return fmt.Errorf("tile: expected <collection> <year> <z> <x> <y>, got %d arguments", c.NArg())
	}
	kind, err := cogtiles.ParseKind(c.Args().Get(0))
	if err != nil {
		return err
	}
	year := c.Args().Get(1)
	var zxy [3]uint32
	for i := range zxy {
		v, err := strconv.ParseUint(c.Args().Get(2+i), 10, 32)
		if err != nil {
			return fmt.Errorf("tile: %w", err)
		}
		zxy[i] = uint32(v)
	}
	t := maptile.New(zxy[1], zxy[2], maptile.Zoom(zxy[0]))
	req := cogtiles.NewTileRequest(t, c.Bool(ASV))
	species := c.String(SPECIES)

	report := tileReport{
		Collection: kind.String(),
		Year:       year,
		Species:    species,
		Z:          zxy[0],
		X:          zxy[1],
		Y:          zxy[2],
		Candidates: []string{},
	}
	if m, ok := colls.Manager(kind); ok {
		if p, ok := m.Partition(year, species); ok {
			for _, a := range p.Candidates(req) {
				report.Candidates = append(report.Candidates, a.Path)
			}
		}
	}

	tile, ok, err := colls.ResolveTile(kind, year, species, req)
	if err != nil {
		return err
	}
	report.NoData = !ok
	if ok {
		w, h := tile.Size()
		report.Pixels = w * h
		report.Opaque = tile.OpaquePixels()
	}
	return writeJSON(c.App.Writer, report)
}

// sampleReport is the answer to a point request. Value is null when there
// is no data.
type sampleReport struct {
	Lon    float64  `json:"lon"`
	Lat    float64  `json:"lat"`
	Value  *float64 `json:"value"`
	Label  string   `json:"label,omitempty"`
	Source string   `json:"source,omitempty"`
}

func runSample(c *cli.Context, colls *cogtiles.Collections) error {
	if c.NArg() != 4 {
		return fmt.Errorf("sample: expected <collection> <year> <lon> <lat>, got %d arguments", c.NArg())
	}
	kind, err := cogtiles.ParseKind(c.Args().Get(0))
	if err != nil {
		return err
	}
	lon, err := strconv.ParseFloat(c.Args().Get(2), 64)
	if err != nil {
		return fmt.Errorf("sample: lon: %w", err)
	}
	lat, err := strconv.ParseFloat(c.Args().Get(3), 64)
	if err != nil {
		return fmt.Errorf("sample: lat: %w", err)
	}

	s, ok, err := colls.SamplePoint(kind, c.Args().Get(1), c.String(SPECIES), lon, lat)
	if err != nil {
		return err
	}
	report := sampleReport{Lon: lon, Lat: lat}
	if ok {
		report.Value = &s.Value
		report.Label = s.Label
		report.Source = s.Source
	}
	return writeJSON(c.App.Writer, report)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
