package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fatih/color"
	"github.com/grafana/dskit/flagext"
	"gopkg.in/yaml.v3"

	"github.com/grafana/gather/pkg/columnar"
	"github.com/grafana/gather/pkg/compute"
	"github.com/grafana/gather/pkg/parquetcol"
)

// nullIndex marks a null element in the list of indices passed to take.
const nullIndex = "-"

// takeCommand gathers elements of one or more columns loaded from a Parquet
// file.
type takeCommand struct {
	file       *string
	columns    *[]string
	indices    *string
	unchecked  *bool
	configFile *string

	rechunkOutput      bool
	rechunkOutputSet   bool
	maxTargetChunks    int
	maxTargetChunksSet bool
}

func (cmd *takeCommand) run(_ *kingpin.ParseContext) error {
	cfg, err := cmd.loadConfig()
	if err != nil {
		exitWithErr(err)
	}

	values, valid, err := parseIndices(*cmd.indices)
	if err != nil {
		exitWithErr(err)
	}

	f, closer, err := parquetcol.Open(*cmd.file)
	if err != nil {
		exitWithErr(fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = closer.Close() }()

	cols := make([]*columnar.Column, 0, len(*cmd.columns))
	defer func() {
		for _, col := range cols {
			col.Release()
		}
	}()
	for _, path := range *cmd.columns {
		col, err := parquetcol.ReadColumn(memory.DefaultAllocator, f, strings.Split(path, ".")...)
		if err != nil {
			exitWithErr(fmt.Errorf("failed to read column %s: %w", path, err))
		}
		cols = append(cols, col)
	}

	indices := columnar.NewIndexColumn(memory.DefaultAllocator, "indices", values, valid)
	defer indices.Release()

	g := compute.NewGatherer(cfg, memory.DefaultAllocator, logger, nil)

	out, err := gatherColumns(g, cols, indices, *cmd.unchecked)
	if err != nil {
		exitWithErr(err)
	}
	defer out.Release()

	for _, path := range *cmd.columns {
		printColumn(out.ColumnByName(path))
	}
	return nil
}

// gatherColumns gathers a single column with Take or TakeUnchecked, and
// multiple columns as one batch so bounds are validated only once.
func gatherColumns(g *compute.Gatherer, cols []*columnar.Column, indices *columnar.Column, unchecked bool) (columnar.RecordBatch, error) {
	if len(cols) > 1 {
		if unchecked {
			return columnar.RecordBatch{}, fmt.Errorf("--unchecked can't be used with more than one column")
		}

		batch := columnar.NewRecordBatch(int64(cols[0].Len()), cols)
		defer batch.Release()

		out, err := g.TakeBatch(batch, indices)
		if err != nil {
			return columnar.RecordBatch{}, fmt.Errorf("failed to gather columns: %w", err)
		}
		return out, nil
	}

	take := g.Take
	if unchecked {
		take = g.TakeUnchecked
	}
	col, err := take(cols[0], indices)
	if err != nil {
		return columnar.RecordBatch{}, fmt.Errorf("failed to gather %s: %w", cols[0].Name(), err)
	}
	defer col.Release()

	return columnar.NewRecordBatch(int64(col.Len()), []*columnar.Column{col}), nil
}

func printColumn(col *columnar.Column) {
	bold := color.New(color.Bold)
	bold.Printf("%s (%d rows, %d chunks, sorted: %s):\n", col.Name(), col.Len(), col.NumChunks(), col.Sorted())

	var row int
	for _, chunk := range col.Chunks() {
		for i := range chunk.Len() {
			fmt.Printf("\t%d: %s\n", row, chunk.ValueStr(i))
			row++
		}
	}
}

// loadConfig builds the gatherer config from defaults, then the config file,
// then flags set on the command line.
func (cmd *takeCommand) loadConfig() (compute.Config, error) {
	var cfg compute.Config
	flagext.DefaultValues(&cfg)

	if *cmd.configFile != "" {
		buf, err := os.ReadFile(*cmd.configFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cmd.rechunkOutputSet {
		cfg.RechunkOutput = cmd.rechunkOutput
	}
	if cmd.maxTargetChunksSet {
		cfg.MaxTargetChunks = cmd.maxTargetChunks
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseIndices parses a comma-separated list of indices, where [nullIndex]
// denotes a null index.
func parseIndices(s string) ([]columnar.IdxSize, []bool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil, nil
	}

	var (
		fields = strings.Split(s, ",")
		values = make([]columnar.IdxSize, len(fields))
		valid  = make([]bool, len(fields))
	)
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == nullIndex {
			continue
		}

		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid index %q: %w", field, err)
		}
		values[i] = v
		valid[i] = true
	}
	return values, valid, nil
}

func addTakeCommand(app *kingpin.Application) {
	cmd := &takeCommand{}
	take := app.Command("take", "Gather elements of a column by index.").Action(cmd.run)
	cmd.columns = take.Flag("column", "Dot-separated path of a column to load. Repeat to gather several columns at once.").Required().Strings()
	cmd.indices = take.Flag("indices", "Comma-separated indices to gather. Use - for a null index.").Required().String()
	cmd.unchecked = take.Flag("unchecked", "Skip bounds validation. Out of bounds indices may crash the command.").Bool()
	cmd.configFile = take.Flag("config.file", "YAML file with gatherer configuration.").ExistingFile()
	take.Flag("gather.rechunk-output", "Merge gathered columns into a single chunk instead of one chunk per index chunk.").
		IsSetByUser(&cmd.rechunkOutputSet).BoolVar(&cmd.rechunkOutput)
	take.Flag("gather.max-target-chunks", "Merge targets with more chunks than this into a single chunk before gathering. 0 disables merging.").
		IsSetByUser(&cmd.maxTargetChunksSet).IntVar(&cmd.maxTargetChunks)
	cmd.file = take.Arg("file", "The Parquet file to read.").Required().ExistingFile()
}
