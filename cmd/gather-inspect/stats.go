package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/grafana/gather/pkg/columnar"
	"github.com/grafana/gather/pkg/parquetcol"
)

// statsCommand prints the layout of a column loaded from each file in files.
type statsCommand struct {
	files  *[]string
	column *string
}

func (cmd *statsCommand) run(_ *kingpin.ParseContext) error {
	for _, f := range *cmd.files {
		cmd.printStats(f)
	}
	return nil
}

func (cmd *statsCommand) printStats(name string) {
	f, closer, err := parquetcol.Open(name)
	if err != nil {
		exitWithErr(fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = closer.Close() }()

	col, err := parquetcol.ReadColumn(memory.DefaultAllocator, f, strings.Split(*cmd.column, ".")...)
	if err != nil {
		exitWithErr(fmt.Errorf("failed to read column: %w", err))
	}
	defer col.Release()

	printColumnStats(name, col)
}

func printColumnStats(name string, col *columnar.Column) {
	bold := color.New(color.Bold)
	bold.Printf("%s: %s\n", name, col.Name())

	category, err := col.Category()
	categoryName := category.String()
	if err != nil {
		categoryName = "unsupported"
	}

	var size uint64
	for _, chunk := range col.Chunks() {
		size += chunkSize(chunk)
	}

	fmt.Printf(
		"\ttype: %s, category: %s, sorted: %s\n",
		col.DataType(),
		categoryName,
		col.Sorted(),
	)
	fmt.Printf(
		"\trows: %s, nulls: %s, chunks: %d, size: %v\n",
		humanize.Comma(int64(col.Len())),
		humanize.Comma(int64(col.NullN())),
		col.NumChunks(),
		humanize.Bytes(size),
	)

	for i, chunk := range col.Chunks() {
		fmt.Printf(
			"\t\tchunk %d: rows: %d, nulls: %d, size: %v\n",
			i,
			chunk.Len(),
			chunk.NullN(),
			humanize.Bytes(chunkSize(chunk)),
		)
	}
}

// chunkSize returns the total size of the buffers of arr, excluding child
// arrays.
func chunkSize(arr arrow.Array) uint64 {
	var size uint64
	for _, buf := range arr.Data().Buffers() {
		if buf != nil {
			size += uint64(buf.Len())
		}
	}
	return size
}

func addStatsCommand(app *kingpin.Application) {
	cmd := &statsCommand{}
	stats := app.Command("stats", "Print the layout of a column.").Action(cmd.run)
	cmd.column = stats.Flag("column", "Dot-separated path of the column to load.").Required().String()
	cmd.files = stats.Arg("file", "The Parquet files to inspect.").Required().ExistingFiles()
}
