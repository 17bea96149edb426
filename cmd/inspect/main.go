// Command inspect reports how each input file's header maps onto the
// canonical inspection schema: which raw column feeds each field and which
// required fields are missing. It reads the same paths and alias file as the
// etl job, so a new export can be checked before the next run.
//
// Usage:
//
//	go run ./cmd/inspect -aliases config/aliases.yaml data/input
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/gasparespejo/EFILabs/internal/adapter/filesystem"
	"github.com/gasparespejo/EFILabs/internal/adapter/tabular"
	"github.com/gasparespejo/EFILabs/internal/domain"
)

var errUnmappable = errors.New("one or more files cannot be mapped")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	aliasFile := fs.String("aliases", "", "YAML alias table merged over the built-in aliases")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"data/input"}
	}

	aliases := domain.DefaultAliasTable()
	if *aliasFile != "" {
		data, err := os.ReadFile(*aliasFile)
		if err != nil {
			return err
		}
		if aliases, err = domain.LoadAliasTable(data, aliases); err != nil {
			return err
		}
	}

	files, err := filesystem.NewSource(paths).Fetch(context.Background())
	if err != nil {
		return err
	}

	parser := tabular.NewParser()
	failed := 0
	for i, f := range files {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if !report(out, parser, f, aliases) {
			failed++
		}
	}
	fmt.Fprintf(out, "\n%d files, %d unmappable\n", len(files), failed)
	if failed > 0 {
		return errUnmappable
	}
	return nil
}

// report prints the mapping of one file and reports whether it is usable.
func report(out io.Writer, parser *tabular.Parser, f domain.SourceFile, aliases domain.AliasTable) bool {
	name := filepath.Base(f.Name)
	if f.ReadErr != nil {
		fmt.Fprintf(out, "%s: %v\n", name, f.ReadErr)
		return false
	}
	table, err := parser.Parse(f)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", name, err)
		return false
	}

	cm := domain.ResolveColumns(table.Header, aliases)
	fmt.Fprintf(out, "%s: %d rows\n", name, len(table.Rows))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, field := range domain.CanonicalFields() {
		col := "-"
		if i, ok := cm[field]; ok {
			col = fmt.Sprintf("%q (columna %d)", table.Header[i], i+1)
		}
		fmt.Fprintf(tw, "  %s\t%s\n", field, col)
	}
	_ = tw.Flush()

	if missing := cm.Missing(domain.RequiredFields); len(missing) > 0 {
		fmt.Fprintf(out, "  faltan campos requeridos: %v\n", missing)
		return false
	}
	return true
}
