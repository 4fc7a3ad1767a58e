// Command ledgerdbctl opens a ledgerdb instance and runs a scripted
// sequence of transactions against one heap table, printing what it read
// back. It replaces the teacher's bubbletea shell (pkg/ui) -- an
// interactive shell is explicitly out of scope here -- with the smallest
// thing that exercises the storage core end to end: create a table,
// insert rows inside a committed transaction, then scan it back inside a
// second transaction.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/linpingchuan/ledgerdb/internal/txlog"
	"github.com/linpingchuan/ledgerdb/pkg/dbcontext"
	"github.com/linpingchuan/ledgerdb/pkg/tuple"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "data directory for table files and the WAL")
		logLevel = flag.String("log-level", "info", "debug, info, warn, or error")
		rows     = flag.Int("rows", 5, "number of demo rows to insert")
	)
	flag.Parse()

	if err := run(*dataDir, *logLevel, *rows); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerdbctl: %v\n", err)
		os.Exit(1)
	}
}

func run(dataDir, logLevel string, rows int) error {
	ctx, err := dbcontext.Open(dbcontext.Config{
		DataDir: dataDir,
		Logger:  txlog.Config{Level: logLevel, Format: "console"},
	})
	if err != nil {
		return fmt.Errorf("open context: %w", err)
	}
	defer ctx.Close()

	desc, err := tuple.NewDescription(
		[]tuple.FieldType{tuple.IntType, tuple.StringType},
		[]string{"id", "name"},
	)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	if _, err := ctx.CreateTable("demo", desc); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if err := insertRows(ctx, desc, rows); err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}

	return scanRows(ctx)
}

func insertRows(ctx *dbcontext.Context, desc *tuple.Description, n int) error {
	table, err := ctx.Catalog.TableByName("demo")
	if err != nil {
		return err
	}

	tx, err := ctx.Begin()
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		t := tuple.New(desc)
		if err := t.SetField(0, tuple.NewIntField(int32(i))); err != nil {
			_ = tx.Abort()
			return err
		}
		if err := t.SetField(1, tuple.NewStringField(fmt.Sprintf("row-%d", i))); err != nil {
			_ = tx.Abort()
			return err
		}
		if _, err := ctx.Pool.InsertTuple(tx.ID(), table.File.ID(), t); err != nil {
			_ = tx.Abort()
			return err
		}
	}

	return tx.Commit()
}

func scanRows(ctx *dbcontext.Context) error {
	table, err := ctx.Catalog.TableByName("demo")
	if err != nil {
		return err
	}

	tx, err := ctx.Begin()
	if err != nil {
		return err
	}
	defer tx.Abort()

	it := table.File.Iterator(tx.ID())
	if err := it.Open(); err != nil {
		return err
	}
	defer it.Close()

	for {
		has, err := it.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		row, err := it.Next()
		if err != nil {
			return err
		}
		fmt.Println(row)
	}
	return nil
}
