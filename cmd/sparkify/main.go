// Command sparkify provisions a Redshift warehouse and runs the Sparkify
// song-play ETL against it, or against a local Postgres, SQL Server or SQLite
// warehouse.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	// register every warehouse backend; the config picks one.
	_ "sparkify/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sparkify:", err)
		os.Exit(1)
	}
}
