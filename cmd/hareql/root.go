// Command hareql is the engine's outer bootstrap layer: configuration
// loading, logging setup, and a handful of operator subcommands that
// open an on-disk catalogue and drive it with parsed Query values.
// None of it reaches into planner/exec internals beyond the public
// Binder/Planner/Build surface those packages already export — the
// engine is embeddable-only per its design, this is just one possible
// embedder, grounded the way cli/root.go bootstraps eve's own server.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hareql.dev/catalogue"
	"hareql.dev/exec"
	"hareql.dev/hconfig"
	"hareql.dev/hlog"
	"hareql.dev/planner"
)

var (
	cfgFile      string
	catalogueDir string
)

var rootCmd = &cobra.Command{
	Use:   "hareql",
	Short: "embeddable columnar + kNN query engine",
	Long: `hareql is a single-node columnar database engine specialized for
mixed Boolean and kNN queries over high-dimensional vectors.

The engine is designed to be embedded as a Go library: this binary is
an operator tool for inspecting and querying an on-disk catalogue, not
a network-facing server. "serve" is a stub that says so; "query" and
"stats" are the actual operator surface.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.hareql.yaml)")
	rootCmd.PersistentFlags().StringVar(&catalogueDir, "catalogue-dir", "", "catalogue root directory")

	rootCmd.AddCommand(serveCmd, queryCmd, statsCmd)
}

func loadConfig() (hconfig.Config, hlog.Entry, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if catalogueDir != "" {
		v.Set("catalogue_dir", catalogueDir)
	}
	cfg, err := hconfig.Load(v, "HAREQL")
	if err != nil {
		return hconfig.Config{}, hlog.Entry{}, err
	}

	logger := hlog.New(hlog.Config{
		Level:      hlog.Level(cfg.LogLevel),
		Format:     cfg.LogFormat,
		TimeFormat: time.RFC3339,
	})
	return cfg, hlog.NewEntry(logger), nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "print why there is no network server",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hareql is embeddable-only: it exposes no network listener by design.")
		fmt.Println("Link the catalogue/planner/exec packages into a process that owns the transport (gRPC, embedded, etc).")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print catalogue, schema, and transaction statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := catalogue.Open(cfg.CatalogueDir, catalogue.Config{
			LockDeadline: cfg.LockDeadline,
			PoolCapacity: cfg.PoolCapacity,
			MaxTxHistory: cfg.MaxTxHistory,
		}, log.Entry)
		if err != nil {
			return err
		}
		defer cat.Close()

		tx := cat.NewTx(catalogue.ReadOnly)
		ctx := hlog.WithTxID(context.Background(), fmt.Sprintf("%d", tx.ID()))

		ctxTx, err := cat.Tx(ctx, tx, catalogue.SharedLock)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		for _, schemaName := range ctxTx.ListSchemas() {
			schema, _ := ctxTx.SchemaForName(schemaName)
			schemaTx, err := schema.NewTx(ctx, tx, catalogue.SharedLock)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			fmt.Printf("schema %s:\n", schemaName)
			for _, entityName := range schemaTx.ListEntities() {
				entity, _ := schemaTx.EntityForName(entityName)
				entityTx, err := entity.NewTx(ctx, tx, catalogue.SharedLock)
				if err != nil {
					_ = tx.Rollback()
					return err
				}
				cols := entityTx.ListColumns()
				fmt.Printf("  entity %s (%d columns)\n", entityName, len(cols))
				for _, ix := range entityTx.ListIndexes() {
					fmt.Printf("    index %s\n", ix)
				}
			}
		}

		fmt.Println("transactions:")
		for _, rec := range cat.TxStats() {
			elapsed := rec.ClosedAt.Sub(rec.StartedAt)
			fmt.Printf("  tx %d mode=%v status=%v correlation=%s elapsed=%s\n",
				rec.ID, rec.Mode, rec.Status, rec.Correlation, humanize.RelTime(rec.StartedAt, rec.StartedAt.Add(elapsed), "", ""))
		}

		return tx.Commit()
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <schema.entity> <query.json>",
	Short: "run a Query read from a JSON file against an entity and print matching records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		schemaName, entityName, ok := splitFqEntity(args[0])
		if !ok {
			return fmt.Errorf("entity reference %q must be schema.entity", args[0])
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		wireQuery, err := decodeQueryFile(data)
		if err != nil {
			return err
		}

		cat, err := catalogue.Open(cfg.CatalogueDir, catalogue.Config{
			LockDeadline: cfg.LockDeadline,
			PoolCapacity: cfg.PoolCapacity,
			MaxTxHistory: cfg.MaxTxHistory,
		}, log.Entry)
		if err != nil {
			return err
		}
		defer cat.Close()

		ctx := context.Background()
		tx := cat.NewTx(catalogue.ReadOnly)
		ctx = hlog.WithTxID(ctx, fmt.Sprintf("%d", tx.ID()))
		ctx = hlog.WithEntity(ctx, entityName)

		ctxTx, err := cat.Tx(ctx, tx, catalogue.SharedLock)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		schema, ok := ctxTx.SchemaForName(catalogue.SchemaName(schemaName))
		if !ok {
			_ = tx.Rollback()
			return fmt.Errorf("unknown schema %q", schemaName)
		}
		schemaTx, err := schema.NewTx(ctx, tx, catalogue.SharedLock)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		entity, ok := schemaTx.EntityForName(catalogue.EntityName(entityName))
		if !ok {
			_ = tx.Rollback()
			return fmt.Errorf("unknown entity %q in schema %q", entityName, schemaName)
		}
		entityTx, err := entity.NewTx(ctx, tx, catalogue.SharedLock)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		binder := planner.NewBinder(entityTx)
		logical, err := binder.Bind(wireQuery)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		pl := planner.NewWithCacheSize(cfg.PlanCacheSize)
		physical, err := pl.PlanAndSelect(ctx, entityTx, logical, false)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		iter, err := exec.Build(ctx, entityTx, physical)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer iter.Close()

		count := 0
		for {
			rec, ok, err := iter.Next(ctx)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			if !ok {
				break
			}
			printRecord(rec)
			count++
		}
		fmt.Printf("%d record(s)\n", count)

		return tx.Commit()
	},
}

func splitFqEntity(ref string) (schema, entity string, ok bool) {
	i := strings.IndexByte(ref, '.')
	if i < 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}
