package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/interchange/internal/config"
	"github.com/clinic/interchange/internal/domain/consultation"
	"github.com/clinic/interchange/internal/domain/interchange"
	"github.com/clinic/interchange/internal/domain/patient"
	"github.com/clinic/interchange/internal/platform/db"
	"github.com/clinic/interchange/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic patient record interchange server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	return rootCmd
}

func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// openClinic connects to DATABASE_URL and pins a connection to the clinic
// schema. The returned func releases the connection and closes the pool.
func openClinic(ctx context.Context, cfg *config.Config, clinicID string) (context.Context, *pgxpool.Pool, func(), error) {
	if err := cfg.RequireDatabase(); err != nil {
		return ctx, nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return ctx, nil, nil, err
	}
	ctx, release, err := db.WithClinic(ctx, pool, clinicID)
	if err != nil {
		pool.Close()
		return ctx, nil, nil, err
	}
	return ctx, pool, func() {
		release()
		pool.Close()
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationsFS returns the embedded migrations, or dir when set.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinic, _ := cmd.Flags().GetString("clinic")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(clinic)
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, migrationsFS(dir)).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("clinic", "default", "Clinic whose schema is migrated")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinic, _ := cmd.Flags().GetString("clinic")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(clinic)
			statuses, err := db.NewMigrator(pool, migrationsFS(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("clinic", "default", "Clinic whose schema is inspected")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Creating clinic schema: %s\n", db.SchemaName(name))
			if err := db.CreateClinicSchema(ctx, pool, name, migrations.FS); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Clinic created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a patient spreadsheet (CSV, TSV or XLSX)",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			file, _ := cmd.Flags().GetString("file")
			clinic, _ := cmd.Flags().GetString("clinic")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			dialectPath, _ := cmd.Flags().GetString("dialect")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, cmd.ErrOrStderr())
			if clinic == "" {
				clinic = cfg.DefaultClinic
			}
			if dialectPath == "" {
				dialectPath = cfg.ImportDialectFile
			}
			dialect, err := interchange.LoadDialect(dialectPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			var (
				patients      interchange.PatientStore
				consultations interchange.ConsultationStore
			)
			if dryRun {
				mem := interchange.NewMemoryStore()
				patients, consultations = mem, mem
			} else {
				var (
					pool    *pgxpool.Pool
					closeFn func()
				)
				ctx, pool, closeFn, err = openClinic(ctx, cfg, clinic)
				if err != nil {
					return err
				}
				defer closeFn()
				patients = patient.NewPatientRepoPG(pool)
				consultations = consultation.NewConsultationRepoPG(pool)
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close()

			importer := interchange.NewImporter(patients, consultations,
				interchange.WithClassifier(interchange.NewClassifier(dialect)),
				interchange.WithLogger(logger),
			)
			res, err := importer.Import(ctx, owner, f, filepath.Base(file), func(done, total int) {
				if done%500 == 0 || done == total {
					logger.Debug().Int("done", done).Int("total", total).Msg("import progress")
				}
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().String("owner", "", "Owner (operator user id) the records belong to")
	cmd.Flags().String("file", "", "Spreadsheet to import")
	cmd.Flags().String("clinic", "", "Clinic schema to import into (defaults to DEFAULT_CLINIC)")
	cmd.Flags().String("dialect", "", "YAML header dialect (defaults to IMPORT_DIALECT_FILE)")
	cmd.Flags().Bool("dry-run", false, "Run the pipeline against an in-memory store")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an owner's patients as a backup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			formatFlag, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			clinic, _ := cmd.Flags().GetString("clinic")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if formatFlag == "" {
				formatFlag = cfg.ExportDefaultFormat
			}
			format, err := interchange.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			if clinic == "" {
				clinic = cfg.DefaultClinic
			}

			ctx, pool, closeFn, err := openClinic(context.Background(), cfg, clinic)
			if err != nil {
				return err
			}
			defer closeFn()

			art, err := interchange.NewExporter(patient.NewPatientRepoPG(pool)).Export(ctx, owner, format)
			if err != nil {
				return err
			}

			path := exportPath(out, art.Filename)
			if err := os.WriteFile(path, art.Data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d patient(s) to %s\n", art.Rows, path)
			return nil
		},
	}
	cmd.Flags().String("owner", "", "Owner (operator user id) whose patients are exported")
	cmd.Flags().String("format", "", "csv, xlsx or parquet (defaults to EXPORT_DEFAULT_FORMAT)")
	cmd.Flags().String("out", "", "Output file or directory (defaults to the current directory)")
	cmd.Flags().String("clinic", "", "Clinic schema to export from (defaults to DEFAULT_CLINIC)")
	return cmd
}

// exportPath resolves --out: empty means the artifact name in the working
// directory, an existing directory receives the artifact name.
func exportPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}
