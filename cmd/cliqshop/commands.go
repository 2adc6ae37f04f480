package main

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cliqshop/shop/internal/bootstrap"
	"github.com/cliqshop/shop/internal/config"
	"github.com/cliqshop/shop/internal/migrations"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/repository/sqlite"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/hash"
)

func init() {
	// Migrate
	var migrateStatus bool
	var migrateRollback bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, inspect or roll back database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Using DB path: %s\n", cfg.DB.Path)
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), db, migrateStatus, migrateRollback)
		},
	}
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show migration status")
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "Rollback the last migration")
	rootCmd.AddCommand(migrateCmd)

	// Backup
	var backupOutput string
	var backupCompress bool
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			target, err := runBackup(cmd.Context(), db, backupOutput, backupCompress, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created at %s\n", target)
			return nil
		},
	}
	backupCmd.Flags().StringVar(&backupOutput, "output", "", "Output file path")
	backupCmd.Flags().BoolVar(&backupCompress, "compress", false, "Compress output with gzip")
	rootCmd.AddCommand(backupCmd)

	// Restore
	restoreCmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore database from backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runRestore(cmd.OutOrStdout(), args[0], cfg.DB.Path, time.Now())
		},
	}
	rootCmd.AddCommand(restoreCmd)

	// User
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management",
	}
	var listLimit int
	userListCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return runUserList(cmd.Context(), cmd.OutOrStdout(), sqlite.NewStore(db).Users(), listLimit)
		},
	}
	userListCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum users to print")
	userCmd.AddCommand(userListCmd)

	var createUsername, createEmail, createPassword, createName string
	var createAdmin bool
	userCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if createUsername == "" || createEmail == "" || createPassword == "" {
				return fmt.Errorf("username, email and password are required")
			}
			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			hasher, err := hash.NewBcryptHasher(cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			store := sqlite.NewStore(db)
			users := service.NewAdminUserService(store.Users(), store.Tokens(), hasher, nil)
			role := repository.RoleUser
			if createAdmin {
				role = repository.RoleAdmin
			}
			user, err := users.Create(cmd.Context(), service.AdminUserCreateInput{
				Username: createUsername,
				Name:     createName,
				Email:    createEmail,
				Password: createPassword,
				Role:     role,
			})
			if err != nil {
				return fmt.Errorf("create user failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s (#%d, %s) created.\n", user.Username, user.ID, user.Role)
			return nil
		},
	}
	userCreateCmd.Flags().StringVar(&createUsername, "username", "", "Login name")
	userCreateCmd.Flags().StringVar(&createEmail, "email", "", "User email")
	userCreateCmd.Flags().StringVar(&createPassword, "password", "", "User password")
	userCreateCmd.Flags().StringVar(&createName, "name", "", "Display name")
	userCreateCmd.Flags().BoolVar(&createAdmin, "admin", false, "Grant the ADMIN role")
	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)

	// Version
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CliQShop %s\n", Version)
			fmt.Fprintf(out, "Commit: %s\n", Commit)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

// openDB loads config and opens the configured SQLite file. Callers close the handle.
func openDB() (*sql.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

func runMigrate(ctx context.Context, out io.Writer, db *sql.DB, status, rollback bool) error {
	switch {
	case status:
		statuses, err := migrations.List(ctx, db)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Version\tApplied\tApplied At\tFile")
		for _, st := range statuses {
			fmt.Fprintf(w, "%d\t%v\t%s\t%s\n", st.Version, st.Applied, st.AppliedAt, st.Path)
		}
		return w.Flush()
	case rollback:
		version, err := migrations.Down(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Rolled back migration %d\n", version)
		return nil
	default:
		applied, err := migrations.Up(ctx, db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(out, "Database is up to date.")
			return nil
		}
		fmt.Fprintf(out, "Applied migrations: %v\n", applied)
		return nil
	}
}

// runBackup writes a consistent copy with VACUUM INTO, gzip-compressing it when asked.
func runBackup(ctx context.Context, db *sql.DB, output string, compress bool, now time.Time) (string, error) {
	target := output
	if target == "" {
		backupDir := "data/backups"
		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return "", fmt.Errorf("create backup dir: %w", err)
		}
		ext := ".db"
		if compress {
			ext += ".gz"
		}
		target = filepath.Join(backupDir, fmt.Sprintf("cliqshop_%s%s", now.Format("20060102_150405"), ext))
	}

	tempFile := target
	if compress {
		if strings.HasSuffix(target, ".gz") {
			tempFile = strings.TrimSuffix(target, ".gz")
		} else {
			tempFile = target + ".tmp"
		}
	}

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", tempFile); err != nil {
		return "", fmt.Errorf("sqlite vacuum into: %w", err)
	}

	if compress {
		defer os.Remove(tempFile)
		if err := compressFile(tempFile, target); err != nil {
			return "", err
		}
	}
	return target, nil
}

func runRestore(out io.Writer, backupPath, dbPath string, now time.Time) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}

	if _, err := os.Stat(dbPath); err == nil {
		bakPath := dbPath + ".pre_restore_" + now.Format("20060102_150405")
		if err := copyFile(dbPath, bakPath); err != nil {
			return fmt.Errorf("failed to backup current db: %w", err)
		}
		fmt.Fprintf(out, "Current database backed up to %s\n", bakPath)
	}

	sourceFile := backupPath
	if strings.HasSuffix(backupPath, ".gz") {
		tempSource := dbPath + ".restoring"
		if err := decompressFile(backupPath, tempSource); err != nil {
			return fmt.Errorf("decompress failed: %w", err)
		}
		sourceFile = tempSource
		defer os.Remove(tempSource)
	}

	if err := copyFile(sourceFile, dbPath); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	// Stale WAL files would replay on top of the restored copy.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}

	fmt.Fprintln(out, "Database restored successfully.")
	return nil
}

func runUserList(ctx context.Context, out io.Writer, users repository.UserRepository, limit int) error {
	list, err := users.Search(ctx, repository.UserSearchFilter{Limit: limit})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tUsername\tEmail\tRole\tEnabled")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\n", u.ID, u.Username, u.Email, u.Role, u.Enabled)
	}
	return w.Flush()
}

// File utils
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		return err
	}
	return gw.Close()
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	gr, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, gr); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
