package main

import (
	"context"
	"fmt"
	"os"

	"checkout/internal/config"
	"checkout/internal/infra/db"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "checkout のDBマイグレーション（goose）",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN（省略時は環境変数から組み立てる）")

	resolve := func() (string, error) {
		if dsn != "" {
			return dsn, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.DSN(), nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "未適用のマイグレーションをすべて流す",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := resolve()
				if err != nil {
					return err
				}
				return db.MigrateUp(cmd.Context(), d)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "1つ戻す",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := resolve()
				if err != nil {
					return err
				}
				return db.MigrateDown(cmd.Context(), d)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "適用状況を表示",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := resolve()
				if err != nil {
					return err
				}
				return db.MigrateStatus(cmd.Context(), d)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "現在のバージョン",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := resolve()
				if err != nil {
					return err
				}
				v, err := db.MigrateVersion(cmd.Context(), d)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
	)

	return root
}
