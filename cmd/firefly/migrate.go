package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"firefly/internal/config"
	"firefly/internal/database"
	"firefly/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the datastore schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, v)
		},
	}

	d := config.DefaultConfig()
	flags := cmd.Flags()
	flags.String("datastore-engine", d.Datastore.Engine, "the datastore engine, sqlite or postgres")
	flags.String("datastore-uri", d.Datastore.URI, "the connection uri of the datastore")
	flags.String("log-level", d.Log.Level, "the log level: none, debug, info, warn or error")
	for key, flag := range map[string]string{
		"datastore.engine": "datastore-engine",
		"datastore.uri":    "datastore-uri",
		"log.level":        "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func runMigrate(cmd *cobra.Command, v *viper.Viper) error {
	if err := config.ReadInConfig(v); err != nil {
		return err
	}
	log, err := logger.NewLogger("text", v.GetString("log.level"))
	if err != nil {
		return err
	}

	db, err := database.New(config.DatastoreConfig{
		Engine: v.GetString("datastore.engine"),
		URI:    v.GetString("datastore.uri"),
	}, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	log.Info("datastore migrated", zap.String("engine", v.GetString("datastore.engine")))
	return nil
}
