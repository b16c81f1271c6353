package main

import (
	"database/sql"
	"errors"
	"flag"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	server_config "github.com/carson-networks/ingest-server/internal/config"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/storage"
)

func main() {
	source := flag.String("source", "file://migrations", "migration source url")
	steps := flag.Int("steps", 0, "apply n migrations, negative to roll back; 0 migrates fully up")
	flag.Parse()

	logger := logging.SetupLogging()

	env, err := server_config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("ProcessEnvironmentVariables")
		return
	}

	db, err := sql.Open("postgres", storage.ConnectionString(env))
	if err != nil {
		logger.WithError(err).Fatal("sql.Open")
		return
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.WithError(err).Fatal("postgres.WithInstance")
		return
	}

	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		logger.WithError(err).Fatal("migrate.NewWithDatabaseInstance")
		return
	}

	preMigrationVersion, dirty, err := version(m)
	if err != nil {
		logger.WithError(err).Fatal("m.Version.preMigrationVersion")
		return
	}
	if dirty {
		logger.WithField("version", preMigrationVersion).Fatal("database is dirty; fix it and force the version first")
		return
	}

	if *steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(*steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.WithError(err).Fatal("migrate")
		return
	}

	postMigrationVersion, _, err := version(m)
	if err != nil {
		logger.WithError(err).Fatal("m.Version.postMigrationVersion")
		return
	}

	logger.WithFields(logrus.Fields{
		"preMigrationVersion":  preMigrationVersion,
		"postMigrationVersion": postMigrationVersion,
		"steps":                *steps,
	}).Info("Migration status")
}

// version reports 0 for a database that has never been migrated.
func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
