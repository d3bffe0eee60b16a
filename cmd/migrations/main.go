package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/ballot/internal/config"
	"github.com/vncsmyrnk/ballot/internal/logging"
)

var migrationsDir = filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations")

// Usage: migrations <name|up|down>
//
// "up" applies every *.up.sql in order, "down" reverts every *.down.sql in
// reverse order, anything else runs the single file whose name ends with
// "<name>.sql".
func main() {
	if len(os.Args) < 2 {
		logrus.Fatal("a migration name is required.")
	}
	migrationName := os.Args[1]

	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	files, err := migrationFiles(migrationsDir, migrationName)
	if err != nil {
		log.Fatal(err)
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			log.Fatal(err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatalf("Failed to execute SQL file %s: %v", name, err)
		}
		log.WithField("file", name).Info("Migration file executed successfully.")
	}
}

func migrationFiles(basePath string, migrationName string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, err
	}

	var suffix string
	switch migrationName {
	case "up", "down":
		suffix = `\.` + migrationName + `\.sql$`
	default:
		suffix = regexp.QuoteMeta(migrationName) + `\.sql$`
	}
	regex, err := regexp.Compile(`^.*` + suffix)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	var names []string
	for _, f := range entries {
		if f.IsDir() || !regex.MatchString(f.Name()) {
			continue
		}
		names = append(names, f.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("migration file not found")
	}

	sort.Strings(names)
	if migrationName == "down" {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	} else if migrationName != "up" && len(names) > 1 {
		names = names[:1]
	}
	return names, nil
}
