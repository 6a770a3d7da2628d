package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/subwatch/internal/logger"
)

// Migration is a single versioned SQL file from the migrations directory.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row from the schema_migrations table.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationFilePattern matches versioned migration files: 0001_name.sql
var migrationFilePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

var (
	projectID     = flag.String("project", "", "GCP project ID (required)")
	datasetID     = flag.String("dataset", "subwatch", "BigQuery dataset ID")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
)

func main() {
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required")
	}

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	migrations, err := readMigrations()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := getAppliedMigrations(ctx, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	appliedVersions := make(map[int]bool)
	for _, am := range applied {
		appliedVersions[am.Version] = true
	}

	appliedCount := 0
	for _, migration := range migrations {
		if appliedVersions[migration.Version] {
			log.Info().Str("migration", migration.Filename).Msg("Skipping (already applied)")
			continue
		}

		log.Info().Str("migration", migration.Filename).Msg("Applying")

		if err := runStatement(ctx, client, migration.SQL, nil); err != nil {
			log.Fatal().Err(err).Str("migration", migration.Filename).Msg("Migration failed")
		}
		if err := recordMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Str("migration", migration.Filename).Msg("Failed to record migration")
		}

		appliedCount++
	}

	if appliedCount == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", appliedCount).Msg("Migrations applied")
	}
}

// parseMigrationFilename splits a migration filename into version and name.
// Returns ok=false for files that do not follow the 0001_name.sql convention.
func parseMigrationFilename(filename string) (version int, name string, ok bool) {
	matches := migrationFilePattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, *projectID, *datasetID)
	return runStatement(ctx, client, sql, nil)
}

// readMigrations reads all migration files from the migrations directory.
func readMigrations() ([]Migration, error) {
	dir := *migrationsDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from parent directory (in case we're in cmd/migrate)
		dir = "../../" + *migrationsDir
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", *migrationsDir)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", *projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", *datasetID)

		// Checksum the original content so re-targeting project/dataset is not
		// detected as a change.
		checksum := fmt.Sprintf("%x", sha256.Sum256(content))

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, *projectID, *datasetID)

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		// Fresh dataset: no schema_migrations table yet.
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		am := AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}
		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}
		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}
		applied = append(applied, am)
	}

	return applied, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, *projectID, *datasetID)

	params := []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	}
	return runStatement(ctx, client, sql, params)
}

func runStatement(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	query := client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
