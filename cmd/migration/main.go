package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// target binds one database to its migrations directory. The reference
// and stats schemas migrate independently.
type target struct {
	name   string
	envVar string
	subdir string
}

var targets = []target{
	{name: "ref", envVar: "REF_DB_URL", subdir: "ref"},
	{name: "stats", envVar: "STATS_DB_URL", subdir: "stats"},
}

func main() {
	dbFlag := flag.String("db", "all", "which database to migrate: ref, stats, or all")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	selected, err := selectTargets(*dbFlag)
	if err != nil {
		log.Fatal(err)
	}

	for _, t := range selected {
		if err := runCommand(t, args); err != nil {
			log.Fatalf("%s: %v", t.name, err)
		}
	}
}

func selectTargets(name string) ([]target, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "all" {
		return targets, nil
	}
	for _, t := range targets {
		if t.name == name {
			return []target{t}, nil
		}
	}
	return nil, fmt.Errorf("unknown -db value %q: valid values are ref, stats, all", name)
}

func runCommand(t target, args []string) error {
	dbURL := strings.TrimSpace(os.Getenv(t.envVar))
	if dbURL == "" {
		return fmt.Errorf("%s is required", t.envVar)
	}

	migrationsDir, err := resolveMigrationsDir(t.subdir)
	if err != nil {
		return err
	}

	sourceURL := "file://" + filepath.ToSlash(migrationsDir)
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer closeMigrator(m)

	cmd := strings.ToLower(strings.TrimSpace(args[0]))
	switch cmd {
	case "up":
		if err := checkMigrationErr(m.Up()); err != nil {
			return err
		}
		log.Printf("%s: migrations applied (source=%s)", t.name, sourceURL)
	case "down":
		steps, err := parseSteps(args[1:])
		if err != nil {
			return err
		}
		if err := checkMigrationErr(m.Steps(-steps)); err != nil {
			return err
		}
		log.Printf("%s: rolled back %d migration(s)", t.name, steps)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Printf("%s version: none\n%s dirty: false\n", t.name, t.name)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Printf("%s version: %d\n%s dirty: %t\n", t.name, version, t.name, dirty)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version argument")
		}
		version, err := parseVersion(args[1])
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		log.Printf("%s: forced version to %d", t.name, version)
	case "goto", "migrate":
		if len(args) < 2 {
			return fmt.Errorf("goto requires a target version argument")
		}
		version, err := parseTarget(args[1])
		if err != nil {
			return err
		}
		if err := checkMigrationErr(m.Migrate(version)); err != nil {
			return err
		}
		log.Printf("%s: migrated to version %d", t.name, version)
	default:
		printUsage()
		os.Exit(2)
	}

	return nil
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}

	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0")
	}

	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("version must be >= 0")
	}

	return int(value), nil
}

func parseTarget(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(value), nil
}

func checkMigrationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("no migration changes")
		return nil
	}
	return err
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		log.Printf("close migration source: %v", srcErr)
	}
	if dbErr != nil {
		log.Printf("close migration db: %v", dbErr)
	}
}

func resolveMigrationsDir(subdir string) (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		"./db/migrations",
		"/app/db/migrations",
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(candidate, subdir))
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		return abs, nil
	}

	return "", fmt.Errorf("migration directory for %q not found (checked MIGRATIONS_DIR, ./db/migrations, /app/db/migrations)", subdir)
}

func printUsage() {
	base := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s [-db ref|stats|all] <up|down|version|force|goto> [args]\n", base)
	fmt.Fprintln(os.Stderr, "examples:")
	fmt.Fprintf(os.Stderr, "  %s up\n", base)
	fmt.Fprintf(os.Stderr, "  %s -db stats down 1\n", base)
	fmt.Fprintf(os.Stderr, "  %s -db ref version\n", base)
	fmt.Fprintf(os.Stderr, "  %s -db stats force 3\n", base)
	fmt.Fprintf(os.Stderr, "  %s goto 2\n", base)
}
