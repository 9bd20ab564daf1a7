package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

const (
	// TestCollection holds every record written by a test-mode store.
	TestCollection = "test_mem"
	// ProductionCollection holds the companion's real memories.
	ProductionCollection = "closer_mem"

	containerRoot = "/app"
	locationName  = "closer_memory_db"
	testLocation  = "test_memory_db"
)

// Identity is the environment a store is bound to. It is fixed once the
// store is constructed.
type Identity struct {
	IsTest     bool
	Collection string
	Location   string
	// Degraded is set when the preferred location could not be used and the
	// store fell back to a volatile temp directory.
	Degraded bool

	// ephemeral is the temp root created for this identity, removed on Close.
	ephemeral string
}

// Signals are the ambient hints consulted when no explicit test mode is set.
type Signals struct {
	TestEnv   bool
	Harness   bool
	Container bool
}

// DetectSignals reads the ambient hints from the process environment.
func DetectSignals() Signals {
	signals := Signals{
		TestEnv: strings.EqualFold(os.Getenv("TEST_ENV"), "true"),
		Harness: testing.Testing() || strings.HasSuffix(filepath.Base(os.Args[0]), ".test"),
	}

	if strings.EqualFold(os.Getenv("DOCKER_ENV"), "true") {
		signals.Container = true
	} else if fi, err := os.Stat(containerRoot); err == nil && fi.IsDir() {
		signals.Container = true
	}

	return signals
}

// IsTest reports whether the hints call for a test identity. The container
// marker only influences where production data lives.
func (s Signals) IsTest() bool {
	return s.TestEnv || s.Harness
}

// ResolveIdentity decides between the test and production environments and
// provisions the storage location. It never fails: when the location cannot
// be created the identity is degraded onto a fresh temp directory.
func ResolveIdentity(opts Options, logger *log.Logger) Identity {
	signals := DetectSignals()
	if opts.Signals != nil {
		signals = *opts.Signals
	}

	isTest := signals.IsTest()
	if opts.TestMode != nil {
		isTest = *opts.TestMode
	}

	if isTest {
		identity, err := testIdentity()
		if err != nil {
			logger.Warn("could not provision test location", "error", err)
			return degradedIdentity(true, logger)
		}

		return identity
	}

	location := productionLocation(opts.DataDir, signals)

	if err := os.MkdirAll(location, 0o755); err != nil {
		logger.Warn("could not provision production location", "location", location, "error", err)
		return degradedIdentity(false, logger)
	}

	return Identity{
		Collection: ProductionCollection,
		Location:   location,
	}
}

func productionLocation(dataDir string, signals Signals) string {
	if dataDir != "" {
		if abs, err := filepath.Abs(dataDir); err == nil {
			return abs
		}

		return filepath.Clean(dataDir)
	}

	if signals.Container {
		return filepath.Join(containerRoot, locationName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	return filepath.Join(home, ".closer", locationName)
}

func testIdentity() (Identity, error) {
	root, err := os.MkdirTemp("", "closer-test-*")
	if err != nil {
		return Identity{}, fmt.Errorf("create test root: %w", err)
	}

	location := filepath.Join(root, testLocation)

	if err := os.MkdirAll(location, 0o755); err != nil {
		os.RemoveAll(root)
		return Identity{}, fmt.Errorf("create test location: %w", err)
	}

	return Identity{
		IsTest:     true,
		Collection: TestCollection,
		Location:   location,
		ephemeral:  root,
	}, nil
}

// degradedIdentity is the last resort: a volatile directory the process can
// always write to. If even that fails the location is left empty and the
// engine runs in memory.
func degradedIdentity(isTest bool, logger *log.Logger) Identity {
	identity := Identity{
		IsTest:     isTest,
		Collection: ProductionCollection,
		Degraded:   true,
	}

	if isTest {
		identity.Collection = TestCollection
	}

	root, err := os.MkdirTemp("", "closer-fallback-*")
	if err != nil {
		logger.Error("no writable location, memories will not survive restart", "error", err)
		return identity
	}

	identity.Location = root
	identity.ephemeral = root

	logger.Warn("using volatile storage location", "location", root, "test", isTest)

	return identity
}

// release removes the temp root created for a test or degraded identity.
func (identity Identity) release() error {
	if identity.ephemeral == "" {
		return nil
	}

	return os.RemoveAll(identity.ephemeral)
}
