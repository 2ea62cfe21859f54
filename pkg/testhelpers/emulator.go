package testhelpers

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// EmulatorImageEnv names the environment variable holding the
// Snowflake-protocol emulator image used by integration tests.
const EmulatorImageEnv = "SNOWFLAKE_EMULATOR_IMAGE"

// emulatorPort is the HTTP port the emulator listens on inside the container.
const emulatorPort = "8080/tcp"

// Emulator holds a shared emulator container.
type Emulator struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

var (
	sharedEmulator     *Emulator
	sharedEmulatorOnce sync.Once
	sharedEmulatorErr  error
)

// GetEmulator returns a shared emulator container for integration tests.
// The container is created once and reused across all tests in the run.
// Tests are skipped in short mode or when SNOWFLAKE_EMULATOR_IMAGE is unset.
func GetEmulator(t *testing.T) *Emulator {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	image := os.Getenv(EmulatorImageEnv)
	if image == "" {
		t.Skipf("Skipping integration test: %s is not set", EmulatorImageEnv)
	}

	sharedEmulatorOnce.Do(func() {
		sharedEmulator, sharedEmulatorErr = setupEmulator(image)
	})

	if sharedEmulatorErr != nil {
		t.Fatalf("Failed to setup emulator: %v", sharedEmulatorErr)
	}

	return sharedEmulator
}

func setupEmulator(image string) (*Emulator, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{emulatorPort},
		WaitingFor: wait.ForListeningPort(emulatorPort).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start emulator container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, emulatorPort)
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &Emulator{
		Container: container,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

// AdapterConfig returns a generic adapter config map pointing at the emulator.
func (e *Emulator) AdapterConfig(database, warehouse string) map[string]any {
	return map[string]any{
		"name":      "emulator",
		"account":   "test_account",
		"username":  "test_user",
		"password":  "test_password",
		"database":  database,
		"warehouse": warehouse,
		"schema":    "PUBLIC",
		"options": map[string]any{
			"protocol": "http",
			"host":     e.Host,
			"port":     e.Port,
		},
	}
}
