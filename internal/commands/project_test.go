package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/config"
	"github.com/dues-dev/dues/internal/store"
	"github.com/dues-dev/dues/internal/telemetry"
)

func execute(args ...string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

// countShutdowns replaces telemetry setup for the test and returns a pointer
// to the number of times the returned shutdown ran.
func countShutdowns(t *testing.T) *int {
	t.Helper()
	calls := 0
	orig := setupTelemetry
	setupTelemetry = func(context.Context, config.TelemetryConfig) (telemetry.Shutdown, error) {
		return func(context.Context) error {
			calls++
			return nil
		}, nil
	}
	t.Cleanup(func() { setupTelemetry = orig })
	return &calls
}

func TestOpenProject_ShutsDownTelemetry(t *testing.T) {
	tests := []struct {
		name     string
		registry string
		wantErr  string
	}{
		{name: "store opens", registry: ""},
		{name: "store fails", registry: "members: [\n", wantErr: "opening store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, execute("init", dir, "--name", "Test Club"))
			if tt.registry != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, store.RegistryFile), []byte(tt.registry), 0o644))
			}

			calls := countShutdowns(t)
			err := execute("-C", dir, "balance")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, *calls)
		})
	}
}
