package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_DefaultFlagValues(t *testing.T) {
	cmd := newRootCmd()

	busFlag, err := cmd.Flags().GetString("bus")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", busFlag)

	configFlag, err := cmd.Flags().GetString("config")
	require.NoError(t, err)
	assert.Equal(t, "", configFlag)

	eventProcessorFlag, err := cmd.Flags().GetString("event-processor")
	require.NoError(t, err)
	assert.Equal(t, "", eventProcessorFlag)
}

func TestNewRootCmd_FlagsBindToPackageVars(t *testing.T) {
	cmd := newRootCmd()

	require.NoError(t, cmd.Flags().Set("bus", "10.0.0.1:6379"))
	assert.Equal(t, "10.0.0.1:6379", flagBusAddr)

	require.NoError(t, cmd.Flags().Set("config", "/etc/iftesterd/config.yaml"))
	assert.Equal(t, "/etc/iftesterd/config.yaml", flagConfigPath)

	require.NoError(t, cmd.Flags().Set("event-processor", "/usr/local/bin/notify"))
	assert.Equal(t, "/usr/local/bin/notify", flagEventProcessor)
}
