package main

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	var c cli
	parser, err := kong.New(&c, kong.Name("recommend"), kong.Writers(&out, &out), kong.Exit(func(int) {}))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	if err != nil {
		return out.String(), err
	}
	err = ctx.Run()
	return out.String(), err
}

func TestCold(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"defaults", []string{"cold"}, "88.0 psi"},
		{"loose surface", []string{"cold", "--surface", "ripio"}, "79.2 psi"},
		{"clamped", []string{"cold", "--load", "12000"}, "120.0 psi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCold_InvalidConditions(t *testing.T) {
	_, err := runCLI(t, "cold", "--load=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid conditions")
}

func TestTrip(t *testing.T) {
	out, err := runCLI(t, "trip",
		"--plate", "abc123", "--config", "6x4", "--distance", "100",
		"--tractor-loads", "6000,6000,6000", "--tractor-psi", "110,105,90")
	require.NoError(t, err)

	assert.Contains(t, out, "patente: ABC123")
	assert.Contains(t, out, "direccional")
	assert.Contains(t, out, "brecha:")
	assert.NotContains(t, out, "sobrepeso")
}

func TestTrip_AxleMismatch(t *testing.T) {
	_, err := runCLI(t, "trip", "--plate", "abc123", "--config", "6x4", "--distance", "100",
		"--tractor-loads", "6000,6000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axle count mismatch")
}

func TestConfigs(t *testing.T) {
	out, err := runCLI(t, "configs")
	require.NoError(t, err)
	assert.Contains(t, out, "6x4")
	assert.Contains(t, out, "10x8")
}
