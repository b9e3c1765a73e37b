package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/natexcvi/go-llm-eval/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModels(t *testing.T) {
	cfg = &config.Config{Models: []config.ModelConfig{{Name: "gpt-4o"}, {Name: "QWEN25_32B"}}}
	testCases := []struct {
		name     string
		given    []string
		expected []string
	}{
		{
			name:     "Defaults to every configured model",
			expected: []string{"gpt-4o", "QWEN25_32B"},
		},
		{
			name:     "Repeated names are dropped",
			given:    []string{"QWEN25_32B", "gpt-4o", "QWEN25_32B"},
			expected: []string{"QWEN25_32B", "gpt-4o"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, selectModels(tc.given))
		})
	}
}

func TestEvalCmd_ValidatesFlagOverrides(t *testing.T) {
	testCases := []struct {
		name          string
		configured    string
		flagValue     string
		expectedError string
	}{
		{
			name:          "Flag breaks a valid config",
			configured:    "0.85",
			flagValue:     "1.5",
			expectedError: "iupac_threshold",
		},
		{
			name:       "Flag fixes an invalid config",
			configured: "1.5",
			flagValue:  "0.9",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "chemeval.yaml")
			content := "evaluation:\n  iupac_threshold: " + tc.configured + "\n"
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			rootCmd.SetArgs([]string{
				"eval", "m",
				"--config", path,
				"--input-dir", dir,
				"--output-dir", filepath.Join(dir, "eval"),
				"--iupac-threshold", tc.flagValue,
			})
			err := rootCmd.Execute()
			if tc.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0.9, cfg.Evaluation.IUPACThreshold)
		})
	}
}
