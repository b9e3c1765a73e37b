package extract_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	enginemocks "github.com/natexcvi/go-llm-eval/engines/mocks"
	"github.com/natexcvi/go-llm-eval/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairer_Repair(t *testing.T) {
	testCases := []struct {
		name           string
		raw            string
		expectedOutput string
	}{
		{
			name:           "Valid JSON untouched",
			raw:            `{"results":[]}`,
			expectedOutput: `{"results":[]}`,
		},
		{
			name: "Truncated object repaired locally",
			raw:  `{"results": [{"compound_id": "Compound 1"}`,
		},
		{
			name: "Trailing comma repaired locally",
			raw:  `{"results": [1, 2,]}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engineMock := enginemocks.NewMockLLM(ctrl)
			engineMock.EXPECT().Chat(gomock.Any(), gomock.Any()).Times(0)

			repaired, err := extract.NewRepairer(engineMock, 1).Repair(context.Background(), tc.raw)
			require.NoError(t, err)
			if tc.expectedOutput != "" {
				assert.Equal(t, tc.expectedOutput, repaired)
			}
			_, err = extract.Object(repaired)
			assert.NoError(t, err)
		})
	}
}

func TestRepairer_NoEngine(t *testing.T) {
	repaired, err := extract.NewRepairer(nil, 3).Repair(context.Background(), `{"a": 1`)
	require.NoError(t, err)
	obj, err := extract.Object(repaired)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
}
