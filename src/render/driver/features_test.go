package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeaturesMissing(t *testing.T) {
	want := Features{GeometryShader: true, LogicOp: true, DepthClamp: true}
	have := Features{GeometryShader: true, DualSrcBlend: true}
	require.Equal(t, []string{"logicOp", "depthClamp"}, have.Missing(want))
	require.Empty(t, want.Missing(Features{}))
}

func TestChain(t *testing.T) {
	require.Nil(t, LinkChain(nil))

	chain := []Feature{SamplerYcbcrFeatures{Conversion: true}, MultiviewFeatures{Multiview: true}}
	require.Equal(t, []string{
		"VkPhysicalDeviceSamplerYcbcrConversionFeatures",
		"VkPhysicalDeviceMultiviewFeatures",
	}, ChainNames(chain))
	require.NotNil(t, LinkChain(chain))
}

func TestSeverityString(t *testing.T) {
	require.Equal(t, "performance", SeverityPerformance.String())
	require.Equal(t, "unknown", Severity(42).String())
}
