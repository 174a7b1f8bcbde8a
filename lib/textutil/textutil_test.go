package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "csen401", NormalizeName("  CSEN 401\n"))
	require.Equal(t, "computerprogramminglab", NormalizeName("Computer  Programming\tLab"))
}

func TestMatchCourse(t *testing.T) {
	table := []struct {
		filter   string
		expected bool
	}{
		{filter: "CSEN 401", expected: true},
		{filter: "csen401", expected: true},
		{filter: "Computer Programming Lab", expected: true},
		{filter: "computer programing lab", expected: true},
		{filter: "Digital Logic Design", expected: false},
		{filter: "CSEN 402", expected: false},
		{filter: "  ", expected: false},
	}

	for _, row := range table {
		require.Equal(
			t, row.expected,
			MatchCourse("CSEN 401", "Computer Programming Lab", row.filter),
			"filter %q", row.filter,
		)
	}
}
