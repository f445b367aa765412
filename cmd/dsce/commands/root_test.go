package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

func TestExitCodeForMapsErrorClassesToSpecExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"cancelled", context.Canceled, 5},
		{"usage", usage("bad flag"), 1},
		{"unclassified", errors.New("boom"), 1},
		{"parse", dscerr.Parse("bad expression", nil), 3},
		{"validation", dscerr.Validation("bad schema", nil), 3},
		{"function", dscerr.Function("unknown function", nil), 3},
		{"resource not found", dscerr.Resource("manifest not found", nil), 2},
		{"resource nonzero exit", dscerr.Resource("bad exit", nil).WithCode(dscerr.CodeNonZeroExit), 4},
		{"io", dscerr.IO("file too large", nil), 2},
		{"internal", dscerr.Internal("invariant violated", nil), 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}
