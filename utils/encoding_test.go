package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"perun.network/icp-wallet-connector/utils"
)

func TestAccountIDOf(t *testing.T) {
	// Account id of the anonymous principal.
	id, err := utils.AccountIDOf("2vxsx-fae")
	require.NoError(t, err)
	require.Equal(t, "1c7a48ba6a562aa9eaa2481a9049cdf0433b9738c992d698c31d8abf89cadc79", id)

	_, err = utils.AccountIDOf("not-a-principal")
	require.Error(t, err)
}
