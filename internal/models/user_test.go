package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	user := &User{Username: "cook"}
	require.NoError(t, user.SetPassword("kitchen-sink"))
	require.NotEqual(t, "kitchen-sink", user.Password)

	require.True(t, user.CheckPassword("kitchen-sink"))
	require.False(t, user.CheckPassword("wrong"))
}
