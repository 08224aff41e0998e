// ABOUTME: Tests for the skill registry.
// ABOUTME: Covers lookup, listing order, and startup validation failures.

package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	reg, err := NewRegistry("http://gateway.local:8080",
		&Skill{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: "http://echo.local:8081"},
	)
	require.NoError(t, err)

	sk, err := reg.Get("EchoSkillBot")
	require.NoError(t, err)
	assert.Equal(t, "app-echo", sk.AppID)
	assert.Equal(t, "http://echo.local:8081", sk.Endpoint)
}

func TestRegistry_Get_Unknown(t *testing.T) {
	reg, err := NewRegistry("http://gateway.local:8080",
		&Skill{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: "http://echo.local:8081"},
	)
	require.NoError(t, err)

	_, err = reg.Get("NoSuchSkill")
	assert.ErrorIs(t, err, ErrSkillNotFound)
}

func TestRegistry_List_Sorted(t *testing.T) {
	reg, err := NewRegistry("http://gateway.local:8080",
		&Skill{ID: "zeta", AppID: "a", Endpoint: "http://z"},
		&Skill{ID: "alpha", AppID: "b", Endpoint: "http://a"},
	)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "zeta", list[1].ID)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry("http://gateway.local:8080",
		&Skill{ID: "echo", AppID: "a", Endpoint: "http://a"},
		&Skill{ID: "echo", AppID: "b", Endpoint: "http://b"},
	)
	assert.Error(t, err)
}

func TestRegistry_RejectsIncompleteEntries(t *testing.T) {
	_, err := NewRegistry("http://gateway.local:8080",
		&Skill{ID: "echo", Endpoint: "http://a"},
	)
	assert.Error(t, err)
}

func TestRegistry_RequiresHostEndpoint(t *testing.T) {
	_, err := NewRegistry("",
		&Skill{ID: "echo", AppID: "a", Endpoint: "http://a"},
	)
	assert.Error(t, err)
}
