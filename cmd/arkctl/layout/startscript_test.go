package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

func newManager(t *testing.T) *layout.Manager {
	t.Helper()
	m, err := layout.New(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestGenerateStartScriptDeterministic(t *testing.T) {
	m := newManager(t)
	in := layout.StartScriptInput{
		ClusterName: "C1",
		ServerName:  "C1-Isle",
		Server: model.Server{
			Name:          "C1-Isle",
			Map:           "TheIsland",
			AdminPassword: "adminpw",
			MaxPlayers:    70,
		},
		Cluster: &model.Cluster{
			ClusterSettings: model.ClusterSettings{ClusterId: "C1", ClusterName: "C1"},
		},
		Mods: []model.ModId{"111", "222"},
	}

	first, err := layout.GenerateStartScript(m, in)
	require.NoError(t, err)
	second, err := layout.GenerateStartScript(m, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "ArkAscendedServer.exe")
	assert.Contains(t, string(first), "-mods=111,222")
	assert.NotContains(t, string(first), "ShooterGameServer.exe")
}

func TestGenerateStartScriptNoBattleEyeFlag(t *testing.T) {
	m := newManager(t)
	in := layout.StartScriptInput{
		ClusterName: "C1",
		ServerName:  "C1-Isle",
		Server: model.Server{
			Name:             "C1-Isle",
			Map:              "TheIsland",
			AdminPassword:    "adminpw",
			DisableBattleEye: true,
		},
	}

	out, err := layout.GenerateStartScript(m, in)
	require.NoError(t, err)
	assert.Contains(t, string(out), "-NoBattleEye")
}

func TestGenerateStartScriptRejectsSpaces(t *testing.T) {
	m := newManager(t)
	in := layout.StartScriptInput{
		Server: model.Server{Name: "C1 Isle", Map: "TheIsland"},
	}
	_, err := layout.GenerateStartScript(m, in)
	require.Error(t, err)
}

func TestINIRoundTrip(t *testing.T) {
	settings := model.Settings{
		"ServerSettings": {"MaxPlayers": "70", "ServerAdminPassword": "x"},
		"SessionSettings": {"SessionName": "C1-Isle"},
	}

	b, err := layout.StringifyINI(settings)
	require.NoError(t, err)

	parsed, err := layout.ParseINI(b)
	require.NoError(t, err)

	b2, err := layout.StringifyINI(parsed)
	require.NoError(t, err)

	reparsed, err := layout.ParseINI(b2)
	require.NoError(t, err)
	assert.Equal(t, parsed, reparsed)
}
