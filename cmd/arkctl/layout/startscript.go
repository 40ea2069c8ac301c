package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

// targetExecutable is the only binary name the generator ever emits. A
// legacy build of this script referenced ShooterGameServer.exe; that name
// is never correct and any start.bat observed with it must be regenerated
// (§9 "legacy executable name" open question).
const targetExecutable = "ArkAscendedServer.exe"

// lockSentinelName is the advisory marker file, in the SteamCMD directory,
// that the generated script checks before launching: while the file exists
// the script waits and checks again every 30 seconds. No code in this
// module creates or removes the file; the in-process jobs.UpdateLock does
// not touch it.
const lockSentinelName = ".update.lock"

// multiplierKeys are the ServerSettings entries folded into the compound
// launch argument's <multipliers> segment, in the fixed order listed here
// so StartScript output stays deterministic regardless of Settings map
// iteration order.
var multiplierKeys = []string{
	"XPMultiplier",
	"TamingSpeedMultiplier",
	"HarvestAmountMultiplier",
}

// StartScriptInput bundles everything the generator needs to produce one
// server's start.bat, fully resolved (no further I/O performed here).
type StartScriptInput struct {
	ClusterName string
	ServerName  string
	Server      model.Server
	Cluster     *model.Cluster
	Mods        []model.ModId
}

// GenerateStartScript renders the deterministic start.bat contents for the
// server described by in. Given the same input, GenerateStartScript always
// returns byte-identical output (§8 property 3); it performs no I/O itself.
func GenerateStartScript(m *Manager, in StartScriptInput) ([]byte, error) {
	if err := checkNoSpaces(in); err != nil {
		return nil, err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "@echo off\r\n")
	fmt.Fprintf(&b, "cd /d \"%s\"\r\n", m.ServerBinWin64Dir(in.ClusterName, in.ServerName))
	fmt.Fprintf(&b, "\r\n")
	fmt.Fprintf(&b, ":waitlock\r\n")
	fmt.Fprintf(&b, "if exist \"%s\" (\r\n", lockSentinelPath(m))
	fmt.Fprintf(&b, "  timeout /t 30 /nobreak >nul\r\n")
	fmt.Fprintf(&b, "  goto waitlock\r\n")
	fmt.Fprintf(&b, ")\r\n")
	fmt.Fprintf(&b, "\r\n")

	compound := buildCompoundArgument(in)
	flags := buildFlags(in)

	fmt.Fprintf(&b, "start \"\" %s %s %s\r\n", targetExecutable, compound, strings.Join(flags, " "))

	return []byte(b.String()), nil
}

func lockSentinelPath(m *Manager) string {
	return m.SteamCmdDir() + "/" + lockSentinelName
}

func buildCompoundArgument(in StartScriptInput) string {
	s := in.Server

	parts := []string{
		string(s.Map),
		"listen",
		"SessionName=" + s.Name,
	}
	if s.ServerPassword != "" {
		parts = append(parts, "ServerPassword="+s.ServerPassword)
	}
	parts = append(parts,
		"ServerAdminPassword="+s.AdminPassword,
		"MaxPlayers="+strconv.Itoa(s.MaxPlayers),
	)
	parts = append(parts, multiplierSegments(s)...)

	if in.Cluster != nil {
		cs := in.Cluster.ClusterSettings
		parts = append(parts,
			"ClusterId="+cs.ClusterId,
			"ClusterName="+cs.ClusterName,
		)
		if cs.ClusterPassword != "" {
			parts = append(parts, "ClusterPassword="+cs.ClusterPassword)
		}
	}
	parts = append(parts, "AltSaveDirectoryName="+s.Name)

	return strings.Join(parts, "?")
}

func multiplierSegments(s model.Server) []string {
	section, ok := s.GameUserSettings["ServerSettings"]
	if !ok {
		return nil
	}
	var segs []string
	for _, key := range multiplierKeys {
		val, ok := section[key]
		if !ok {
			continue
		}
		segs = append(segs, fmt.Sprintf("%s=%v", key, val))
	}
	return segs
}

func buildFlags(in StartScriptInput) []string {
	flags := []string{"-server", "-log"}
	if in.Server.DisableBattleEye {
		flags = append(flags, "-NoBattleEye")
	}
	if len(in.Mods) > 0 {
		strs := make([]string, len(in.Mods))
		for i, id := range in.Mods {
			strs[i] = string(id)
		}
		flags = append(flags, "-mods="+strings.Join(strs, ","))
	}
	// Sorted so any future optional flag appended above keeps the script
	// byte-identical across runs regardless of append order.
	sort.Strings(flags[2:])
	return flags
}

func checkNoSpaces(in StartScriptInput) error {
	check := func(field, value string) error {
		if strings.ContainsAny(value, " \t") {
			return arkerrors.New(arkerrors.ValidationFailed, "%s contains a space, which the ASA launch argument syntax cannot escape", field)
		}
		return nil
	}
	if err := check("name", in.Server.Name); err != nil {
		return err
	}
	if err := check("serverPassword", in.Server.ServerPassword); err != nil {
		return err
	}
	if err := check("adminPassword", in.Server.AdminPassword); err != nil {
		return err
	}
	if in.Cluster != nil {
		if err := check("clusterSettings.clusterPassword", in.Cluster.ClusterSettings.ClusterPassword); err != nil {
			return err
		}
	}
	return nil
}
