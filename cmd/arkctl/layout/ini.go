package layout

import (
	"bytes"
	"os"
	"sort"
	"strconv"

	goini "gopkg.in/ini.v1"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

// ParseINI parses GameUserSettings.ini / Game.ini bytes into a Settings
// document, section by section, entry by entry (§6). No escaping rules
// apply on read; values are carried as strings, matching the file's own
// lack of an escape syntax.
func ParseINI(b []byte) (model.Settings, error) {
	file, err := goini.LoadSources(goini.LoadOptions{AllowNonUniqueSections: true, IgnoreInlineComment: true}, b)
	if err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "parse ini")
	}

	settings := make(model.Settings)
	for _, section := range file.Sections() {
		if section.Name() == goini.DefaultSection && len(section.Keys()) == 0 {
			continue
		}
		entries := make(map[string]interface{}, len(section.Keys()))
		for _, key := range section.Keys() {
			entries[key.Name()] = key.Value()
		}
		settings[section.Name()] = entries
	}
	return settings, nil
}

// StringifyINI renders a Settings document back to INI bytes. Sections, and
// the keys within each section, are written in sorted order, so the output
// is byte-stable for a given Settings value and StringifyINI(ParseINI(x))
// reproduces x for any x that StringifyINI produced (§8 property 8).
func StringifyINI(s model.Settings) ([]byte, error) {
	file := goini.Empty()
	sections := make([]string, 0, len(s))
	for section := range s {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		entries := s[section]
		sec, err := file.NewSection(section)
		if err != nil {
			return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "create ini section %q", section)
		}
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := entries[key]
			if _, err := sec.NewKey(key, stringifyValue(value)); err != nil {
				return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "write ini key %q in section %q", key, section)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "render ini")
	}
	return buf.Bytes(), nil
}

func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return ""
	}
}

// ReadConfigFile reads the named config file ("GameUserSettings.ini",
// "Game.ini") from a server's configs directory.
func (m *Manager) ReadConfigFile(clusterName, serverName, file string) ([]byte, error) {
	path := m.ServerConfigsDir(clusterName, serverName) + string(os.PathSeparator) + file
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, arkerrors.Wrap(arkerrors.NotFound, err, "config file %q does not exist for server %q", file, serverName)
		}
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "read config file %q for server %q", file, serverName)
	}
	return b, nil
}

// WriteConfigFile overwrites the named config file in a server's configs
// directory.
func (m *Manager) WriteConfigFile(clusterName, serverName, file string, content []byte) error {
	dir := m.ServerConfigsDir(clusterName, serverName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create configs directory for server %q", serverName)
	}
	path := dir + string(os.PathSeparator) + file
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "write config file %q for server %q", file, serverName)
	}
	return nil
}
