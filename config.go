package loom

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads path, parses it according to its extension
// (.json/.toml/.yaml/.yml/.ini), and decodes the result onto dst via
// mapstructure, matching each field's `mapstructure` tag. Grounded on the
// teacher's air.go Serve() config block, extended to .ini since
// gopkg.in/ini.v1 is in the teacher's ecosystem neighborhood but has no
// other home in this module.
func LoadConfig(path string, dst interface{}) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return NewError(KindInternal, "loom: reading config file failed", err)
	}

	m := map[string]interface{}{}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	case ".ini":
		m, err = loadINI(b)
	default:
		return NewError(KindBadRequest, "loom: unsupported configuration file extension: "+ext, nil)
	}
	if err != nil {
		return NewError(KindParseError, "loom: parsing config file failed", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToAddressHookFunc,
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return NewError(KindInternal, "loom: building config decoder failed", err)
	}
	if err := decoder.Decode(m); err != nil {
		return NewError(KindParseError, "loom: decoding config file failed", err)
	}
	return nil
}

// stringToAddressHookFunc lets a config file list server addresses as
// plain strings (a config file has no way to express a *tls.Config) while
// Server.Addresses is typed as []Address.
func stringToAddressHookFunc(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(Address{}) {
		return data, nil
	}
	return Address{Addr: data.(string)}, nil
}

// loadINI flattens an INI file into a map[string]interface{}, with
// section names becoming nested maps (the default section's keys land at
// the top level) so the same mapstructure.Decode call used for the other
// three formats also handles .ini.
func loadINI(b []byte) (map[string]interface{}, error) {
	f, err := ini.Load(b)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{}
	for _, sec := range f.Sections() {
		kv := map[string]interface{}{}
		for _, key := range sec.Keys() {
			kv[key.Name()] = key.Value()
		}
		if sec.Name() == ini.DefaultSection {
			for k, v := range kv {
				out[k] = v
			}
			continue
		}
		out[sec.Name()] = kv
	}
	return out, nil
}
