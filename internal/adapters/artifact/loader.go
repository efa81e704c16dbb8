// Package artifact loads predictor artifacts from disk.
//
// An artifact is a JSON or YAML document decoded into regression.Spec. The
// format follows the file extension: .yaml/.yml are YAML, everything else
// is parsed as JSON.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/okian/battpredict/internal/domain/regression"
)

// Info describes a loaded artifact.
type Info struct {
	Path      string          `json:"path"`
	Kind      regression.Kind `json:"kind"`
	Features  []string        `json:"features"`
	Target    string          `json:"target,omitempty"`
	Version   int             `json:"version,omitempty"`
	Trees     int             `json:"trees,omitempty"`
	SHA256    string          `json:"sha256"`
	SizeBytes int64           `json:"size_bytes"`
	LoadedAt  time.Time       `json:"loaded_at"`
}

// Loaded is a ready predictor plus its provenance.
type Loaded struct {
	Predictor regression.Predictor
	Info      Info
}

// Load reads, decodes and validates the artifact at path. A missing file
// wraps ErrNotFound; anything else that prevents a usable predictor wraps
// ErrCorrupt. Both name the path.
func Load(ctx context.Context, path string) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	case st.IsDir():
		return nil, fmt.Errorf("%w: %s: is a directory", ErrCorrupt, path)
	}

	raw, err := file.Provider(path).ReadBytes()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	spec, err := decode(raw, parserFor(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	p, err := regression.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	sum := sha256.Sum256(raw)
	return &Loaded{
		Predictor: p,
		Info: Info{
			Path:      path,
			Kind:      p.Kind(),
			Features:  p.Features(),
			Target:    spec.Target,
			Version:   spec.Version,
			Trees:     spec.TreeCount(),
			SHA256:    hex.EncodeToString(sum[:]),
			SizeBytes: int64(len(raw)),
			LoadedAt:  time.Now().UTC(),
		},
	}, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return json.Parser()
	}
}

// decode is strict: no weak typing, no unknown keys, and integer fields
// only take integral numbers.
func decode(raw []byte, parser koanf.Parser) (regression.Spec, error) {
	var spec regression.Spec

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), parser); err != nil {
		return spec, fmt.Errorf("parse: %w", err)
	}
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.DecodeHookFuncType(integralHook),
			WeaklyTypedInput: false,
			ErrorUnused:      true,
		},
	}
	if err := k.UnmarshalWithConf("", &spec, conf); err != nil {
		return spec, fmt.Errorf("decode: %w", err)
	}
	return spec, nil
}

var intKinds = map[reflect.Kind]bool{
	reflect.Int: true, reflect.Int8: true, reflect.Int16: true, reflect.Int32: true, reflect.Int64: true,
}

func integralHook(from, to reflect.Type, data any) (any, error) {
	if !intKinds[to.Kind()] {
		return data, nil
	}
	var f float64
	switch from.Kind() {
	case reflect.Float64:
		f = data.(float64)
	case reflect.Float32:
		f = float64(data.(float32))
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("expected an integer, got %v", f)
	}
	return data, nil
}
