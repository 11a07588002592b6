package compile

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/distbuilder/internal/config"
)

// Transformer applies a source-to-source transformation to one file under a
// named profile. Implementations are opaque to the pipeline; tests inject
// fakes.
type Transformer interface {
	Transform(name string, src []byte, profile config.Profile) ([]byte, error)
}

// esbuildTransformer is the default Transformer backed by esbuild's
// per-file transform API.
type esbuildTransformer struct{}

// NewTransformer returns the default esbuild-backed transformer.
func NewTransformer() Transformer {
	return esbuildTransformer{}
}

func (esbuildTransformer) Transform(name string, src []byte, profile config.Profile) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Sourcefile: name,
		Loader:     api.LoaderJS,
		Format:     formatFor(profile),
		Target:     TargetFor(profile),
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		first := result.Errors[0]
		if first.Location != nil {
			return nil, fmt.Errorf("%s:%d:%d: %s", name, first.Location.Line, first.Location.Column, first.Text)
		}
		return nil, fmt.Errorf("%s: %s", name, first.Text)
	}
	return result.Code, nil
}

func formatFor(profile config.Profile) api.Format {
	switch strings.ToLower(profile.Format) {
	case "commonjs", "cjs":
		return api.FormatCommonJS
	case "esm", "module":
		return api.FormatESModule
	default:
		return api.FormatDefault
	}
}

// TargetFor maps a profile's language baseline onto the engine's target
// enumeration. Unknown values fall back to the newest target.
func TargetFor(profile config.Profile) api.Target {
	switch strings.ToLower(profile.Target) {
	case "es5":
		return api.ES5
	case "es2015", "es6":
		return api.ES2015
	case "es2016":
		return api.ES2016
	case "es2017":
		return api.ES2017
	case "es2018":
		return api.ES2018
	case "es2019":
		return api.ES2019
	case "es2020":
		return api.ES2020
	case "es2021":
		return api.ES2021
	case "es2022":
		return api.ES2022
	default:
		return api.ESNext
	}
}
