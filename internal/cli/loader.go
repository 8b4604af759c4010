package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/karst-db/karst/internal/query"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeNotFound   = "E002" // Path not found or unreadable
	ErrCodeBadFormat  = "E003" // Unsupported file extension
	ErrCodeDecode     = "E004" // File did not decode to a query envelope
	ErrCodeCompileSQL = "E005" // SQL lowering failed
)

// LoadError is an error that occurred while loading a query file, before
// validation ever ran. It is the command-error category (exit code 2),
// distinct from a query that loaded fine and failed validation (exit code 1).
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadQuery reads a query envelope from a file. The extension selects the
// decoder: .json uses the wire format directly, .yaml/.yml converts through
// YAML, .cue evaluates the file and exports its JSON value. With legacy set,
// .json files decode through the deprecated filters/top/skip shape instead.
func LoadQuery(path string, legacy bool) (*query.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	switch filepath.Ext(path) {
	case ".json":
		if legacy {
			env, err := query.FromLegacy(data)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeDecode, Message: err.Error()}
			}
			return env, nil
		}
		return decodeWire(data)

	case ".yaml", ".yml":
		jsonData, err := yamlToJSON(data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err)}
		}
		return decodeWire(jsonData)

	case ".cue":
		jsonData, err := cueToJSON(data, path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDecode, Message: err.Error()}
		}
		return decodeWire(jsonData)

	default:
		return nil, &LoadError{
			Code:    ErrCodeBadFormat,
			Message: fmt.Sprintf("unsupported query file extension %q (want .json, .yaml, .yml, or .cue)", filepath.Ext(path)),
		}
	}
}

func decodeWire(data []byte) (*query.Envelope, error) {
	var env query.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: err.Error()}
	}
	return &env, nil
}

// yamlToJSON converts a YAML document to JSON bytes so both formats share
// one wire decoder.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// cueToJSON evaluates a CUE file and exports the resulting value as JSON.
// CUE gives query authors constraints and interpolation on top of the plain
// wire shape; by the time it reaches the decoder it is ordinary JSON.
func cueToJSON(data []byte, path string) ([]byte, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %v", path, err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s is not concrete: %v", path, err)
	}
	out, err := value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %v", path, err)
	}
	return out, nil
}
