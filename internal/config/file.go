package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/fs"
)

// FileConfig is the raw content of vchain.yaml. Pointer fields distinguish
// "absent" from the zero value.
type FileConfig struct {
	Order      []string          `yaml:"order"`
	StopOnFail *bool             `yaml:"stop_on_fail"`
	AllowEmpty *bool             `yaml:"allow_empty"`
	Timeouts   map[string]string `yaml:"timeouts"`
	Tools      []FileTool        `yaml:"tools"`
}

// FileTool is one entry of the tools list.
type FileTool struct {
	Layer   string   `yaml:"layer"`
	Tech    string   `yaml:"tech"`
	Command []string `yaml:"command"`
}

// LoadFile reads and strictly decodes a vchain.yaml.
// Returns found=false (and no error) if the file does not exist.
// Unknown keys and type mismatches are E_CONFIG errors. Semantic validation
// happens in Resolve.
func LoadFile(fsys fs.FS, path string) (FileConfig, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, errors.WrapWithDetails(errors.EConfig, "failed to read "+FileName, err,
			map[string]string{"config": path})
	}

	fc, err := ParseFile(data)
	if err != nil {
		return FileConfig{}, true, errors.WrapWithDetails(errors.EConfig, "invalid "+FileName+": "+err.Error(), err,
			map[string]string{"config": path})
	}
	return fc, true, nil
}

// ParseFile decodes vchain.yaml content, rejecting unknown fields.
// An empty document decodes to the zero FileConfig.
func ParseFile(data []byte) (FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if stderrors.Is(err, io.EOF) {
			return FileConfig{}, nil
		}
		return FileConfig{}, err
	}

	// A second document is almost certainly a mistake.
	var extra any
	if err := dec.Decode(&extra); !stderrors.Is(err, io.EOF) {
		return FileConfig{}, stderrors.New("multiple YAML documents are not supported")
	}
	return fc, nil
}
