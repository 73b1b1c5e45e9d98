package loader

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

//go:embed schema.cue
var schemaSource string

// LoadCUE loads the model field from a CUE file or from the CUE package in
// a directory. The value is unified with the #Model schema and must be
// concrete.
func LoadCUE(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model not found: %s", path)}
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	} else {
		matches, err := filepath.Glob(filepath.Join(path, "*.cue"))
		if err != nil || len(matches) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fromCUE(ErrCodeLoadFailed, inst.Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	return decodeCUE(ctx, v)
}

// ParseCUE compiles CUE source holding a model field.
func ParseCUE(src []byte, filename string) (*Model, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	return decodeCUE(ctx, v)
}

func decodeCUE(ctx *cue.Context, v cue.Value) (*Model, error) {
	mv := v.LookupPath(cue.ParsePath("model"))
	if !mv.Exists() {
		return nil, &LoadError{Code: ErrCodeSchema, Message: "model field is required", Pos: v.Pos()}
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	mv = schema.LookupPath(cue.ParsePath("#Model")).Unify(mv)
	if err := mv.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}

	var m Model
	if err := mv.Decode(&m); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	return &m, nil
}

// fromCUE converts the first CUE error to a LoadError with its position.
func fromCUE(code string, err error) *LoadError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
