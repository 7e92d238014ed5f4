package tracking

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"
	"github.com/tidwall/gjson"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/fsx"
	"github.com/zhubert/claude-menu/internal/logger"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var compileSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema)
	for _, name := range []string{mappingName, registryName, backgroundName} {
		data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schema, err := compiler.Compile(data)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[name] = schema
	}
	return out, nil
})

const (
	mappingName    = "session-mapping"
	registryName   = "profile-registry"
	backgroundName = "background-tracking"
)

type document interface {
	getVersion() int
	setVersion(int)
	normalize()
}

// table is one side-table file plus the state needed to save it safely.
type table[T any, P interface {
	*T
	document
}] struct {
	name     string
	path     string
	doc      T
	digest   string // canonical digest of doc as loaded
	readOnly bool
	version  int   // version found on disk, 0 when absent
	warning  error // set when the file was quarantined or only partly decoded
}

func (t *table[T, P]) ptr() P {
	return P(&t.doc)
}

// loadTable reads path into a table. A missing file gives an empty table. A
// file that fails to parse or validate is quarantined and replaced by an
// empty table, with t.warning describing what happened.
func loadTable[T any, P interface {
	*T
	document
}](name, path string, now time.Time) (*table[T, P], error) {
	t := &table[T, P]{name: name, path: path}
	log := logger.ComponentLogger("Tracking")

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, t.reset()
	}
	if err != nil {
		return nil, cerrors.E(cerrors.Op("tracking.Load"), cerrors.KindIO, path, err)
	}

	if reason := t.check(data); reason != nil {
		quarantine, qerr := fsx.Quarantine(path, now)
		if qerr != nil {
			return nil, cerrors.E(cerrors.Op("tracking.Load"), cerrors.KindIO, path, qerr)
		}
		log.Warn("quarantined corrupt tracking file", "table", name, "path", path, "quarantine", quarantine, "reason", reason)
		t.warning = cerrors.CorruptStore(path, quarantine, reason)
		return t, t.reset()
	}

	t.version = int(gjson.GetBytes(data, "version").Int())
	if t.version > CurrentVersion {
		// Future format: keep whatever decodes, never write it back.
		t.readOnly = true
		if err := json.Unmarshal(data, &t.doc); err != nil {
			log.Warn("newer tracking file only partly decoded", "table", name, "version", t.version, "error", err)
			t.warning = cerrors.E(cerrors.Op("tracking.Load"), cerrors.KindReadOnly, path,
				fmt.Errorf("version %d only partly decoded: %w", t.version, err))
		}
		t.ptr().normalize()
		log.Warn("tracking file has a newer version, loaded read-only", "table", name, "version", t.version)
		t.digest, err = t.canonicalDigest()
		return t, err
	}

	if err := json.Unmarshal(data, &t.doc); err != nil {
		return nil, cerrors.E(cerrors.Op("tracking.Load"), cerrors.KindCorruptStore, path, err)
	}
	t.ptr().normalize()
	if t.version < CurrentVersion {
		// Legacy files are stamped in memory; they are only rewritten once
		// something else in the table changes.
		t.ptr().setVersion(CurrentVersion)
	}
	t.digest, err = t.canonicalDigest()
	return t, err
}

func (t *table[T, P]) reset() error {
	var zero T
	t.doc = zero
	t.ptr().setVersion(CurrentVersion)
	t.ptr().normalize()
	t.version = 0
	var err error
	t.digest, err = t.canonicalDigest()
	return err
}

// check returns why data is not a usable document, or nil.
func (t *table[T, P]) check(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("not valid JSON")
	}
	if gjson.GetBytes(data, "version").Int() > CurrentVersion {
		return nil
	}
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}
	result := schemas[t.name].ValidateJSON(data)
	if !result.IsValid() {
		return fmt.Errorf("schema validation failed: %v", result.Errors)
	}
	return nil
}

func (t *table[T, P]) encode() ([]byte, error) {
	data, err := json.MarshalIndent(&t.doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (t *table[T, P]) canonicalDigest() (string, error) {
	data, err := json.Marshal(&t.doc)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", t.name, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// dirty reports whether doc differs from what was loaded.
func (t *table[T, P]) dirty() (bool, error) {
	d, err := t.canonicalDigest()
	if err != nil {
		return false, err
	}
	return d != t.digest, nil
}

// blocked returns the read-only error for a changed read-only table.
func (t *table[T, P]) blocked() error {
	if !t.readOnly {
		return nil
	}
	dirty, err := t.dirty()
	if err != nil || !dirty {
		return err
	}
	return cerrors.ReadOnlyStore(t.path, t.version)
}

// save writes the table if it changed. Unchanged tables are left untouched
// on disk, byte for byte.
func (t *table[T, P]) save() (bool, error) {
	dirty, err := t.dirty()
	if err != nil || !dirty {
		return false, err
	}
	if t.readOnly {
		return false, cerrors.ReadOnlyStore(t.path, t.version)
	}
	data, err := t.encode()
	if err != nil {
		return false, err
	}
	if err := fsx.WriteFileAtomic(t.path, data, 0o644); err != nil {
		return false, cerrors.E(cerrors.Op("tracking.Save"), cerrors.KindIO, t.path, err)
	}
	t.digest, err = t.canonicalDigest()
	logger.ComponentLogger("Tracking").Debug("saved tracking table", "table", t.name, "path", t.path)
	return true, err
}
