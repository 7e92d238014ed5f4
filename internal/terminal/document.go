package terminal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Owned presentation fields. Everything else on an entity belongs to the
// terminal or the user and is never written.
const (
	fieldHandle      = "guid"
	fieldName        = "name"
	fieldCommandline = "commandline"
	fieldStartingDir = "startingDirectory"
	fieldBackground  = "backgroundImage"
	fieldOpacity     = "backgroundImageOpacity"
	fieldHidden      = "hidden"
)

// appearanceKeys are copied from the base profile onto every new profile so
// the session profiles look like the baseline.
var appearanceKeys = []string{
	"colorScheme",
	"font",
	"cursorShape",
	"padding",
	"useAcrylic",
	"opacity",
	"backgroundImageStretchMode",
	"backgroundImageAlignment",
}

var baseDefaults = []field{
	{"colorScheme", "Campbell"},
	{"backgroundImageStretchMode", "uniformToFill"},
	{"backgroundImageAlignment", "center"},
}

var (
	sessionIDRegex = regexp.MustCompile(`--session-id\s+"?([^\s"]+)`)
	resumeRegex    = regexp.MustCompile(`--resume\s+"?([^\s"]+)`)
)

// document is a validated settings file plus the path of its profile list.
//
// raw is always standard JSON. When the file on disk has comments or
// trailing commas, source holds its parsed form and every edit is also
// recorded as a JSON Patch operation, so encode can replay the edits onto
// the original text and keep the user's comments.
type document struct {
	raw      []byte
	listPath string // "profiles.list", or "profiles" for the legacy array form

	source *hujson.Value
	ops    []patchOp
}

// patchOp is one RFC 6902 operation.
type patchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// parseDocument checks that data is JSON, or JSON with comments and
// trailing commas, with a usable profile list.
func parseDocument(data []byte) (*document, error) {
	doc := &document{raw: data}
	if !gjson.ValidBytes(data) {
		// Parse aliases its input and Standardize rewrites in place.
		src, err := hujson.Parse(bytes.Clone(data))
		if err != nil {
			return nil, fmt.Errorf("not valid JSON: %w", err)
		}
		std := src.Clone()
		std.Standardize()
		doc.raw = std.Pack()
		doc.source = &src
		if !gjson.ValidBytes(doc.raw) {
			return nil, fmt.Errorf("not valid JSON")
		}
	}
	root := gjson.ParseBytes(doc.raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("top level is not an object")
	}

	profiles := root.Get("profiles")
	switch {
	case !profiles.Exists():
		doc.listPath = "profiles.list"
	case profiles.IsArray():
		doc.listPath = "profiles"
	case profiles.IsObject():
		list := profiles.Get("list")
		if list.Exists() && !list.IsArray() {
			return nil, fmt.Errorf("profiles.list is not an array")
		}
		doc.listPath = "profiles.list"
	default:
		return nil, fmt.Errorf("profiles is neither an object nor an array")
	}
	return doc, nil
}

// encode returns the document as it should be written. A file with comments
// keeps them.
func (d *document) encode() ([]byte, error) {
	if d.source == nil {
		return d.raw, nil
	}
	if len(d.ops) == 0 {
		return d.source.Pack(), nil
	}
	patch, err := json.Marshal(d.ops)
	if err != nil {
		return nil, err
	}
	out := d.source.Clone()
	if err := out.Patch(patch); err != nil {
		return nil, fmt.Errorf("patch settings: %w", err)
	}
	return out.Pack(), nil
}

// record notes an edit for replay onto a commented source.
func (d *document) record(op, path string, value any) error {
	if d.source == nil {
		return nil
	}
	o := patchOp{Op: op, Path: path}
	switch v := value.(type) {
	case nil:
	case []byte:
		o.Value = json.RawMessage(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		o.Value = b
	}
	d.ops = append(d.ops, o)
	return nil
}

// pointer converts a dotted gjson path into a JSON Pointer.
func pointer(path string) string {
	var b strings.Builder
	for _, seg := range strings.Split(path, ".") {
		b.WriteByte('/')
		b.WriteString(strings.NewReplacer("~", "~0", "/", "~1").Replace(seg))
	}
	return b.String()
}

func (d *document) list() []gjson.Result {
	return gjson.GetBytes(d.raw, d.listPath).Array()
}

// index returns the position of the entity whose handle matches, or -1.
func (d *document) index(handle string) int {
	for i, p := range d.list() {
		if sameHandle(p.Get(fieldHandle).String(), handle) {
			return i
		}
	}
	return -1
}

// indexByName returns the position of the first entity named name, or -1.
func (d *document) indexByName(name string) int {
	for i, p := range d.list() {
		if p.Get(fieldName).String() == name {
			return i
		}
	}
	return -1
}

func (d *document) entity(i int) gjson.Result {
	return gjson.GetBytes(d.raw, d.entityPath(i))
}

func (d *document) entityPath(i int) string {
	return d.listPath + "." + strconv.Itoa(i)
}

func (d *document) appendEntity(entity []byte) error {
	if !gjson.GetBytes(d.raw, d.listPath).Exists() {
		var err error
		if d.listPath == "profiles.list" && !gjson.GetBytes(d.raw, "profiles").Exists() {
			err = d.record("add", pointer("profiles"), []byte(`{"list":[]}`))
		} else {
			err = d.record("add", pointer(d.listPath), []byte("[]"))
		}
		if err != nil {
			return fmt.Errorf("create profile list: %w", err)
		}
		out, err := sjson.SetRawBytes(d.raw, d.listPath, []byte("[]"))
		if err != nil {
			return fmt.Errorf("create profile list: %w", err)
		}
		d.raw = out
	}
	if err := d.record("add", pointer(d.listPath)+"/-", entity); err != nil {
		return fmt.Errorf("append profile: %w", err)
	}
	out, err := sjson.SetRawBytes(d.raw, d.listPath+".-1", entity)
	if err != nil {
		return fmt.Errorf("append profile: %w", err)
	}
	d.raw = out
	return nil
}

func (d *document) set(i int, key string, value any) error {
	if err := d.record("add", pointer(d.entityPath(i)+"."+key), value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	out, err := sjson.SetBytes(d.raw, d.entityPath(i)+"."+key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	d.raw = out
	return nil
}

func (d *document) remove(i int) error {
	if err := d.record("remove", pointer(d.entityPath(i)), nil); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}
	out, err := sjson.DeleteBytes(d.raw, d.entityPath(i))
	if err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}
	d.raw = out
	return nil
}

type field struct {
	key   string
	value any
}

// buildEntity assembles a new profile object. Appearance keys are copied
// verbatim from base when present.
func buildEntity(fields []field, base gjson.Result) ([]byte, error) {
	entity := []byte("{}")
	var err error
	for _, f := range fields {
		if entity, err = sjson.SetBytes(entity, f.key, f.value); err != nil {
			return nil, err
		}
	}
	if !base.Exists() {
		return entity, nil
	}
	for _, key := range appearanceKeys {
		if v := base.Get(key); v.Exists() {
			if entity, err = sjson.SetRawBytes(entity, key, []byte(v.Raw)); err != nil {
				return nil, err
			}
		}
	}
	return entity, nil
}

// sessionOf extracts the session a profile launches from its commandline.
func sessionOf(entity gjson.Result) string {
	cmd := entity.Get(fieldCommandline).String()
	for _, re := range []*regexp.Regexp{sessionIDRegex, resumeRegex} {
		if m := re.FindStringSubmatch(cmd); m != nil {
			return m[1]
		}
	}
	return ""
}

func sameHandle(a, b string) bool {
	return a != "" && strings.EqualFold(strings.Trim(a, "{}"), strings.Trim(b, "{}"))
}
