package msgcat

import (
    "embed"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "text/template"

    yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

const defaultFile = "messages.en.yaml"

// Catalog holds user-facing text keyed by flattened dot paths
// ("reject.not_your_turn"). Templates are parsed once and cached.
type Catalog struct {
    mu     sync.RWMutex
    data   map[string]string
    parsed map[string]*template.Template
}

// New loads the embedded English messages, then overrides from dir when set.
func New(overrideDir string) (*Catalog, error) {
    c := &Catalog{data: make(map[string]string), parsed: make(map[string]*template.Template)}

    raw, err := fs.ReadFile(defaultFiles, defaultFile)
    if err != nil {
        return nil, fmt.Errorf("read embedded messages: %w", err)
    }
    flat, err := parseYAMLToFlat(raw)
    if err != nil {
        return nil, fmt.Errorf("parse embedded messages: %w", err)
    }
    c.merge(flat)

    if strings.TrimSpace(overrideDir) != "" {
        if err := c.applyDir(overrideDir); err != nil {
            return nil, err
        }
    }
    return c, nil
}

func (c *Catalog) merge(flat map[string]string) {
    c.mu.Lock()
    defer c.mu.Unlock()
    for k, v := range flat {
        c.data[k] = v
        delete(c.parsed, k)
    }
}

// applyDir reads *.yaml / *.yml in name order. A key defined by two override
// files is an error.
func (c *Catalog) applyDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return fmt.Errorf("read message dir: %w", err)
    }
    var files []string
    for _, e := range entries {
        if e.IsDir() { continue }
        switch strings.ToLower(filepath.Ext(e.Name())) {
        case ".yaml", ".yml":
            files = append(files, e.Name())
        }
    }
    sort.Strings(files)

    seen := make(map[string]string)
    for _, name := range files {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return fmt.Errorf("read %s: %w", name, err) }
        flat, err := parseYAMLToFlat(b)
        if err != nil { return fmt.Errorf("parse %s: %w", name, err) }
        for k := range flat {
            if prev, ok := seen[k]; ok {
                return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
            }
            seen[k] = name
        }
        c.merge(flat)
    }
    return nil
}

func parseYAMLToFlat(b []byte) (map[string]string, error) {
    var m map[string]any
    if err := yaml.Unmarshal(b, &m); err != nil {
        return nil, err
    }
    flat := make(map[string]string)
    if err := flatten(m, "", flat); err != nil {
        return nil, err
    }
    return flat, nil
}

func flatten(src any, prefix string, out map[string]string) error {
    switch v := src.(type) {
    case map[string]any:
        for k, vv := range v {
            key := k
            if prefix != "" { key = prefix + "." + k }
            if err := flatten(vv, key, out); err != nil { return err }
        }
        return nil
    case string:
        if prefix == "" { return errors.New("string value without key") }
        out[prefix] = v
        return nil
    case nil:
        return nil
    }
    return fmt.Errorf("unsupported value at %s: %T", prefix, src)
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
    c.mu.RLock()
    defer c.mu.RUnlock()
    _, ok := c.data[strings.TrimSpace(key)]
    return ok
}

// Render executes the template stored under key. Unknown keys and missing
// template fields are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
    key = strings.TrimSpace(key)
    tpl, err := c.template(key)
    if err != nil {
        return "", err
    }
    var b strings.Builder
    if err := tpl.Execute(&b, data); err != nil {
        return "", fmt.Errorf("render %s: %w", key, err)
    }
    return b.String(), nil
}

// Text is Render that falls back to the key itself.
func (c *Catalog) Text(key string, data any) string {
    if c == nil {
        return key
    }
    s, err := c.Render(key, data)
    if err != nil {
        return key
    }
    return s
}

func (c *Catalog) template(key string) (*template.Template, error) {
    c.mu.RLock()
    tpl, ok := c.parsed[key]
    src, defined := c.data[key]
    c.mu.RUnlock()
    if ok {
        return tpl, nil
    }
    if !defined || strings.TrimSpace(src) == "" {
        return nil, fmt.Errorf("template not found: %s", key)
    }
    tpl, err := template.New(key).Option("missingkey=error").Parse(src)
    if err != nil {
        return nil, fmt.Errorf("parse %s: %w", key, err)
    }
    c.mu.Lock()
    c.parsed[key] = tpl
    c.mu.Unlock()
    return tpl, nil
}
