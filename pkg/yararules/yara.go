package yararules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	yara "github.com/hillu/go-yara/v4"
	"github.com/rs/zerolog/log"
)

const scanTimeout = 1 * time.Minute

// External variables rule bodies may reference. Defined at compile
// time so community rules using them still compile.
var extvars = map[string]interface{}{
	"filename":  "",
	"filepath":  "",
	"extension": "",
	"filetype":  "",
}

// NOTE:::Do not expose the compiled rules.
// All access goes through the atomically swapped handle below.
//
// Repo owns the on-disk rule corpus and its compiled form. Readers
// load the active handle without locking; Rebuild builds a fresh
// handle and swaps it in only on success, so a failed compile never
// discards a previously working matcher.
type Repo struct {
	RulesPath            string
	FailOnCompileWarning bool

	active     atomic.Pointer[yara.Rules]
	generation atomic.Uint64
	rebuildMu  sync.Mutex
	commitMu   sync.Mutex
}

func New(rulesPath string) *Repo {
	return &Repo{RulesPath: rulesPath}
}

// Rebuild reads all rule files under RulesPath and compiles them into
// one combined matcher. An empty directory compiles to a matcher that
// matches nothing, which is not an error.
func (r *Repo) Rebuild() error {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()

	if err := os.MkdirAll(r.RulesPath, 0755); err != nil {
		return err
	}

	c, err := yara.NewCompiler()
	if err != nil {
		return err
	}

	for k, v := range extvars {
		if err = c.DefineVariable(k, v); err != nil {
			return err
		}
	}

	paths, err := getRuleFiles(r.RulesPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to get rule files")
		return err
	}

	for _, path := range paths {
		// We use the include callback function to actually read files
		// because yr_compiler_add_string() does not accept a file
		// name.
		log.Debug().Str("file", path).Msg("including yara rule file")
		if err = c.AddString(fmt.Sprintf(`include "%s"`, path), ""); err != nil {
			return r.compileError(c, err)
		}
	}

	compiled, err := c.GetRules()
	if err != nil {
		return r.compileError(c, err)
	}

	if len(c.Warnings) > 0 {
		for _, w := range c.Warnings {
			log.Warn().Str("filename", w.Filename).Int("line", w.Line).Str("text", w.Text).
				Msg("YARA compiler warning")
		}
		if r.FailOnCompileWarning {
			return fmt.Errorf("%d YARA compiler warning(s) found, rejecting ruleset", len(c.Warnings))
		}
	}

	r.active.Store(compiled)
	gen := r.generation.Add(1)
	log.Info().Int("files", len(paths)).Uint64("generation", gen).Msg("rule corpus rebuilt")
	return nil
}

// compileError reports the compiler errors with the offending files
// when determinable. The active matcher is left unchanged.
func (r *Repo) compileError(c *yara.Compiler, err error) error {
	if len(c.Errors) == 0 {
		return fmt.Errorf("yara compile failed: %w", err)
	}
	for _, e := range c.Errors {
		log.Error().Str("filename", e.Filename).Int("line", e.Line).Str("text", e.Text).
			Msg("YARA compiler error")
	}
	return fmt.Errorf("%d YARA compiler error(s) found, keeping previous ruleset", len(c.Errors))
}

// Match runs the active matcher against data and returns matched rule
// identifiers in match order. With no active matcher it attempts one
// lazy Rebuild before concluding no matches; this covers rules added
// to disk out-of-band.
func (r *Repo) Match(data []byte) ([]string, error) {
	rules := r.active.Load()
	if rules == nil {
		if err := r.Rebuild(); err != nil {
			log.Warn().Err(err).Msg("lazy rebuild failed, concluding no matches")
			return nil, nil
		}
		rules = r.active.Load()
		if rules == nil {
			return nil, nil
		}
	}

	var matches yara.MatchRules
	if err := rules.ScanMem(data, 0, scanTimeout, &matches); err != nil {
		return nil, fmt.Errorf("yara scan failed: %w", err)
	}

	matched := make([]string, 0, len(matches))
	for _, m := range matches {
		matched = append(matched, m.Rule)
	}
	return matched, nil
}

// Generation returns the monotonic rebuild counter.
func (r *Repo) Generation() uint64 {
	return r.generation.Load()
}

// Commit writes the given rule bodies under RulesPath and rebuilds
// once. Writers (feed sync, rule synthesis) share this mutual
// exclusion region so their file writes never interleave with each
// other's rebuild.
func (r *Repo) Commit(bodies map[string]string) error {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if err := os.MkdirAll(r.RulesPath, 0755); err != nil {
		return err
	}

	for filename, body := range bodies {
		name := sanitizeFilename(filename)
		if err := os.WriteFile(filepath.Join(r.RulesPath, name), []byte(body), 0644); err != nil {
			return fmt.Errorf("write rule file %s: %w", name, err)
		}
	}

	return r.Rebuild()
}

func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	if !strings.HasSuffix(name, ".yar") && !strings.HasSuffix(name, ".yara") {
		name += ".yar"
	}
	return name
}

func getRuleFiles(rulesPath string) ([]string, error) {
	var fileNames []string
	files, err := os.ReadDir(rulesPath)
	if err != nil {
		return fileNames, err
	}

	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".yar") || strings.HasSuffix(f.Name(), ".yara") {
			fileNames = append(fileNames, filepath.Join(rulesPath, f.Name()))
		}
	}
	return fileNames, nil
}
