// Package artifacts inventories the files a run leaves in its results
// directory.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
)

// File name markers used to classify result files
const (
	RunAttachmentMarker  = "filename.txt"
	CaseAttachmentMarker = "testcasefilename"
	DiagLogMarker        = "diaglog"

	// Pattern selects the files considered by Scan
	Pattern = "*.txt"
)

// Inventory lists the result files by kind. A file may appear in more than
// one list if its path carries several markers.
type Inventory struct {
	Dir             string
	Files           []string
	RunAttachments  []string
	CaseAttachments []string
	DiagLogs        []string
}

// Scan walks dir recursively and classifies every *.txt file by substring of
// its full path. A missing dir yields an empty inventory.
func Scan(dir string) (*Inventory, error) {
	inv := &Inventory{Dir: dir}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(Pattern, d.Name()); !ok {
			return nil
		}
		inv.add(path)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scanning results directory: %w", err)
	}

	sort.Strings(inv.Files)
	sort.Strings(inv.RunAttachments)
	sort.Strings(inv.CaseAttachments)
	sort.Strings(inv.DiagLogs)
	return inv, nil
}

func (inv *Inventory) add(path string) {
	inv.Files = append(inv.Files, path)
	if strings.Contains(path, RunAttachmentMarker) {
		inv.RunAttachments = append(inv.RunAttachments, path)
	}
	if strings.Contains(path, CaseAttachmentMarker) {
		inv.CaseAttachments = append(inv.CaseAttachments, path)
	}
	if strings.Contains(path, DiagLogMarker) {
		inv.DiagLogs = append(inv.DiagLogs, path)
	}
}

// Exists reports whether dir is present on disk
func Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Expectation is the number of files of each kind a scenario must produce.
// The counts belong to a particular test asset and collector; they are not
// a property of data collection in general.
type Expectation struct {
	RunAttachments  int
	CaseAttachments int
	DiagLogs        int
}

// SampleDataCollector is what the sample collector produces for an assembly
// with three tests: one session attachment, one attachment per test case,
// and one diagnostic log each for the console, the test host and the
// collector host.
var SampleDataCollector = Expectation{
	RunAttachments:  1,
	CaseAttachments: 3,
	DiagLogs:        3,
}

// Check compares the inventory with exp. Run-level attachments must also be
// reported on standard output, so each of their paths is looked up there.
func Check(inv *Inventory, ev *assertions.Evaluator, exp Expectation) []*assertions.Result {
	results := []*assertions.Result{
		assertions.Equals("run attachments", exp.RunAttachments, len(inv.RunAttachments)),
	}
	for _, f := range inv.RunAttachments {
		results = append(results, ev.StdoutContains(f))
	}
	return append(results,
		assertions.Equals("test case attachments", exp.CaseAttachments, len(inv.CaseAttachments)),
		assertions.Equals("diagnostic logs", exp.DiagLogs, len(inv.DiagLogs)),
	)
}
