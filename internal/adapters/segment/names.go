package segment

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	perr "modwatch/internal/platform/errors"
)

// StampLayout is the UTC timestamp appended to a sealed segment
const StampLayout = "2006-01-02_15-04-05"

const (
	lockExt    = ".lock"
	partExt    = ".part"
	archiveExt = ".zst"
)

// Paths names every file that belongs to one sealed segment
type Paths struct {
	Segment        string
	Removed        string
	RemovedPart    string
	Lock           string
	Archive        string
	RemovedArchive string
}

// PathsFor derives the companion names of seg using the removed log suffix
func PathsFor(seg, removedSuffix string) Paths {
	removed := seg + removedSuffix
	return Paths{
		Segment:        seg,
		Removed:        removed,
		RemovedPart:    removed + partExt,
		Lock:           seg + lockExt,
		Archive:        seg + archiveExt,
		RemovedArchive: removed + archiveExt,
	}
}

// SealedName returns the first free sealed name for base opened at t
// Collisions get .1, .2, ... appended
func SealedName(base string, t time.Time) (string, error) {
	name := base + "." + t.UTC().Format(StampLayout)
	for i := 0; ; i++ {
		cand := name
		if i > 0 {
			cand = name + "." + strconv.Itoa(i)
		}
		_, err := os.Lstat(cand)
		if os.IsNotExist(err) {
			return cand, nil
		}
		if err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeIO, "stat %s", cand)
		}
		if i > 10000 {
			return "", perr.IOf("no free sealed name for %s", name)
		}
	}
}

// Matcher recognizes sealed segment names for one active file name
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher builds a Matcher for the active file name (base name only)
func NewMatcher(activeName string) Matcher {
	return Matcher{re: regexp.MustCompile(
		`^` + regexp.QuoteMeta(filepath.Base(activeName)) +
			`\.\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}(\.\d+)?$`)}
}

// IsSealed reports whether path names a sealed segment (not a companion file)
func (m Matcher) IsSealed(path string) bool {
	return m.re.MatchString(filepath.Base(path))
}

// Scan lists sealed segments still present in dir, oldest first
// A sealed file that still exists has not finished archiving
func Scan(dir, activeName string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "scan %s", dir)
	}
	m := NewMatcher(activeName)
	var out []string
	for _, e := range ents {
		if e.IsDir() || !m.IsSealed(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Orphans lists sealed segments that are gone while their removed log is still
// on disk next to the segment archive; archiving them again finishes the job
func Orphans(dir, activeName, removedSuffix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "scan %s", dir)
	}
	m := NewMatcher(activeName)
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || removedSuffix == "" || !strings.HasSuffix(name, removedSuffix) {
			continue
		}
		seg := filepath.Join(dir, strings.TrimSuffix(name, removedSuffix))
		if !m.IsSealed(seg) || Exists(seg) || !Exists(seg+archiveExt) {
			continue
		}
		out = append(out, seg)
	}
	sort.Strings(out)
	return out, nil
}

// Exists reports whether path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
