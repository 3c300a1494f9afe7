package segment

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	perr "modwatch/internal/platform/errors"
	kit "modwatch/internal/platform/testkit"
)

var t0 = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func TestSealedName_Collisions(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "comments.log")

	first, err := SealedName(base, t0)
	if err != nil {
		t.Fatalf("SealedName: %v", err)
	}
	if filepath.Base(first) != "comments.log.2024-03-09_14-05-07" {
		t.Fatalf("name = %s", first)
	}
	kit.WriteLines(t, dir, filepath.Base(first), "x")
	second, _ := SealedName(base, t0)
	if second != first+".1" {
		t.Fatalf("collision name = %s", second)
	}
	kit.WriteLines(t, dir, filepath.Base(second), "x")
	if third, _ := SealedName(base, t0); third != first+".2" {
		t.Fatalf("second collision = %s", third)
	}
}

func TestMatcherAndScan(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{
		"comments.log",
		"comments.log.2024-03-09_14-05-07",
		"comments.log.2024-03-09_14-04-00",
		"comments.log.2024-03-09_14-05-07.1",
		"comments.log.2024-03-09_14-05-07.removed",
		"comments.log.2024-03-09_14-05-07.removed.part",
		"comments.log.2024-03-09_14-05-07.lock",
		"comments.log.2024-03-09_14-05-07.zst",
		"other.log.2024-03-09_14-05-07",
	} {
		kit.WriteLines(t, dir, n, "x")
	}
	got, err := Scan(dir, "comments.log")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		"comments.log.2024-03-09_14-04-00",
		"comments.log.2024-03-09_14-05-07",
		"comments.log.2024-03-09_14-05-07.1",
	}
	if len(got) != len(want) {
		t.Fatalf("Scan = %v", got)
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Fatalf("Scan[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if _, err := Scan(filepath.Join(dir, "nope"), "comments.log"); !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("missing dir should be IO, got %v", err)
	}
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/d/c.log.2024-01-01_00-00-00", ".removed")
	if p.Removed != "/d/c.log.2024-01-01_00-00-00.removed" ||
		p.RemovedPart != p.Removed+".part" ||
		p.Lock != p.Segment+".lock" ||
		p.Archive != p.Segment+".zst" ||
		p.RemovedArchive != p.Removed+".zst" {
		t.Fatalf("paths = %+v", p)
	}
}

func TestReader_SkipsBlankLinesAndCopies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg")
	if err := os.WriteFile(path, []byte("a\n\nbb\nccc"), 0o644); err != nil {
		t.Fatal(err)
	}
	rd, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rd.Close()

	var lines []string
	var nums []int
	for {
		b, n, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		lines = append(lines, string(b))
		nums = append(nums, n)
	}
	if strings.Join(lines, ",") != "a,bb,ccc" {
		t.Fatalf("lines = %v", lines)
	}
	if nums[0] != 1 || nums[1] != 3 || nums[2] != 4 {
		t.Fatalf("line numbers = %v", nums)
	}
	if _, _, err := rd.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("EOF should be sticky")
	}
	if lines, _ := rd.Stats(); lines != 4 {
		t.Fatalf("stats lines = %d", lines)
	}

	if _, err := Open(filepath.Join(dir, "missing")); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing segment should be NotFound, got %v", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := kit.WriteLines(t, dir, "seg", `{"name":"t1_a"}`, `{"name":"t1_b"}`)
	dst := src + ".zst"
	if err := Compress(src, dst); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	kit.MustNotExist(t, dst+".part")

	rc, err := Decompress(dst)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	orig, _ := os.ReadFile(src)
	if string(got) != string(orig) {
		t.Fatalf("round trip mismatch: %q vs %q", got, orig)
	}

	if err := Compress(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatalf("missing source should fail")
	}
}

func TestArchiveAll(t *testing.T) {
	dir := t.TempDir()
	seg := kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", `{"name":"t1_a"}`)
	p := PathsFor(seg, ".removed")
	kit.WriteLines(t, dir, filepath.Base(p.Removed), `{"name":"t1_a","removal_signal":"absent"}`)

	if err := ArchiveAll(p); err != nil {
		t.Fatalf("ArchiveAll: %v", err)
	}
	kit.MustExist(t, p.Archive)
	kit.MustExist(t, p.RemovedArchive)
	kit.MustNotExist(t, p.Segment)
	kit.MustNotExist(t, p.Removed)

	// re-running over a finished segment is harmless
	if err := ArchiveAll(p); err != nil {
		t.Fatalf("second ArchiveAll: %v", err)
	}
}

func TestArchiveAll_InterruptedKeepsSegment(t *testing.T) {
	kit.Serial(t)
	dir := t.TempDir()
	seg := kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", `{"name":"t1_a"}`)
	p := PathsFor(seg, ".removed")
	kit.WriteLines(t, dir, filepath.Base(p.Removed), `{"name":"t1_a","removal_signal":"absent"}`)
	kit.Swap(t, &removeFile, func(name string) error {
		if name == p.Segment {
			return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
		}
		return os.Remove(name)
	})

	if err := ArchiveAll(p); !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("want IO error, got %v", err)
	}
	// the segment outlives its removed log, so a rescan still finds the work
	kit.MustNotExist(t, p.Removed)
	kit.MustExist(t, p.RemovedArchive)
	kit.MustExist(t, p.Segment)
	segs, err := Scan(dir, "c.log")
	if err != nil || len(segs) != 1 || segs[0] != seg {
		t.Fatalf("scan = %v err = %v", segs, err)
	}
}

func TestClaim(t *testing.T) {
	dir := t.TempDir()
	seg := kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", "x")
	p := PathsFor(seg, ".removed")

	c, err := Acquire(p, "run-a", t0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := Acquire(p, "run-b", t0); !errors.Is(err, ErrClaimHeld) {
		t.Fatalf("second Acquire = %v, want ErrClaimHeld", err)
	}
	ci, err := ReadClaim(p.Lock)
	if err != nil || ci.RunID != "run-a" || ci.PID != os.Getpid() || !ci.ClaimedAt.Equal(t0) {
		t.Fatalf("claim info = %+v, %v", ci, err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	kit.MustNotExist(t, p.Lock)
}

func TestReader_OversizedLineIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg")
	long := strings.Repeat("x", 100)
	if err := os.WriteFile(path, []byte("a\n"+long+"\nbb\r\n"+long), 0o644); err != nil {
		t.Fatal(err)
	}
	rd, err := OpenLimit(path, 16)
	if err != nil {
		t.Fatalf("OpenLimit: %v", err)
	}
	defer rd.Close()

	var got []string
	tooLong := 0
	for {
		b, n, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		switch {
		case errors.Is(err, ErrLineTooLong):
			if !perr.IsCode(err, perr.ErrorCodeParse) || (n != 2 && n != 4) {
				t.Fatalf("line %d: %v", n, err)
			}
			tooLong++
		case err != nil:
			t.Fatalf("Next: %v", err)
		default:
			got = append(got, string(b))
		}
	}
	if strings.Join(got, ",") != "a,bb" || tooLong != 2 {
		t.Fatalf("lines = %v too long = %d", got, tooLong)
	}
	if lines, n := rd.Stats(); lines != 4 || n != int64(2+101+4+100) {
		t.Fatalf("stats = %d lines %d bytes", lines, n)
	}
}

func writeClaim(t *testing.T, p Paths, ci ClaimInfo) {
	t.Helper()
	b, err := json.Marshal(ci)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.Lock, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBreakStale(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	mine := PathsFor(kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", "x"), ".removed")
	// same pid under another run id: this process restarted with a recycled pid
	recycled := PathsFor(kit.WriteLines(t, dir, "c.log.2024-01-01_00-01-00", "x"), ".removed")
	junk := filepath.Join(dir, "c.log.2024-01-01_00-02-00.lock")
	fresh := filepath.Join(dir, "c.log.2024-01-01_00-03-00.lock")
	unrelated := kit.WriteLines(t, dir, "notes.lock", "keep")
	for _, f := range []string{junk, fresh} {
		if err := os.WriteFile(f, []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := now.Add(-time.Hour)
	if err := os.Chtimes(junk, old, old); err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(mine, "me", t0); err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(recycled, "dead-run", t0); err != nil {
		t.Fatal(err)
	}

	broken, err := BreakStale(dir, "c.log", "me", StaleRule{Now: now})
	if err != nil {
		t.Fatalf("BreakStale: %v", err)
	}
	if len(broken) != 2 {
		t.Fatalf("broken = %v", broken)
	}
	kit.MustExist(t, mine.Lock)
	kit.MustNotExist(t, recycled.Lock)
	kit.MustNotExist(t, junk)
	kit.MustExist(t, fresh)
	kit.MustExist(t, unrelated)
}

func TestBreakStale_KeepsLivePeer(t *testing.T) {
	dir := t.TempDir()
	host, _ := os.Hostname()
	p := PathsFor(kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", "x"), ".removed")
	// the parent process stands in for a second crawler that is still working
	writeClaim(t, p, ClaimInfo{RunID: "run-a", PID: os.Getppid(), Host: host, ClaimedAt: t0})

	broken, err := BreakStale(dir, "c.log", "run-b", StaleRule{Now: t0.Add(48 * time.Hour)})
	if err != nil || len(broken) != 0 {
		t.Fatalf("broken = %v err = %v", broken, err)
	}
	if _, err := Acquire(p, "run-b", t0); !errors.Is(err, ErrClaimHeld) {
		t.Fatalf("want ErrClaimHeld after reconcile, got %v", err)
	}
}

func TestBreakStale_DeadPid(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pid liveness is unix only")
	}
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	if err := cmd.Run(); err != nil {
		t.Fatalf("child: %v", err)
	}
	dir := t.TempDir()
	host, _ := os.Hostname()
	p := PathsFor(kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", "x"), ".removed")
	writeClaim(t, p, ClaimInfo{RunID: "gone", PID: cmd.ProcessState.Pid(), Host: host, ClaimedAt: t0})

	broken, err := BreakStale(dir, "c.log", "me", StaleRule{Now: t0})
	if err != nil || len(broken) != 1 {
		t.Fatalf("broken = %v err = %v", broken, err)
	}
	kit.MustNotExist(t, p.Lock)
}

func TestBreakStale_ForeignHostLease(t *testing.T) {
	dir := t.TempDir()
	p := PathsFor(kit.WriteLines(t, dir, "c.log.2024-01-01_00-00-00", "x"), ".removed")
	writeClaim(t, p, ClaimInfo{RunID: "peer", PID: 1, Host: "elsewhere.invalid", ClaimedAt: t0})

	if broken, _ := BreakStale(dir, "c.log", "me", StaleRule{Now: t0.Add(72 * time.Hour)}); len(broken) != 0 {
		t.Fatalf("no lease: broken = %v", broken)
	}
	rule := StaleRule{Now: t0.Add(time.Hour), Lease: 2 * time.Hour}
	if broken, _ := BreakStale(dir, "c.log", "me", rule); len(broken) != 0 {
		t.Fatalf("within lease: broken = %v", broken)
	}
	rule.Now = t0.Add(3 * time.Hour)
	if broken, err := BreakStale(dir, "c.log", "me", rule); err != nil || len(broken) != 1 {
		t.Fatalf("expired lease: broken = %v err = %v", broken, err)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Fatalf("run ids should be unique, got %q %q", a, b)
	}
}
