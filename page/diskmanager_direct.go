package page

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"hareql.dev/hareerr"
)

// DirectManager is a DiskManager that writes every update synchronously
// to the backing file; there is no log to replay on reopen.
type DirectManager struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	lock   *flock.Flock
	header *Header

	// committedHeader is the last header written by Commit, used to
	// revert in-memory counters on Rollback.
	committedHeader Header
}

// Create creates a new page file at path with a fresh header page.
func Create(path string, opts Options) (*DirectManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create page file %s: %w", path, err)
	}
	dm := &DirectManager{path: path, file: f, header: NewHeader(opts.FileType)}
	if err := dm.acquireLock(opts.LockTimeout); err != nil {
		f.Close()
		return nil, err
	}
	if err := dm.writeHeaderLocked(); err != nil {
		return nil, err
	}
	dm.committedHeader = *dm.header
	return dm, nil
}

// Open opens an existing page file, acquiring the advisory lock and
// validating the header. A header identifier mismatch is fatal; a
// checksum mismatch is non-fatal (DataCorruption) iff the header's
// consistency flag is CHECK, since that flag records the file was not
// cleanly closed and a recovery scan is expected to run before use.
func Open(path string, opts Options) (*DirectManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open page file %s: %w", path, err)
	}
	dm := &DirectManager{path: path, file: f}
	if err := dm.acquireLock(opts.LockTimeout); err != nil {
		f.Close()
		return nil, err
	}
	hp := &Page{}
	headerPos, _ := pageIdToPosition(1, 1)
	if _, err := f.ReadAt(hp.Bytes(), headerPos); err != nil {
		f.Close()
		return nil, fmt.Errorf("read header page of %s: %w", path, err)
	}
	h, err := Decode(hp)
	if err != nil {
		f.Close()
		return nil, err // identifier mismatch: fatal, returned as-is (DataCorruption)
	}
	if !Validate(hp, h) && h.Consistency != ConsistencyCheck {
		f.Close()
		return nil, hareerr.Newf(hareerr.KindDataCorruption, path, "checksum mismatch on a cleanly-closed file")
	}
	dm.header = h
	dm.committedHeader = *h
	return dm, nil
}

func (dm *DirectManager) acquireLock(timeout time.Duration) error {
	dm.lock = flock.New(dm.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var locked bool
	op := func() error {
		ok, err := dm.lock.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("advisory lock on %s: %w", dm.path, err))
		}
		if !ok {
			return fmt.Errorf("lock held")
		}
		locked = true
		return nil
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil || !locked {
		return hareerr.New(hareerr.KindFileLocked, dm.path, fmt.Errorf("advisory lock not acquired within %s", timeout))
	}
	return nil
}

func (dm *DirectManager) Path() string { return dm.path }

func (dm *DirectManager) PageCount() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.header.PageCount
}

func (dm *DirectManager) Read(id Id, p *Page) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	pos, err := pageIdToPosition(id, dm.header.PageCount)
	if err != nil {
		return err
	}
	if _, err := dm.file.ReadAt(p.Bytes(), pos); err != nil {
		return fmt.Errorf("read page %d of %s: %w", id, dm.path, err)
	}
	return nil
}

func (dm *DirectManager) Update(id Id, p *Page) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	pos, err := pageIdToPosition(id, dm.header.PageCount)
	if err != nil {
		return err
	}
	if _, err := dm.file.WriteAt(p.Bytes(), pos); err != nil {
		return fmt.Errorf("write page %d of %s: %w", id, dm.path, err)
	}
	return nil
}

// Allocate returns the most recently freed page id (the freelist head)
// if the freelist is non-empty, otherwise appends a new page to the end
// of the file.
func (dm *DirectManager) Allocate(initial *Page) (Id, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var id Id
	if dm.header.FreelistHead != NoPage {
		id = dm.header.FreelistHead
		var fp Page
		pos, err := pageIdToPosition(id, dm.header.PageCount)
		if err != nil {
			return 0, err
		}
		if _, err := dm.file.ReadAt(fp.Bytes(), pos); err != nil {
			return 0, fmt.Errorf("read freelist page %d of %s: %w", id, dm.path, err)
		}
		dm.header.FreelistHead = Id(fp.GetLong(0))
		dm.header.FreedCount--
	} else {
		dm.header.PageCount++
		id = Id(dm.header.PageCount)
	}

	payload := initial
	if payload == nil {
		payload = &Page{}
	}
	pos, err := pageIdToPosition(id, dm.header.PageCount)
	if err != nil {
		return 0, err
	}
	if _, err := dm.file.WriteAt(payload.Bytes(), pos); err != nil {
		return 0, fmt.Errorf("write allocated page %d of %s: %w", id, dm.path, err)
	}
	return id, nil
}

// Free pushes id onto the in-file freelist, whose head is tracked in
// the header page. The freed page's first 8 bytes become the previous
// freelist head pointer.
func (dm *DirectManager) Free(id Id) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var fp Page
	fp.PutLong(0, int64(dm.header.FreelistHead))
	pos, err := pageIdToPosition(id, dm.header.PageCount)
	if err != nil {
		return err
	}
	if _, err := dm.file.WriteAt(fp.Bytes(), pos); err != nil {
		return fmt.Errorf("write freelist link for page %d of %s: %w", id, dm.path, err)
	}
	dm.header.FreelistHead = id
	dm.header.FreedCount++
	return nil
}

// writeHeaderLocked persists the current in-memory header and fsyncs.
// Callers must hold dm.mu.
func (dm *DirectManager) writeHeaderLocked() error {
	hp := &Page{}
	dm.header.Encode(hp)
	pos, _ := pageIdToPosition(1, dm.header.PageCount)
	if _, err := dm.file.WriteAt(hp.Bytes(), pos); err != nil {
		return fmt.Errorf("write header of %s: %w", dm.path, err)
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("fsync %s: %w", dm.path, err)
	}
	return nil
}

// Commit writes the header with consistency = OK and fsyncs.
func (dm *DirectManager) Commit() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.header.Consistency = ConsistencyOK
	if err := dm.writeHeaderLocked(); err != nil {
		return err
	}
	dm.committedHeader = *dm.header
	return nil
}

// Rollback reverts in-memory header counters to the last committed
// snapshot. Pages allocated or freed since the last commit remain
// physically present but become unreachable/stale; they are reclaimed
// the next time the freelist or page-count bound is walked from the
// reverted header.
func (dm *DirectManager) Rollback() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	h := dm.committedHeader
	dm.header = &h
	return nil
}

func (dm *DirectManager) CalculateChecksum() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.header.ComputeChecksum()
}

func (dm *DirectManager) Validate() error {
	if dm.CalculateChecksum() != dm.header.Checksum {
		return hareerr.New(hareerr.KindDataCorruption, dm.path, fmt.Errorf("checksum mismatch"))
	}
	return nil
}

func (dm *DirectManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.header.Consistency = ConsistencyOK
	if err := dm.writeHeaderLocked(); err != nil {
		return err
	}
	if err := dm.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dm.path, err)
	}
	if dm.lock != nil {
		_ = dm.lock.Unlock()
	}
	return nil
}

func (dm *DirectManager) Delete() error {
	dm.mu.Lock()
	path := dm.path
	lock := dm.lock
	dm.mu.Unlock()
	_ = dm.file.Close()
	if lock != nil {
		_ = lock.Unlock()
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete page file %s: %w", path, err)
	}
	_ = os.Remove(path + ".lock")
	return nil
}
