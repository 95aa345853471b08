package page

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"hareql.dev/hareerr"
)

// logRecordSize is the fixed on-disk size of one WAL record: an 8-byte
// page id followed by the full page payload.
const logRecordSize = 8 + Size

// WALManager is a DiskManager that appends updates to a log file and
// applies them to the data file only on Checkpoint (called
// automatically by Close, and implicitly by a subsequent Commit once
// the log grows past walCheckpointThreshold records). Commit forces
// (fsyncs) the log rather than the data file; Rollback truncates the
// log back to the last commit boundary.
type WALManager struct {
	mu   sync.Mutex
	path string
	file *os.File

	logPath string
	logFile *os.File

	lock *flock.Flock

	header          *Header
	committedHeader Header

	pending map[Id]*Page // writes since the last Commit, not yet durable
	applied map[Id]*Page // committed (durable in the log) but not yet checkpointed into the data file

	logOffsetAtLastCommit int64
}

// walCheckpointThreshold bounds how many committed-but-unapplied pages
// accumulate before Commit opportunistically checkpoints, keeping Read
// from having to search an unbounded in-memory map.
const walCheckpointThreshold = 4096

func walLogPath(dataPath string) string { return dataPath + ".wal" }

// CreateWAL creates a new WAL-backed page file.
func CreateWAL(path string, opts Options) (*WALManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create page file %s: %w", path, err)
	}
	wm := &WALManager{
		path:    path,
		file:    f,
		logPath: walLogPath(path),
		header:  NewHeader(opts.FileType),
		pending: map[Id]*Page{},
		applied: map[Id]*Page{},
	}
	if err := wm.acquireLock(opts.LockTimeout); err != nil {
		f.Close()
		return nil, err
	}
	lf, err := os.OpenFile(wm.logPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create wal log %s: %w", wm.logPath, err)
	}
	wm.logFile = lf
	if err := wm.writeHeaderLocked(); err != nil {
		return nil, err
	}
	wm.committedHeader = *wm.header
	return wm, nil
}

// OpenWAL opens an existing WAL-backed page file, replaying any
// unapplied log records before returning.
func OpenWAL(path string, opts Options) (*WALManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open page file %s: %w", path, err)
	}
	wm := &WALManager{
		path:    path,
		file:    f,
		logPath: walLogPath(path),
		pending: map[Id]*Page{},
		applied: map[Id]*Page{},
	}
	if err := wm.acquireLock(opts.LockTimeout); err != nil {
		f.Close()
		return nil, err
	}
	lf, err := os.OpenFile(wm.logPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open wal log %s: %w", wm.logPath, err)
	}
	wm.logFile = lf

	hp := &Page{}
	headerPos, _ := pageIdToPosition(1, 1)
	if _, err := f.ReadAt(hp.Bytes(), headerPos); err != nil {
		f.Close()
		lf.Close()
		return nil, fmt.Errorf("read header page of %s: %w", path, err)
	}
	h, err := Decode(hp)
	if err != nil {
		f.Close()
		lf.Close()
		return nil, err
	}
	if !Validate(hp, h) && h.Consistency != ConsistencyCheck {
		f.Close()
		lf.Close()
		return nil, hareerr.Newf(hareerr.KindDataCorruption, path, "checksum mismatch on a cleanly-closed file")
	}
	wm.header = h
	wm.committedHeader = *h

	if err := wm.recover(); err != nil {
		f.Close()
		lf.Close()
		return nil, err
	}
	return wm, nil
}

// recover replays any WAL records left over from an unclean shutdown
// into the applied set, then checkpoints them into the data file and
// marks the header OK.
func (wm *WALManager) recover() error {
	info, err := wm.logFile.Stat()
	if err != nil {
		return fmt.Errorf("stat wal log %s: %w", wm.logPath, err)
	}
	if info.Size() == 0 {
		return nil
	}
	if _, err := wm.logFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal log %s: %w", wm.logPath, err)
	}
	buf := make([]byte, logRecordSize)
	for {
		_, err := io.ReadFull(wm.logFile, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// Truncated tail record from a crash mid-append: stop replaying.
			break
		}
		if err != nil {
			return fmt.Errorf("read wal log %s: %w", wm.logPath, err)
		}
		id := Id(int64FromBytes(buf[:8]))
		p := &Page{}
		p.PutBytes(0, buf[8:])
		wm.applied[id] = p
	}
	if err := wm.checkpointLocked(); err != nil {
		return err
	}
	wm.header.Consistency = ConsistencyOK
	return wm.writeHeaderLocked()
}

func (wm *WALManager) acquireLock(timeout time.Duration) error {
	wm.lock = flock.New(wm.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var locked bool
	op := func() error {
		ok, err := wm.lock.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("advisory lock on %s: %w", wm.path, err))
		}
		if !ok {
			return fmt.Errorf("lock held")
		}
		locked = true
		return nil
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil || !locked {
		return hareerr.New(hareerr.KindFileLocked, wm.path, fmt.Errorf("advisory lock not acquired within %s", timeout))
	}
	return nil
}

func (wm *WALManager) writeHeaderLocked() error {
	hp := &Page{}
	wm.header.Encode(hp)
	pos, _ := pageIdToPosition(1, wm.header.PageCount)
	if _, err := wm.file.WriteAt(hp.Bytes(), pos); err != nil {
		return fmt.Errorf("write header of %s: %w", wm.path, err)
	}
	if err := wm.file.Sync(); err != nil {
		return fmt.Errorf("fsync %s: %w", wm.path, err)
	}
	return nil
}

func (wm *WALManager) Path() string { return wm.path }

func (wm *WALManager) PageCount() int64 {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return wm.header.PageCount
}

func (wm *WALManager) Read(id Id, p *Page) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if src, ok := wm.pending[id]; ok {
		*p = *src
		return nil
	}
	if src, ok := wm.applied[id]; ok {
		*p = *src
		return nil
	}
	pos, err := pageIdToPosition(id, wm.header.PageCount)
	if err != nil {
		return err
	}
	if _, err := wm.file.ReadAt(p.Bytes(), pos); err != nil {
		return fmt.Errorf("read page %d of %s: %w", id, wm.path, err)
	}
	return nil
}

func (wm *WALManager) Update(id Id, p *Page) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if _, err := pageIdToPosition(id, wm.header.PageCount); err != nil {
		return err
	}
	wm.pending[id] = p.Clone()
	return wm.appendLogRecordLocked(id, p)
}

func (wm *WALManager) appendLogRecordLocked(id Id, p *Page) error {
	if _, err := wm.logFile.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek wal log %s: %w", wm.logPath, err)
	}
	rec := make([]byte, logRecordSize)
	putInt64Bytes(rec[:8], int64(id))
	copy(rec[8:], p.Bytes())
	if _, err := wm.logFile.Write(rec); err != nil {
		return fmt.Errorf("append wal log %s: %w", wm.logPath, err)
	}
	return nil
}

func (wm *WALManager) Allocate(initial *Page) (Id, error) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	var id Id
	if wm.header.FreelistHead != NoPage {
		id = wm.header.FreelistHead
		var fp Page
		if err := wm.readThroughLocked(id, &fp); err != nil {
			return 0, err
		}
		wm.header.FreelistHead = Id(fp.GetLong(0))
		wm.header.FreedCount--
	} else {
		wm.header.PageCount++
		id = Id(wm.header.PageCount)
	}

	payload := initial
	if payload == nil {
		payload = &Page{}
	}
	wm.pending[id] = payload.Clone()
	if err := wm.appendLogRecordLocked(id, payload); err != nil {
		return 0, err
	}
	return id, nil
}

// readThroughLocked reads id honoring the pending/applied overlays,
// without the bounds check that Read applies against the *current*
// header (used internally while header.PageCount is being mutated by
// Allocate for the freelist head, which is always < PageCount).
func (wm *WALManager) readThroughLocked(id Id, p *Page) error {
	if src, ok := wm.pending[id]; ok {
		*p = *src
		return nil
	}
	if src, ok := wm.applied[id]; ok {
		*p = *src
		return nil
	}
	pos, err := pageIdToPosition(id, wm.header.PageCount)
	if err != nil {
		return err
	}
	if _, err := wm.file.ReadAt(p.Bytes(), pos); err != nil {
		return fmt.Errorf("read page %d of %s: %w", id, wm.path, err)
	}
	return nil
}

func (wm *WALManager) Free(id Id) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	var fp Page
	fp.PutLong(0, int64(wm.header.FreelistHead))
	wm.pending[id] = fp.Clone()
	if err := wm.appendLogRecordLocked(id, &fp); err != nil {
		return err
	}
	wm.header.FreelistHead = id
	wm.header.FreedCount++
	return nil
}

// Commit forces (fsyncs) the log, moving every pending write into the
// durable-but-unapplied set, then writes the header directly to the
// data file.
func (wm *WALManager) Commit() error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if err := wm.logFile.Sync(); err != nil {
		return fmt.Errorf("fsync wal log %s: %w", wm.logPath, err)
	}
	for id, p := range wm.pending {
		wm.applied[id] = p
	}
	wm.pending = map[Id]*Page{}
	info, err := wm.logFile.Stat()
	if err != nil {
		return fmt.Errorf("stat wal log %s: %w", wm.logPath, err)
	}
	wm.logOffsetAtLastCommit = info.Size()

	wm.header.Consistency = ConsistencyOK
	if err := wm.writeHeaderLocked(); err != nil {
		return err
	}
	wm.committedHeader = *wm.header

	if len(wm.applied) >= walCheckpointThreshold {
		return wm.checkpointLocked()
	}
	return nil
}

// Rollback truncates the log back to the last commit boundary and
// discards pending (uncommitted) writes and header mutations.
func (wm *WALManager) Rollback() error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.pending = map[Id]*Page{}
	if err := wm.logFile.Truncate(wm.logOffsetAtLastCommit); err != nil {
		return fmt.Errorf("truncate wal log %s: %w", wm.logPath, err)
	}
	h := wm.committedHeader
	wm.header = &h
	return nil
}

// Checkpoint applies every committed-but-unapplied page into the data
// file, fsyncs it, and truncates the log.
func (wm *WALManager) Checkpoint() error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return wm.checkpointLocked()
}

func (wm *WALManager) checkpointLocked() error {
	for id, p := range wm.applied {
		pos, err := pageIdToPosition(id, wm.header.PageCount)
		if err != nil {
			return err
		}
		if _, err := wm.file.WriteAt(p.Bytes(), pos); err != nil {
			return fmt.Errorf("checkpoint page %d of %s: %w", id, wm.path, err)
		}
	}
	if err := wm.file.Sync(); err != nil {
		return fmt.Errorf("fsync %s: %w", wm.path, err)
	}
	wm.applied = map[Id]*Page{}
	if err := wm.logFile.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal log %s: %w", wm.logPath, err)
	}
	if _, err := wm.logFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal log %s: %w", wm.logPath, err)
	}
	wm.logOffsetAtLastCommit = 0
	return nil
}

func (wm *WALManager) CalculateChecksum() int64 {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return wm.header.ComputeChecksum()
}

func (wm *WALManager) Validate() error {
	if wm.CalculateChecksum() != wm.header.Checksum {
		return hareerr.New(hareerr.KindDataCorruption, wm.path, fmt.Errorf("checksum mismatch"))
	}
	return nil
}

func (wm *WALManager) Close() error {
	wm.mu.Lock()
	if err := wm.checkpointLocked(); err != nil {
		wm.mu.Unlock()
		return err
	}
	wm.header.Consistency = ConsistencyOK
	if err := wm.writeHeaderLocked(); err != nil {
		wm.mu.Unlock()
		return err
	}
	wm.mu.Unlock()

	if err := wm.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", wm.path, err)
	}
	if err := wm.logFile.Close(); err != nil {
		return fmt.Errorf("close wal log %s: %w", wm.logPath, err)
	}
	if wm.lock != nil {
		_ = wm.lock.Unlock()
	}
	return nil
}

func (wm *WALManager) Delete() error {
	wm.mu.Lock()
	path, logPath, lock := wm.path, wm.logPath, wm.lock
	wm.mu.Unlock()
	_ = wm.file.Close()
	_ = wm.logFile.Close()
	if lock != nil {
		_ = lock.Unlock()
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete page file %s: %w", path, err)
	}
	_ = os.Remove(logPath)
	_ = os.Remove(path + ".lock")
	return nil
}

func int64FromBytes(b []byte) int64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return int64(v)
}

func putInt64Bytes(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}
