package column

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"hareql.dev/bufferpool"
	"hareql.dev/hareerr"
	"hareql.dev/page"
	"hareql.dev/value"
)

const (
	fixedHdrOffType       = 4
	fixedHdrOffLogicalLen = 8
	fixedHdrOffEntrySize  = 12
	fixedHdrOffFlags      = 16
	fixedHdrOffCount      = 24
	fixedHdrOffDeleted    = 32
	fixedHdrOffMaxTid     = 40

	entryFlagDeleted int32 = 1 << 0
	entryFlagNull    int32 = 1 << 1

	entryHeaderSize = 4
)

// FixedFile is the fixed-width column layout: entrySize =
// entryHeaderSize + physicalSize(type), tuples addressed by
// headerPageSize + tid*entrySize, packed tightly across data pages
// that follow the dedicated header page (page 1).
type FixedFile struct {
	dm   page.DiskManager
	pool *bufferpool.Pool
	log  *logrus.Entry

	mu             sync.Mutex
	typ            value.Type
	logicalLen     int
	nullable       bool
	entrySize      int32
	entriesPerPage int32
	count          int64
	deletedCount   int64
	maxTupleId     value.TupleId
	headerDirty    bool
}

// CreateFixed initializes a new fixed-width column file at path for
// values of type typ. logicalLen is the element count for fixed-length
// vector types and is ignored for scalars.
func CreateFixed(path string, opts page.Options, typ value.Type, logicalLen int, nullable bool, poolCapacity int, log *logrus.Entry) (*FixedFile, error) {
	if typ == value.String {
		return nil, hareerr.New(hareerr.KindOperatorSetup, path, fmt.Errorf("fixed column layout does not support String"))
	}
	dm, err := page.Create(path, opts)
	if err != nil {
		return nil, fmt.Errorf("column: create fixed file: %w", err)
	}
	f := &FixedFile{
		dm:         dm,
		pool:       bufferpool.New(dm, poolCapacity, log),
		log:        log,
		typ:        typ,
		logicalLen: logicalLen,
		nullable:   nullable,
		entrySize:  int32(entryHeaderSize + value.EncodedSize(typ, logicalLen)),
		maxTupleId: -1,
	}
	f.entriesPerPage = int32(page.Size) / f.entrySize
	if f.entriesPerPage < 1 {
		return nil, hareerr.New(hareerr.KindOperatorSetup, path, fmt.Errorf("entry size %d exceeds page size", f.entrySize))
	}
	f.headerDirty = true
	if err := f.flushHeader(); err != nil {
		return nil, err
	}
	if err := dm.Commit(); err != nil {
		return nil, fmt.Errorf("column: commit fixed file header: %w", err)
	}
	return f, nil
}

// OpenFixed opens an existing fixed-width column file, reading its
// metadata from the header page.
func OpenFixed(path string, opts page.Options, poolCapacity int, log *logrus.Entry) (*FixedFile, error) {
	dm, err := page.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("column: open fixed file: %w", err)
	}
	f := &FixedFile{dm: dm, pool: bufferpool.New(dm, poolCapacity, log), log: log}
	if err := f.readHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FixedFile) readHeader() error {
	var hp page.Page
	if err := f.dm.Read(1, &hp); err != nil {
		return fmt.Errorf("column: read fixed header page: %w", err)
	}
	f.typ = value.Type(hp.GetInt(fixedHdrOffType))
	f.logicalLen = int(hp.GetInt(fixedHdrOffLogicalLen))
	f.entrySize = hp.GetInt(fixedHdrOffEntrySize)
	flags := hp.GetLong(fixedHdrOffFlags)
	f.nullable = flags&1 != 0
	f.count = hp.GetLong(fixedHdrOffCount)
	f.deletedCount = hp.GetLong(fixedHdrOffDeleted)
	f.maxTupleId = value.TupleId(hp.GetLong(fixedHdrOffMaxTid))
	if f.entrySize <= 0 {
		return hareerr.New(hareerr.KindDataCorruption, f.dm.Path(), fmt.Errorf("fixed column header has non-positive entry size"))
	}
	f.entriesPerPage = int32(page.Size) / f.entrySize
	return nil
}

func (f *FixedFile) flushHeader() error {
	var hp page.Page
	hp.PutInt(0, pageTypeFixedHeader)
	hp.PutInt(fixedHdrOffType, int32(f.typ))
	hp.PutInt(fixedHdrOffLogicalLen, int32(f.logicalLen))
	hp.PutInt(fixedHdrOffEntrySize, f.entrySize)
	var flags int64
	if f.nullable {
		flags |= 1
	}
	hp.PutLong(fixedHdrOffFlags, flags)
	hp.PutLong(fixedHdrOffCount, f.count)
	hp.PutLong(fixedHdrOffDeleted, f.deletedCount)
	hp.PutLong(fixedHdrOffMaxTid, int64(f.maxTupleId))
	if err := f.dm.Update(1, &hp); err != nil {
		return fmt.Errorf("column: write fixed header page: %w", err)
	}
	f.headerDirty = false
	return nil
}

func (f *FixedFile) Type() value.Type         { return f.typ }
func (f *FixedFile) Nullable() bool           { return f.nullable }
func (f *FixedFile) Count() int64             { f.mu.Lock(); defer f.mu.Unlock(); return f.count - f.deletedCount }
func (f *FixedFile) MaxTupleId() value.TupleId {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxTupleId
}

// locate returns the data pageId and the byte offset within it for tid.
func (f *FixedFile) locate(tid value.TupleId) (page.Id, int) {
	pageIndex := int64(tid) / int64(f.entriesPerPage)
	offset := int(int64(tid)%int64(f.entriesPerPage)) * int(f.entrySize)
	return page.Id(2 + pageIndex), offset
}

func (f *FixedFile) ensureDataPages(ctx context.Context, upTo value.TupleId) error {
	lastPageID, _ := f.locate(upTo)
	for f.dm.PageCount() < int64(lastPageID) {
		if _, err := f.dm.Allocate(nil); err != nil {
			return fmt.Errorf("column: grow fixed file: %w", err)
		}
	}
	return nil
}

func (f *FixedFile) Get(ctx context.Context, tid value.TupleId) (value.Value, bool, error) {
	f.mu.Lock()
	if tid < 0 || tid > f.maxTupleId {
		f.mu.Unlock()
		return value.Value{}, false, nil
	}
	f.mu.Unlock()

	pageID, off := f.locate(tid)
	ref, err := f.pool.Get(ctx, pageID, bufferpool.PriorityNormal)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("column: get fixed entry: %w", err)
	}
	defer f.pool.Release(ref)

	flags := ref.Page().GetInt(off)
	if flags&entryFlagDeleted != 0 {
		return value.Value{}, false, nil
	}
	if flags&entryFlagNull != 0 {
		return value.NullOf(f.typ), true, nil
	}
	buf := ref.Page().GetBytes(off+entryHeaderSize, int(f.entrySize)-entryHeaderSize)
	return value.DecodeFixed(buf, f.typ, f.logicalLen), true, nil
}

func (f *FixedFile) Put(ctx context.Context, tid value.TupleId, v value.Value) error {
	f.mu.Lock()
	if tid < 0 || tid > f.maxTupleId {
		f.mu.Unlock()
		return hareerr.New(hareerr.KindOperatorExec, fmt.Sprintf("tid=%d", tid), nil)
	}
	f.mu.Unlock()
	return f.writeEntry(ctx, tid, v)
}

func (f *FixedFile) Append(ctx context.Context, v value.Value) (value.TupleId, error) {
	f.mu.Lock()
	tid := f.maxTupleId + 1
	f.mu.Unlock()

	if err := f.ensureDataPages(ctx, tid); err != nil {
		return 0, err
	}
	if err := f.writeEntry(ctx, tid, v); err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.maxTupleId = tid
	f.count++
	f.headerDirty = true
	f.mu.Unlock()
	return tid, nil
}

func (f *FixedFile) writeEntry(ctx context.Context, tid value.TupleId, v value.Value) error {
	if v.Null && !f.nullable {
		return hareerr.New(hareerr.KindTxValidation, fmt.Sprintf("tid=%d", tid), fmt.Errorf("column is not nullable"))
	}
	pageID, off := f.locate(tid)
	ref, err := f.pool.Get(ctx, pageID, bufferpool.PriorityNormal)
	if err != nil {
		return fmt.Errorf("column: write fixed entry: %w", err)
	}
	defer f.pool.Release(ref)

	var flags int32
	if v.Null {
		flags |= entryFlagNull
	}
	ref.Page().PutInt(off, flags)
	if !v.Null {
		buf := make([]byte, int(f.entrySize)-entryHeaderSize)
		value.EncodeFixed(buf, v)
		ref.Page().PutBytes(off+entryHeaderSize, buf)
	}
	ref.MarkDirty()
	return nil
}

func (f *FixedFile) Delete(ctx context.Context, tid value.TupleId) error {
	f.mu.Lock()
	if tid < 0 || tid > f.maxTupleId {
		f.mu.Unlock()
		return hareerr.New(hareerr.KindOperatorExec, fmt.Sprintf("tid=%d", tid), nil)
	}
	f.mu.Unlock()

	pageID, off := f.locate(tid)
	ref, err := f.pool.Get(ctx, pageID, bufferpool.PriorityNormal)
	if err != nil {
		return fmt.Errorf("column: delete fixed entry: %w", err)
	}
	flags := ref.Page().GetInt(off)
	alreadyDeleted := flags&entryFlagDeleted != 0
	ref.Page().PutInt(off, flags|entryFlagDeleted)
	ref.MarkDirty()
	f.pool.Release(ref)

	if !alreadyDeleted {
		f.mu.Lock()
		f.deletedCount++
		f.headerDirty = true
		f.mu.Unlock()
	}
	return nil
}

func (f *FixedFile) NewCursor(start value.TupleId, end *value.TupleId) (*Cursor, error) {
	f.mu.Lock()
	last := f.maxTupleId
	f.mu.Unlock()
	stop := last
	if end != nil {
		stop = *end
	}
	return &Cursor{source: f, next: start, end: stop}, nil
}

func (f *FixedFile) NewReader() *Reader { return &Reader{file: f} }
func (f *FixedFile) NewWriter() *Writer { return &Writer{file: f} }

func (f *FixedFile) Flush() error {
	f.mu.Lock()
	dirty := f.headerDirty
	f.mu.Unlock()
	if err := f.pool.Flush(); err != nil {
		return err
	}
	if dirty {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.flushHeader()
	}
	return nil
}

func (f *FixedFile) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	if err := f.dm.Commit(); err != nil {
		return fmt.Errorf("column: commit fixed file on close: %w", err)
	}
	return f.dm.Close()
}
