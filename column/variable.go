package column

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"hareql.dev/bufferpool"
	"hareql.dev/hareerr"
	"hareql.dev/page"
	"hareql.dev/value"
)

const (
	varHdrOffType     = 4
	varHdrOffFlags    = 16
	varHdrOffCount    = 24
	varHdrOffDeleted  = 32
	varHdrOffMaxTid   = 40
	varHdrOffHeadDir  = 48
	varHdrOffTailDir  = 56
	varHdrOffTailData = 64

	initialDirPageID  page.Id = 2
	initialDataPageID page.Id = 3
)

// dirBound caches a directory page's [first, last] TupleId range in
// memory so lookups don't have to walk the chain from the head on
// every access. Rebuilt by walking the chain once at Open.
type dirBound struct {
	pageID     page.Id
	first, last int64
}

// VariableFile is the variable-width column layout: a directory page
// chain mapping TupleId ranges to (pageId, slotId) addresses into
// slotted data pages holding the actual bytes.
type VariableFile struct {
	dm   page.DiskManager
	pool *bufferpool.Pool
	log  *logrus.Entry

	mu           sync.Mutex
	typ          value.Type
	nullable     bool
	count        int64
	deletedCount int64
	maxTupleId   value.TupleId
	headDirPage  page.Id
	tailDirPage  page.Id
	tailDataPage page.Id
	dirBounds    []dirBound
	headerDirty  bool
}

// CreateVariable initializes a new variable-width column file at path.
func CreateVariable(path string, opts page.Options, typ value.Type, nullable bool, poolCapacity int, log *logrus.Entry) (*VariableFile, error) {
	dm, err := page.Create(path, opts)
	if err != nil {
		return nil, fmt.Errorf("column: create variable file: %w", err)
	}
	vf := &VariableFile{
		dm:           dm,
		pool:         bufferpool.New(dm, poolCapacity, log),
		log:          log,
		typ:          typ,
		nullable:     nullable,
		maxTupleId:   -1,
		headDirPage:  initialDirPageID,
		tailDirPage:  initialDirPageID,
		tailDataPage: initialDataPageID,
	}

	if _, err := dm.Allocate(nil); err != nil { // page 2: first directory page
		return nil, fmt.Errorf("column: allocate directory page: %w", err)
	}
	var dirPage page.Page
	initDirectoryPage(&dirPage, page.NoPage, page.NoPage)
	if err := dm.Update(initialDirPageID, &dirPage); err != nil {
		return nil, fmt.Errorf("column: init directory page: %w", err)
	}

	if _, err := dm.Allocate(nil); err != nil { // page 3: first data page
		return nil, fmt.Errorf("column: allocate data page: %w", err)
	}
	var dataPage page.Page
	initSlottedPage(&dataPage)
	if err := dm.Update(initialDataPageID, &dataPage); err != nil {
		return nil, fmt.Errorf("column: init data page: %w", err)
	}

	vf.dirBounds = []dirBound{{pageID: initialDirPageID, first: 0, last: -1}}
	vf.headerDirty = true
	if err := vf.flushHeader(); err != nil {
		return nil, err
	}
	if err := dm.Commit(); err != nil {
		return nil, fmt.Errorf("column: commit variable file header: %w", err)
	}
	return vf, nil
}

// OpenVariable opens an existing variable-width column file, reading
// its metadata from the header page and rebuilding the in-memory
// directory-page boundary cache by walking the chain once.
func OpenVariable(path string, opts page.Options, poolCapacity int, log *logrus.Entry) (*VariableFile, error) {
	dm, err := page.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("column: open variable file: %w", err)
	}
	vf := &VariableFile{dm: dm, pool: bufferpool.New(dm, poolCapacity, log), log: log}
	if err := vf.readHeader(); err != nil {
		return nil, err
	}
	if err := vf.rebuildDirBounds(); err != nil {
		return nil, err
	}
	return vf, nil
}

func (vf *VariableFile) rebuildDirBounds() error {
	vf.dirBounds = nil
	id := vf.headDirPage
	for id != page.NoPage {
		var p page.Page
		if err := vf.dm.Read(id, &p); err != nil {
			return fmt.Errorf("column: walk directory chain: %w", err)
		}
		vf.dirBounds = append(vf.dirBounds, dirBound{pageID: id, first: dirFirst(&p), last: dirLast(&p)})
		id = dirNext(&p)
	}
	return nil
}

func (vf *VariableFile) readHeader() error {
	var hp page.Page
	if err := vf.dm.Read(1, &hp); err != nil {
		return fmt.Errorf("column: read variable header page: %w", err)
	}
	vf.typ = value.Type(hp.GetInt(varHdrOffType))
	flags := hp.GetLong(varHdrOffFlags)
	vf.nullable = flags&1 != 0
	vf.count = hp.GetLong(varHdrOffCount)
	vf.deletedCount = hp.GetLong(varHdrOffDeleted)
	vf.maxTupleId = value.TupleId(hp.GetLong(varHdrOffMaxTid))
	vf.headDirPage = page.Id(hp.GetLong(varHdrOffHeadDir))
	vf.tailDirPage = page.Id(hp.GetLong(varHdrOffTailDir))
	vf.tailDataPage = page.Id(hp.GetLong(varHdrOffTailData))
	return nil
}

func (vf *VariableFile) flushHeader() error {
	var hp page.Page
	hp.PutInt(0, pageTypeVariableHeader)
	hp.PutInt(varHdrOffType, int32(vf.typ))
	var flags int64
	if vf.nullable {
		flags |= 1
	}
	hp.PutLong(varHdrOffFlags, flags)
	hp.PutLong(varHdrOffCount, vf.count)
	hp.PutLong(varHdrOffDeleted, vf.deletedCount)
	hp.PutLong(varHdrOffMaxTid, int64(vf.maxTupleId))
	hp.PutLong(varHdrOffHeadDir, int64(vf.headDirPage))
	hp.PutLong(varHdrOffTailDir, int64(vf.tailDirPage))
	hp.PutLong(varHdrOffTailData, int64(vf.tailDataPage))
	if err := vf.dm.Update(1, &hp); err != nil {
		return fmt.Errorf("column: write variable header page: %w", err)
	}
	vf.headerDirty = false
	return nil
}

func (vf *VariableFile) Type() value.Type          { return vf.typ }
func (vf *VariableFile) Nullable() bool            { return vf.nullable }
func (vf *VariableFile) Count() int64              { vf.mu.Lock(); defer vf.mu.Unlock(); return vf.count - vf.deletedCount }
func (vf *VariableFile) MaxTupleId() value.TupleId {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	return vf.maxTupleId
}

// findDirPage returns the directory page id owning tid. Callers must
// hold vf.mu.
func (vf *VariableFile) findDirPage(tid int64) (page.Id, bool) {
	i := sort.Search(len(vf.dirBounds), func(i int) bool { return vf.dirBounds[i].last == -1 || vf.dirBounds[i].last >= tid })
	if i >= len(vf.dirBounds) {
		return 0, false
	}
	b := vf.dirBounds[i]
	if tid < b.first || (b.last != -1 && tid > b.last) {
		return 0, false
	}
	return b.pageID, true
}

func (vf *VariableFile) encode(v value.Value) []byte {
	if v.Null {
		return nil
	}
	if vf.typ == value.String {
		return value.EncodeString(v)
	}
	buf := make([]byte, value.EncodedSize(v.Type, v.Len()))
	value.EncodeFixed(buf, v)
	return buf
}

func (vf *VariableFile) decode(payload []byte, length int) value.Value {
	if vf.typ == value.String {
		return value.DecodeString(payload)
	}
	return value.DecodeFixed(payload, vf.typ, length)
}

func (vf *VariableFile) Get(ctx context.Context, tid value.TupleId) (value.Value, bool, error) {
	vf.mu.Lock()
	if tid < 0 || tid > vf.maxTupleId {
		vf.mu.Unlock()
		return value.Value{}, false, nil
	}
	dirPageID, found := vf.findDirPage(int64(tid))
	vf.mu.Unlock()
	if !found {
		return value.Value{}, false, nil
	}

	dirRef, err := vf.pool.Get(ctx, dirPageID, bufferpool.PriorityNormal)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("column: get variable directory entry: %w", err)
	}
	flags, addr := dirGet(dirRef.Page(), int64(tid))
	vf.pool.Release(dirRef)

	if flags&dirFlagDeleted != 0 {
		return value.Value{}, false, nil
	}
	if flags&dirFlagNull != 0 {
		return value.NullOf(vf.typ), true, nil
	}

	dataRef, err := vf.pool.Get(ctx, addr.pageID(), bufferpool.PriorityNormal)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("column: get variable payload page: %w", err)
	}
	defer vf.pool.Release(dataRef)
	payload, ok := slottedRead(dataRef.Page(), addr.slotID())
	if !ok {
		return value.Value{}, false, hareerr.New(hareerr.KindDataCorruption, fmt.Sprintf("tid=%d", tid), fmt.Errorf("directory entry points at a missing slot"))
	}
	return vf.decode(payload, 0), true, nil
}

// insertPayload writes payload to the tail data page, allocating a new
// one if it doesn't fit. Callers must hold vf.mu.
func (vf *VariableFile) insertPayload(ctx context.Context, payload []byte) (address, error) {
	ref, err := vf.pool.Get(ctx, vf.tailDataPage, bufferpool.PriorityNormal)
	if err != nil {
		return 0, fmt.Errorf("column: get tail data page: %w", err)
	}
	slotID, ok := slottedInsert(ref.Page(), payload)
	if !ok {
		// Reclaim tombstoned holes before moving on to a fresh page.
		slottedCompact(ref.Page())
		ref.MarkDirty()
		slotID, ok = slottedInsert(ref.Page(), payload)
	}
	if ok {
		ref.MarkDirty()
		addr := packAddress(vf.tailDataPage, slotID)
		vf.pool.Release(ref)
		return addr, nil
	}
	vf.pool.Release(ref)

	newID, err := vf.dm.Allocate(nil)
	if err != nil {
		return 0, fmt.Errorf("column: allocate new data page: %w", err)
	}
	newRef, err := vf.pool.Get(ctx, newID, bufferpool.PriorityNormal)
	if err != nil {
		return 0, fmt.Errorf("column: get new data page: %w", err)
	}
	initSlottedPage(newRef.Page())
	slotID, ok = slottedInsert(newRef.Page(), payload)
	if !ok {
		vf.pool.Release(newRef)
		return 0, hareerr.New(hareerr.KindOperatorExec, "", fmt.Errorf("payload of %d bytes exceeds page capacity", len(payload)))
	}
	newRef.MarkDirty()
	vf.pool.Release(newRef)
	vf.tailDataPage = newID
	vf.headerDirty = true
	return packAddress(newID, slotID), nil
}

func (vf *VariableFile) Append(ctx context.Context, v value.Value) (value.TupleId, error) {
	if v.Null && !vf.nullable {
		return 0, hareerr.New(hareerr.KindTxValidation, "", fmt.Errorf("column is not nullable"))
	}
	vf.mu.Lock()
	defer vf.mu.Unlock()

	tid := vf.maxTupleId + 1
	var flags int32
	var addr address
	if v.Null {
		flags = dirFlagNull
	} else {
		payload := vf.encode(v)
		a, err := vf.insertPayload(ctx, payload)
		if err != nil {
			return 0, err
		}
		addr = a
	}

	dirRef, err := vf.pool.Get(ctx, vf.tailDirPage, bufferpool.PriorityNormal)
	if err != nil {
		return 0, fmt.Errorf("column: get tail directory page: %w", err)
	}
	if dirPut(dirRef.Page(), int64(tid), flags, addr) {
		dirRef.MarkDirty()
		vf.pool.Release(dirRef)
		vf.dirBounds[len(vf.dirBounds)-1].last = int64(tid)
	} else {
		vf.pool.Release(dirRef)
		newID, err := vf.dm.Allocate(nil)
		if err != nil {
			return 0, fmt.Errorf("column: allocate new directory page: %w", err)
		}
		newRef, err := vf.pool.Get(ctx, newID, bufferpool.PriorityNormal)
		if err != nil {
			return 0, fmt.Errorf("column: get new directory page: %w", err)
		}
		initDirectoryPage(newRef.Page(), vf.tailDirPage, page.NoPage)
		dirPut(newRef.Page(), int64(tid), flags, addr)
		newRef.MarkDirty()
		vf.pool.Release(newRef)

		oldTailRef, err := vf.pool.Get(ctx, vf.tailDirPage, bufferpool.PriorityNormal)
		if err != nil {
			return 0, fmt.Errorf("column: link directory page: %w", err)
		}
		dirSetNext(oldTailRef.Page(), newID)
		oldTailRef.MarkDirty()
		vf.pool.Release(oldTailRef)

		vf.tailDirPage = newID
		vf.dirBounds = append(vf.dirBounds, dirBound{pageID: newID, first: int64(tid), last: int64(tid)})
	}

	vf.maxTupleId = tid
	vf.count++
	vf.headerDirty = true
	return tid, nil
}

func (vf *VariableFile) Put(ctx context.Context, tid value.TupleId, v value.Value) error {
	if v.Null && !vf.nullable {
		return hareerr.New(hareerr.KindTxValidation, fmt.Sprintf("tid=%d", tid), fmt.Errorf("column is not nullable"))
	}
	vf.mu.Lock()
	defer vf.mu.Unlock()
	if tid < 0 || tid > vf.maxTupleId {
		return hareerr.New(hareerr.KindOperatorExec, fmt.Sprintf("tid=%d", tid), nil)
	}
	dirPageID, found := vf.findDirPage(int64(tid))
	if !found {
		return hareerr.New(hareerr.KindDataCorruption, fmt.Sprintf("tid=%d", tid), fmt.Errorf("no directory entry for live tuple"))
	}

	dirRef, err := vf.pool.Get(ctx, dirPageID, bufferpool.PriorityNormal)
	if err != nil {
		return fmt.Errorf("column: get directory page for update: %w", err)
	}
	oldFlags, oldAddr := dirGet(dirRef.Page(), int64(tid))

	var newFlags int32
	var newAddr address
	if v.Null {
		newFlags = dirFlagNull
	} else {
		payload := vf.encode(v)
		a, err := vf.insertPayload(ctx, payload)
		if err != nil {
			vf.pool.Release(dirRef)
			return err
		}
		newAddr = a
	}
	dirSetFlags(dirRef.Page(), int64(tid), newFlags)
	dirSetAddr(dirRef.Page(), int64(tid), newAddr)
	dirRef.MarkDirty()
	vf.pool.Release(dirRef)

	if oldFlags&dirFlagDeleted == 0 && oldFlags&dirFlagNull == 0 {
		oldDataRef, err := vf.pool.Get(ctx, oldAddr.pageID(), bufferpool.PriorityNormal)
		if err == nil {
			slottedDelete(oldDataRef.Page(), oldAddr.slotID())
			oldDataRef.MarkDirty()
			vf.pool.Release(oldDataRef)
		}
	}
	return nil
}

func (vf *VariableFile) Delete(ctx context.Context, tid value.TupleId) error {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	if tid < 0 || tid > vf.maxTupleId {
		return hareerr.New(hareerr.KindOperatorExec, fmt.Sprintf("tid=%d", tid), nil)
	}
	dirPageID, found := vf.findDirPage(int64(tid))
	if !found {
		return hareerr.New(hareerr.KindDataCorruption, fmt.Sprintf("tid=%d", tid), fmt.Errorf("no directory entry for live tuple"))
	}
	dirRef, err := vf.pool.Get(ctx, dirPageID, bufferpool.PriorityNormal)
	if err != nil {
		return fmt.Errorf("column: get directory page for delete: %w", err)
	}
	flags, addr := dirGet(dirRef.Page(), int64(tid))
	if flags&dirFlagDeleted != 0 {
		vf.pool.Release(dirRef)
		return nil
	}
	dirSetFlags(dirRef.Page(), int64(tid), flags|dirFlagDeleted)
	dirRef.MarkDirty()
	vf.pool.Release(dirRef)

	if flags&dirFlagNull == 0 {
		dataRef, err := vf.pool.Get(ctx, addr.pageID(), bufferpool.PriorityNormal)
		if err == nil {
			slottedDelete(dataRef.Page(), addr.slotID())
			dataRef.MarkDirty()
			vf.pool.Release(dataRef)
		}
	}
	vf.deletedCount++
	vf.headerDirty = true
	return nil
}

func (vf *VariableFile) NewCursor(start value.TupleId, end *value.TupleId) (*Cursor, error) {
	vf.mu.Lock()
	last := vf.maxTupleId
	vf.mu.Unlock()
	stop := last
	if end != nil {
		stop = *end
	}
	return &Cursor{source: vf, next: start, end: stop}, nil
}

func (vf *VariableFile) NewReader() *Reader { return &Reader{file: vf} }
func (vf *VariableFile) NewWriter() *Writer { return &Writer{file: vf} }

func (vf *VariableFile) Flush() error {
	vf.mu.Lock()
	dirty := vf.headerDirty
	vf.mu.Unlock()
	if err := vf.pool.Flush(); err != nil {
		return err
	}
	if dirty {
		vf.mu.Lock()
		defer vf.mu.Unlock()
		return vf.flushHeader()
	}
	return nil
}

func (vf *VariableFile) Close() error {
	if err := vf.Flush(); err != nil {
		return err
	}
	if err := vf.dm.Commit(); err != nil {
		return fmt.Errorf("column: commit variable file on close: %w", err)
	}
	return vf.dm.Close()
}
