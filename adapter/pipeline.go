package adapter

import (
	"context"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

// Insert stores a file that has no copy in this adapter yet, blocking until
// the write completes.
func (a *StorageAdapter) Insert(ctx context.Context, file interfaces.LogicalFile) (WriteResult, error) {
	return await(a.insertOp(ctx, file))
}

// InsertAsync is the non-blocking form of Insert.
func (a *StorageAdapter) InsertAsync(ctx context.Context, file interfaces.LogicalFile, done Callback[WriteResult]) {
	dispatch(a.insertOp(ctx, file), done)
}

// Update overwrites the file's existing copy in this adapter, blocking until
// the write completes.
func (a *StorageAdapter) Update(ctx context.Context, file interfaces.LogicalFile) (WriteResult, error) {
	return await(a.updateOp(ctx, file))
}

// UpdateAsync is the non-blocking form of Update.
func (a *StorageAdapter) UpdateAsync(ctx context.Context, file interfaces.LogicalFile, done Callback[WriteResult]) {
	dispatch(a.updateOp(ctx, file), done)
}

func (a *StorageAdapter) insertOp(ctx context.Context, file interfaces.LogicalFile) operation[WriteResult] {
	return func(done Callback[WriteResult]) {
		start := time.Now()
		if err := a.checkFile(file, opInsert); err != nil {
			a.observe(opInsert, "", start, err)
			done(failed(err))
			return
		}

		res, err := a.doPut(ctx, file, "", false)
		a.observe(opInsert, resultKey(res), start, err)
		done(res, err)
	}
}

func (a *StorageAdapter) updateOp(ctx context.Context, file interfaces.LogicalFile) operation[WriteResult] {
	return func(done Callback[WriteResult]) {
		start := time.Now()
		if err := a.checkFile(file, opUpdate); err != nil {
			a.observe(opUpdate, "", start, err)
			done(failed(err))
			return
		}

		rec, err := a.copyKey(file, opUpdate)
		if err != nil {
			a.observe(opUpdate, "", start, err)
			done(failed(err))
			return
		}

		res, err := a.doPut(ctx, file, rec.Key, true)
		a.observe(opUpdate, rec.Key, start, err)
		done(res, err)
	}
}

// doPut runs the write pipeline: pre-save transform, key resolution, backend
// put and stat-back. An empty fileKey derives the default key.
func (a *StorageAdapter) doPut(ctx context.Context, file interfaces.LogicalFile, fileKey string, overwrite bool) (WriteResult, error) {
	if a.beforeSave != nil {
		file = cloneFile(file)
		if a.beforeSave(file) == SaveSkip {
			a.log.Debug("Write skipped by beforeSave", "file_id", file.ID())
			return WriteResult{Outcome: OutcomeSkipped}, nil
		}
	}

	info := interfaces.SavedFileInfo{
		Name: file.Name(),
		Type: file.Type(),
		Size: file.Size(),
	}

	if fileKey == "" {
		fileKey = file.ID() + "/" + file.Name()
	}

	finalKey, err := a.backend.Put(ctx, fileKey, file.Buffer(), interfaces.PutOptions{
		Overwrite: overwrite,
		Type:      file.Type(),
	})
	if err != nil {
		return failed(err)
	}
	if finalKey == "" {
		return failed(&MissingKeyError{Adapter: a.name, Key: fileKey})
	}

	updatedAt := a.now()
	if a.stats != nil {
		st, err := a.stats.Stats(ctx, finalKey)
		if err != nil {
			return failed(err)
		}
		updatedAt = st.ModifiedAt
	}

	info.Key = finalKey
	info.UpdatedAt = updatedAt
	return WriteResult{Outcome: OutcomeStored, Info: &info}, nil
}

// cloneFile returns a copy of file with its own payload, so a beforeSave hook
// never touches the caller's instance.
func cloneFile(file interfaces.LogicalFile) interfaces.LogicalFile {
	clone := file.Clone()
	payload := file.Buffer()
	data := make([]byte, len(payload))
	copy(data, payload)
	clone.SetDataFromBinary(data)
	return clone
}

func failed(err error) (WriteResult, error) {
	return WriteResult{Outcome: OutcomeFailed}, err
}

func resultKey(res WriteResult) string {
	if res.Info == nil {
		return ""
	}
	return res.Info.Key
}
